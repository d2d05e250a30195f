// Package log provides the process logger, a logrus adapter with a pattern
// formatter and pluggable appenders.
package log

import (
	"io"
	"os"
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu      sync.RWMutex
	logger  Logger = newLogrus(Config{}, os.Stdout)
	closers []io.Closer
)

// GetLogger returns the process logger. It is usable before Init.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger according to cfg.
func Init(cfg Config) error {
	out := NewMultiWriter().Add(os.Stdout)
	if cfg.File.Enabled && cfg.File.Filename != "" {
		out.AddFileAppender(cfg.File)
	}
	if cfg.Loki.Enabled {
		lw, err := NewLokiWriter(cfg.Loki)
		if err != nil {
			out.Close()
			return err
		}
		out.AddCloser(lw)
	}
	set(newLogrus(cfg, out), out)
	return nil
}

// SetOutput points the process logger at w, keeping cfg's format. Used by
// commands that print to a caller-provided writer.
func SetOutput(cfg Config, w io.Writer) {
	set(newLogrus(cfg, w))
}

// Close flushes and closes appenders opened by Init.
func Close() error {
	mu.Lock()
	cs := closers
	closers = nil
	mu.Unlock()

	var err error
	for _, c := range cs {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	return err
}

func set(l Logger, cs ...io.Closer) {
	mu.Lock()
	old := closers
	logger, closers = l, cs
	mu.Unlock()
	for _, c := range old {
		c.Close()
	}
}
