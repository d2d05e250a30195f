package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// MultiWriter fans writes out to every appender. A failing appender does
// not stop the others.
type MultiWriter struct {
	writers []io.Writer
	closers []io.Closer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// AddCloser adds an appender the MultiWriter owns and closes on Close.
func (m *MultiWriter) AddCloser(writer io.WriteCloser) *MultiWriter {
	m.closers = append(m.closers, writer)
	return m.Add(writer)
}

// AddFileAppender adds a size-rotated log file.
func (m *MultiWriter) AddFileAppender(opts FileConfig) *MultiWriter {
	return m.AddCloser(&lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	})
}

// Close closes the owned appenders.
func (m *MultiWriter) Close() error {
	var err error
	for _, c := range m.closers {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	return err
}
