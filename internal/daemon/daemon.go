// Package daemon implements the responder process lifecycle: logging,
// metrics exporter, capture workers and signal handling.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/responder/internal/config"
	"firestige.xyz/responder/internal/log"
	"firestige.xyz/responder/internal/metrics"
	"firestige.xyz/responder/internal/pipeline"
)

// Daemon manages the responder process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	pidFile    string
	version    string

	// Core components
	pipelines     []*pipeline.Pipeline
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{} // closed when every worker has returned
	runErr   error
	sigChan  chan os.Signal
	stopOnce sync.Once
}

// New loads the configuration at configPath and creates a Daemon.
func New(configPath, pidFile, version string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	d := NewWithConfig(cfg, pidFile, version)
	d.configPath = configPath
	return d, nil
}

// NewWithConfig creates a Daemon from an already validated configuration.
func NewWithConfig(cfg *config.GlobalConfig, pidFile, version string) *Daemon {
	d := &Daemon{
		config:  cfg,
		pidFile: pidFile,
		version: version,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes logging and metrics, opens every capture handle and
// launches one pipeline per worker.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"version":   d.version,
		"config":    d.configPath,
		"engine":    d.config.Capture.Engine,
		"interface": d.config.Capture.Interface,
		"workers":   d.config.Capture.Workers,
	}).Info("starting responder")

	// 2. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Start metrics server
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 4. Open capture handles and build pipelines
	pipelines, err := BuildPipelines(d.config)
	if err != nil {
		d.stopMetrics()
		return fmt.Errorf("failed to open capture workers: %w", err)
	}
	d.pipelines = pipelines

	// 5. Run workers; the first failure cancels the rest
	g, gctx := errgroup.WithContext(d.ctx)
	for _, p := range d.pipelines {
		p := p
		g.Go(func() error { return p.Run(gctx) })
	}
	d.done = make(chan struct{})
	go func() {
		d.runErr = g.Wait()
		close(d.done)
	}()

	log.GetLogger().Info("responder started")
	return nil
}

// Run blocks until a shutdown signal arrives, the context is cancelled, or
// every worker has returned (a replayed capture file is exhausted, or a
// worker gave up). SIGHUP reloads the log configuration.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				log.GetLogger().WithField("signal", sig.String()).Info("received shutdown signal")
				d.Stop()
				return d.runErr

			case syscall.SIGHUP:
				log.GetLogger().Info("received reload signal")
				if err := d.Reload(); err != nil {
					log.GetLogger().WithError(err).Error("failed to reload config")
				}
			}

		case <-d.done:
			log.GetLogger().Info("all workers finished")
			d.Stop()
			return d.runErr

		case <-d.ctx.Done():
			d.Stop()
			return d.runErr
		}
	}
}

// Shutdown triggers a graceful stop from another goroutine.
func (d *Daemon) Shutdown() {
	d.cancel()
}

// Stop performs graceful shutdown of all daemon components. It is safe to
// call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	logger := log.GetLogger()
	logger.Info("initiating graceful shutdown")

	// 1. Cancel context; pipelines close their handles
	d.cancel()
	if d.done != nil {
		<-d.done
	}
	if d.runErr != nil {
		logger.WithError(d.runErr).Error("worker failed")
	}
	for _, p := range d.pipelines {
		s := p.Stats()
		logger.WithFields(map[string]interface{}{
			"worker":   p.ID(),
			"received": s.Received,
			"accepted": s.Accepted,
			"passed":   s.Passed,
			"errors":   s.Errors,
			"sent":     s.Sent,
			"limited":  s.Limited,
		}).Info("worker stopped")
	}

	// 2. Stop metrics server
	d.stopMetrics()

	// 3. Unregister signal handler to prevent goroutine leak
	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	// 4. Remove PID file
	if err := d.removePIDFile(); err != nil {
		logger.WithError(err).Error("error removing PID file")
	}

	logger.Info("responder stopped")

	// 5. Flush logs
	log.Close()
}

// Reload re-reads the configuration file. Only the log section is applied
// to a running daemon; capture, filter and respond changes need a restart.
func (d *Daemon) Reload() error {
	if d.configPath == "" {
		return fmt.Errorf("no config file to reload")
	}
	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	requiresRestart := []string{}
	if fmt.Sprint(newConfig.Capture) != fmt.Sprint(d.config.Capture) {
		requiresRestart = append(requiresRestart, "capture")
	}
	if fmt.Sprint(newConfig.Filter) != fmt.Sprint(d.config.Filter) {
		requiresRestart = append(requiresRestart, "filter")
	}
	if newConfig.Respond != d.config.Respond {
		requiresRestart = append(requiresRestart, "respond")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}

	d.config.Log = newConfig.Log
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"level":            newConfig.Log.Level,
		"requires_restart": requiresRestart,
	}).Info("configuration reloaded")
	return nil
}

// Config returns the configuration the daemon runs with.
func (d *Daemon) Config() *config.GlobalConfig { return d.config }

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (d *Daemon) MetricsAddr() string {
	if d.metricsServer == nil {
		return ""
	}
	return d.metricsServer.Addr()
}

// initLogging initializes the logging system from config.
func (d *Daemon) initLogging() error {
	if err := log.Init(d.config.Log); err != nil {
		return err
	}
	log.GetLogger().WithField("level", d.config.Log.Level).Debug("logging initialized")
	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.GetLogger().Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		d.metricsServer = nil
		return err
	}
	return nil
}

func (d *Daemon) stopMetrics() {
	if d.metricsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.metricsServer.Stop(shutdownCtx); err != nil {
		log.GetLogger().WithError(err).Error("error stopping metrics server")
	}
	d.metricsServer = nil
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")
	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}
	log.GetLogger().WithFields(map[string]interface{}{"path": d.pidFile, "pid": pid}).Debug("PID file written")
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	return nil
}
