// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/log"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `responder:` root key in YAML.
type GlobalConfig struct {
	Log     log.Config    `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Filter  FilterConfig  `mapstructure:"filter" yaml:"filter"`
	Respond RespondConfig `mapstructure:"respond" yaml:"respond"`
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// CaptureConfig selects and configures the capture engine.
type CaptureConfig struct {
	Engine       string                 `mapstructure:"engine" yaml:"engine"` // socket | afpacket | pcapfile
	Interface    string                 `mapstructure:"interface" yaml:"interface"`
	Promiscuous  bool                   `mapstructure:"promiscuous" yaml:"promiscuous"`
	MaxFrameSize int                    `mapstructure:"max_frame_size" yaml:"max_frame_size"`
	BPFFilter    string                 `mapstructure:"bpf_filter" yaml:"bpf_filter"`
	Workers      int                    `mapstructure:"workers" yaml:"workers"`
	FanoutID     uint16                 `mapstructure:"fanout_id" yaml:"fanout_id"`
	PollTimeout  time.Duration          `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Options      map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"` // engine specific
}

// FilterConfig is the selection policy.
type FilterConfig struct {
	Port    int      `mapstructure:"port" yaml:"port"` // 0 = any port
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	Flags   string   `mapstructure:"flags" yaml:"flags"` // e.g. "syn"; empty = any
}

// RespondConfig controls crafted responses.
type RespondConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Flags      string        `mapstructure:"flags" yaml:"flags"`       // override, empty keeps the received flags
	Sequence   string        `mapstructure:"sequence" yaml:"sequence"` // keep | reply
	MaxPerPeer int           `mapstructure:"max_per_peer" yaml:"max_per_peer"`
	Window     time.Duration `mapstructure:"window" yaml:"window"`
}

// RetryConfig bounds receive-failure retries in each worker.
type RetryConfig struct {
	MaxFailures     int           `mapstructure:"max_failures" yaml:"max_failures"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// configRoot is the top-level wrapper matching the YAML structure `responder: ...`.
type configRoot struct {
	Responder GlobalConfig `mapstructure:"responder"`
}

// Load loads configuration from path, or from defaults and environment
// alone when path is empty. Env vars use the RESPONDER_ prefix
// (e.g. RESPONDER_CAPTURE_INTERFACE).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Key "responder.log.level" maps to env "RESPONDER_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Responder

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values. All keys use the "responder." prefix
// to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("responder.log.level", "info")
	v.SetDefault("responder.log.pattern", log.DefaultPattern)
	v.SetDefault("responder.log.time", log.DefaultTime)
	v.SetDefault("responder.log.file.enabled", false)
	v.SetDefault("responder.log.file.filename", "/var/log/responder/responder.log")
	v.SetDefault("responder.log.file.max_size", 100)
	v.SetDefault("responder.log.file.max_backups", 5)
	v.SetDefault("responder.log.file.max_age", 30)
	v.SetDefault("responder.log.file.compress", true)
	v.SetDefault("responder.log.loki.enabled", false)
	v.SetDefault("responder.log.loki.endpoint", "")
	v.SetDefault("responder.log.loki.batch_size", 100)
	v.SetDefault("responder.log.loki.flush_interval", "5s")

	v.SetDefault("responder.metrics.enabled", true)
	v.SetDefault("responder.metrics.listen", ":9091")
	v.SetDefault("responder.metrics.path", "/metrics")

	v.SetDefault("responder.capture.engine", "socket")
	v.SetDefault("responder.capture.interface", "eth0")
	v.SetDefault("responder.capture.promiscuous", true)
	v.SetDefault("responder.capture.max_frame_size", 1518)
	v.SetDefault("responder.capture.bpf_filter", "")
	v.SetDefault("responder.capture.workers", 1)
	v.SetDefault("responder.capture.fanout_id", 0)
	v.SetDefault("responder.capture.poll_timeout", "500ms")

	v.SetDefault("responder.filter.port", 80)
	v.SetDefault("responder.filter.exclude", []string{"239.255.255.250"})
	v.SetDefault("responder.filter.flags", "")

	v.SetDefault("responder.respond.enabled", true)
	v.SetDefault("responder.respond.flags", "")
	v.SetDefault("responder.respond.sequence", "keep")
	v.SetDefault("responder.respond.max_per_peer", 0)
	v.SetDefault("responder.respond.window", "1s")

	v.SetDefault("responder.retry.max_failures", 10)
	v.SetDefault("responder.retry.initial_interval", "10ms")
	v.SetDefault("responder.retry.max_interval", "1s")
}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}

	c := &cfg.Capture
	switch c.Engine {
	case "socket", "afpacket":
		if c.Interface == "" {
			return fmt.Errorf("%w: capture.interface is required for engine %s", core.ErrConfigInvalid, c.Engine)
		}
	case "pcapfile":
		if p, _ := c.Options["path"].(string); p == "" {
			return fmt.Errorf("%w: capture.options.path is required for engine pcapfile", core.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported capture.engine %q", core.ErrConfigInvalid, c.Engine)
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 1518
	}
	if c.MaxFrameSize < 64 || c.MaxFrameSize > 9216 {
		return fmt.Errorf("%w: capture.max_frame_size %d out of range [64, 9216]", core.ErrConfigInvalid, c.MaxFrameSize)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Workers > 1 && c.Engine != "afpacket" && c.FanoutID == 0 {
		return fmt.Errorf("%w: capture.workers > 1 needs engine afpacket with a fanout_id", core.ErrConfigInvalid)
	}
	if c.Workers > 1 && c.Engine != "afpacket" {
		return fmt.Errorf("%w: capture.workers > 1 is only supported by engine afpacket", core.ErrConfigInvalid)
	}

	if cfg.Filter.Port < 0 || cfg.Filter.Port > 65535 {
		return fmt.Errorf("%w: filter.port %d out of range", core.ErrConfigInvalid, cfg.Filter.Port)
	}
	if _, err := cfg.ExcludedAddrs(); err != nil {
		return err
	}
	if _, err := core.ParseTCPFlags(cfg.Filter.Flags); err != nil {
		return fmt.Errorf("%w: filter.flags: %v", core.ErrConfigInvalid, err)
	}
	if _, err := core.ParseTCPFlags(cfg.Respond.Flags); err != nil {
		return fmt.Errorf("%w: respond.flags: %v", core.ErrConfigInvalid, err)
	}
	switch cfg.Respond.Sequence {
	case "":
		cfg.Respond.Sequence = "keep"
	case "keep", "reply":
	default:
		return fmt.Errorf("%w: respond.sequence %q (must be keep/reply)", core.ErrConfigInvalid, cfg.Respond.Sequence)
	}

	if cfg.Retry.MaxFailures < 0 {
		return fmt.Errorf("%w: retry.max_failures must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Retry.InitialInterval <= 0 {
		cfg.Retry.InitialInterval = 10 * time.Millisecond
	}
	if cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		cfg.Retry.MaxInterval = cfg.Retry.InitialInterval
	}
	return nil
}

// ExcludedAddrs parses filter.exclude.
func (cfg *GlobalConfig) ExcludedAddrs() ([]netip.Addr, error) {
	addrs := make([]netip.Addr, 0, len(cfg.Filter.Exclude))
	for _, s := range cfg.Filter.Exclude {
		a, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: filter.exclude: %v", core.ErrConfigInvalid, err)
		}
		if !a.Is4() {
			return nil, fmt.Errorf("%w: filter.exclude: %s is not an IPv4 address", core.ErrConfigInvalid, s)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// FilterFlags is the parsed filter.flags mask.
func (cfg *GlobalConfig) FilterFlags() core.TCPFlags {
	f, _ := core.ParseTCPFlags(cfg.Filter.Flags)
	return f
}

// RespondFlags is the parsed respond.flags override and whether one is set.
func (cfg *GlobalConfig) RespondFlags() (core.TCPFlags, bool) {
	if strings.TrimSpace(cfg.Respond.Flags) == "" {
		return 0, false
	}
	f, _ := core.ParseTCPFlags(cfg.Respond.Flags)
	return f, true
}
