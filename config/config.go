package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Gateway    GatewayConfig    `yaml:"gateway"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr                    string  `yaml:"addr"`
	RateLimitPerSec         float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst          int     `yaml:"rate_limit_burst"`
	PrintersCacheTTLSeconds int     `yaml:"printers_cache_ttl_seconds"`
}

// LoggingConfig selects the log level, format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
	File   string `yaml:"file"`
}

// DatabaseConfig holds the job history database connection configuration.
// A DSN starting with postgres:// or containing host= selects PostgreSQL,
// anything else is a SQLite file.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	HistoryBuffer          int    `yaml:"history_buffer"`
}

// PushConfig holds the VAPID keys for failure alerts.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// MonitorConfig controls the network printer reachability probe.
type MonitorConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	DialTimeoutMs   int           `yaml:"dial_timeout_ms"`
}

// DispatcherConfig sizes the per-printer queues.
type DispatcherConfig struct {
	QueueCapacity   int `yaml:"queue_capacity"`
	ShutdownGraceMs int `yaml:"shutdown_grace_ms"`
}

// Default values.
const (
	DefaultAddr             = "127.0.0.1:16161"
	DefaultDSN              = "printgw.db"
	DefaultQueueCapacity    = 256
	DefaultShutdownGraceMs  = 2000
	DefaultMonitorInterval  = 30
	DefaultMonitorDialMs    = 300
	DefaultPrintersCacheTTL = 10
)

// Default returns a configuration with every section at its default.
func Default() *Config {
	cfg := &Config{
		Monitor: MonitorConfig{Enabled: true},
		Gateway: DefaultGateway(),
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Config{
		Monitor: MonitorConfig{Enabled: true},
		Gateway: DefaultGateway(),
	}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrCreate loads path, writing a default configuration with a fresh
// pairing token when the file does not exist yet. A loaded configuration
// without a token gets one and is written back.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	} else if cfg.Gateway.PairingToken != "" {
		return cfg, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	cfg.Gateway.PairingToken = token
	if err := writeFileAtomic(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 20
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 40
	}
	if c.Server.PrintersCacheTTLSeconds <= 0 {
		c.Server.PrintersCacheTTLSeconds = DefaultPrintersCacheTTL
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Database.DSN == "" {
		c.Database.DSN = DefaultDSN
	}
	if c.Database.HistoryBuffer <= 0 {
		c.Database.HistoryBuffer = 512
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}

	if c.WorkerPool.Size <= 0 {
		c.WorkerPool.Size = 1
	}
	if c.WorkerPool.QueueSize <= 0 {
		c.WorkerPool.QueueSize = 100
	}

	if c.Monitor.IntervalSeconds <= 0 {
		c.Monitor.IntervalSeconds = DefaultMonitorInterval
	}
	c.Monitor.Interval = time.Duration(c.Monitor.IntervalSeconds) * time.Second
	if c.Monitor.DialTimeoutMs <= 0 {
		c.Monitor.DialTimeoutMs = DefaultMonitorDialMs
	}

	if c.Dispatcher.QueueCapacity <= 0 {
		c.Dispatcher.QueueCapacity = DefaultQueueCapacity
	}
	if c.Dispatcher.ShutdownGraceMs <= 0 {
		c.Dispatcher.ShutdownGraceMs = DefaultShutdownGraceMs
	}

	c.Gateway.Normalize()
}
