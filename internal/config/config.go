package config

import "time"

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	TemplatesDir    string   `mapstructure:"templates_dir" yaml:"templates_dir"`
	StaticDir       string   `mapstructure:"static_dir" yaml:"static_dir"`
	WatchExtensions []string `mapstructure:"watch_extensions" yaml:"watch_extensions"`
	LiveReload      bool     `mapstructure:"live_reload" yaml:"live_reload"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// StorageConfig selects and locates the message store.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// HTTPConfig holds request handling limits.
type HTTPConfig struct {
	// SubmitRateLimit is the number of submissions allowed per client IP per minute. Zero disables it.
	SubmitRateLimit int `mapstructure:"submit_rate_limit" yaml:"submit_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              "0.0.0.0:3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		TemplatesDir:      "templates",
		StaticDir:         "static",
		WatchExtensions:   []string{".html", ".css"},
		Storage: StorageConfig{
			Driver: DriverJSON,
			Path:   "storage/data.json",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.TemplatesDir != "" {
		c.TemplatesDir = other.TemplatesDir
	}
	if other.StaticDir != "" {
		c.StaticDir = other.StaticDir
	}
	if len(other.WatchExtensions) > 0 {
		c.WatchExtensions = other.WatchExtensions
	}
	if other.LiveReload {
		c.LiveReload = true
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.HTTP.SubmitRateLimit != 0 {
		c.HTTP.SubmitRateLimit = other.HTTP.SubmitRateLimit
	}
}
