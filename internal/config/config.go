package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "ROOMLINK_"

// ConfigFileEnv names the variable holding an optional JSON config file path.
const ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP      HTTPConfig      `json:"http" envPrefix:"HTTP_"`
	WebSocket WebSocketConfig `json:"websocket" envPrefix:"WEBSOCKET_"`
	Database  DatabaseConfig  `json:"database" envPrefix:"DATABASE_"`
	Token     TokenConfig     `json:"token" envPrefix:"TOKEN_"`
	Gateway   GatewayConfig   `json:"gateway" envPrefix:"GATEWAY_"`
	Log       LogConfig       `json:"log" envPrefix:"LOG_"`
	Presence  PresenceConfig  `json:"presence" envPrefix:"PRESENCE_"`
	RateLimit RateLimitConfig `json:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Tracing   TracingConfig   `json:"tracing" envPrefix:"TRACING_"`
}

type HTTPConfig struct {
	Host            string        `json:"host" env:"HOST"`
	Port            int           `json:"port" env:"PORT"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// FUNCTIONAL DISCOVERY: WebSocket heartbeat of 30s keeps idle chat sockets alive through proxies
type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval" env:"PING_INTERVAL"`
	ReadTimeout    time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	BufferSize     int           `json:"buffer_size" env:"BUFFER_SIZE"`
	MaxMessageSize int64         `json:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

type DatabaseConfig struct {
	Path           string        `json:"path" env:"PATH"`
	MaxConnections int           `json:"max_connections" env:"MAX_CONNECTIONS"`
	Timeout        time.Duration `json:"timeout" env:"TIMEOUT"`
}

type TokenConfig struct {
	Secret string        `json:"secret" env:"SECRET"`
	TTL    time.Duration `json:"ttl" env:"TTL"`
}

// GatewayConfig points at the external profile service. An empty URL
// disables the profile endpoints.
type GatewayConfig struct {
	URL     string        `json:"url" env:"URL"`
	Timeout time.Duration `json:"timeout" env:"TIMEOUT"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LEVEL"`
	Format string `json:"format" env:"FORMAT"`
}

type PresenceConfig struct {
	StrictDisplayNames bool `json:"strict_display_names" env:"STRICT_DISPLAY_NAMES"`
}

type RateLimitConfig struct {
	Messages int           `json:"messages" env:"MESSAGES"`
	Window   time.Duration `json:"window" env:"WINDOW"`
}

// TracingConfig controls OpenTelemetry export. An empty endpoint keeps spans
// in-process only.
type TracingConfig struct {
	Endpoint    string  `json:"endpoint" env:"ENDPOINT"`
	Insecure    bool    `json:"insecure" env:"INSECURE"`
	SampleRatio float64 `json:"sample_ratio" env:"SAMPLE_RATIO"`
}

// DefaultConfig returns development-ready defaults. Token.Secret has no
// default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		WebSocket: WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     100,
			MaxMessageSize: 64 * 1024,
		},
		Database: DatabaseConfig{
			Path:           "./data/roomlink.db",
			MaxConnections: 10,
			Timeout:        30 * time.Second,
		},
		Token: TokenConfig{
			TTL: 24 * time.Hour,
		},
		Gateway: GatewayConfig{
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Messages: 100,
			Window:   time.Minute,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.HTTP.Host != "", "HTTP host cannot be empty")
	check(c.HTTP.Port > 0 && c.HTTP.Port <= 65535, "HTTP port must be between 1 and 65535")
	check(c.HTTP.ReadTimeout > 0, "HTTP read timeout must be positive")
	check(c.HTTP.WriteTimeout > 0, "HTTP write timeout must be positive")
	check(c.HTTP.ShutdownTimeout > 0, "HTTP shutdown timeout must be positive")

	check(c.WebSocket.PingInterval > 0, "WebSocket ping interval must be positive")
	check(c.WebSocket.ReadTimeout > c.WebSocket.PingInterval, "WebSocket read timeout must exceed the ping interval")
	check(c.WebSocket.WriteTimeout > 0, "WebSocket write timeout must be positive")
	check(c.WebSocket.BufferSize > 0, "WebSocket buffer size must be positive")
	check(c.WebSocket.MaxMessageSize > 0, "WebSocket max message size must be positive")

	check(c.Database.Path != "", "database path cannot be empty")
	check(c.Database.MaxConnections > 0, "database max connections must be positive")
	check(c.Database.Timeout > 0, "database timeout must be positive")

	check(c.Token.Secret != "", "token secret is required")
	check(c.Token.TTL > 0, "token TTL must be positive")

	check(c.Gateway.Timeout > 0, "gateway timeout must be positive")

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		check(false, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		check(false, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	check(c.RateLimit.Messages > 0, "rate limit messages must be positive")
	check(c.RateLimit.Window > 0, "rate limit window must be positive")

	check(c.Tracing.SampleRatio >= 0 && c.Tracing.SampleRatio <= 1, "tracing sample ratio must be between 0 and 1")

	return errors.Join(errs...)
}

// Address returns the HTTP listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// ApplyEnv overrides c with any ROOMLINK_* environment variables that are set
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// configFile mirrors Config with durations as strings such as "30s"
type configFile struct {
	HTTP *struct {
		Host            string   `json:"host"`
		Port            int      `json:"port"`
		ReadTimeout     string   `json:"read_timeout"`
		WriteTimeout    string   `json:"write_timeout"`
		ShutdownTimeout string   `json:"shutdown_timeout"`
		AllowedOrigins  []string `json:"allowed_origins"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval   string `json:"ping_interval"`
		ReadTimeout    string `json:"read_timeout"`
		WriteTimeout   string `json:"write_timeout"`
		BufferSize     int    `json:"buffer_size"`
		MaxMessageSize int64  `json:"max_message_size"`
	} `json:"websocket"`
	Database *struct {
		Path           string `json:"path"`
		MaxConnections int    `json:"max_connections"`
		Timeout        string `json:"timeout"`
	} `json:"database"`
	Token *struct {
		Secret string `json:"secret"`
		TTL    string `json:"ttl"`
	} `json:"token"`
	Gateway *struct {
		URL     string `json:"url"`
		Timeout string `json:"timeout"`
	} `json:"gateway"`
	Log *struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
	Presence *struct {
		StrictDisplayNames *bool `json:"strict_display_names"`
	} `json:"presence"`
	RateLimit *struct {
		Messages int    `json:"messages"`
		Window   string `json:"window"`
	} `json:"rate_limit"`
	Tracing *struct {
		Endpoint    string   `json:"endpoint"`
		Insecure    *bool    `json:"insecure"`
		SampleRatio *float64 `json:"sample_ratio"`
	} `json:"tracing"`
}

// ApplyFile overlays the non-empty values of a JSON config file onto c
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var f configFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var errs []error
	duration := func(dst *time.Duration, field, raw string) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*dst = d
	}
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}

	if h := f.HTTP; h != nil {
		str(&c.HTTP.Host, h.Host)
		num(&c.HTTP.Port, h.Port)
		duration(&c.HTTP.ReadTimeout, "http.read_timeout", h.ReadTimeout)
		duration(&c.HTTP.WriteTimeout, "http.write_timeout", h.WriteTimeout)
		duration(&c.HTTP.ShutdownTimeout, "http.shutdown_timeout", h.ShutdownTimeout)
		if len(h.AllowedOrigins) > 0 {
			c.HTTP.AllowedOrigins = h.AllowedOrigins
		}
	}
	if w := f.WebSocket; w != nil {
		duration(&c.WebSocket.PingInterval, "websocket.ping_interval", w.PingInterval)
		duration(&c.WebSocket.ReadTimeout, "websocket.read_timeout", w.ReadTimeout)
		duration(&c.WebSocket.WriteTimeout, "websocket.write_timeout", w.WriteTimeout)
		num(&c.WebSocket.BufferSize, w.BufferSize)
		if w.MaxMessageSize > 0 {
			c.WebSocket.MaxMessageSize = w.MaxMessageSize
		}
	}
	if d := f.Database; d != nil {
		str(&c.Database.Path, d.Path)
		num(&c.Database.MaxConnections, d.MaxConnections)
		duration(&c.Database.Timeout, "database.timeout", d.Timeout)
	}
	if t := f.Token; t != nil {
		str(&c.Token.Secret, t.Secret)
		duration(&c.Token.TTL, "token.ttl", t.TTL)
	}
	if g := f.Gateway; g != nil {
		str(&c.Gateway.URL, g.URL)
		duration(&c.Gateway.Timeout, "gateway.timeout", g.Timeout)
	}
	if l := f.Log; l != nil {
		str(&c.Log.Level, l.Level)
		str(&c.Log.Format, l.Format)
	}
	if p := f.Presence; p != nil && p.StrictDisplayNames != nil {
		c.Presence.StrictDisplayNames = *p.StrictDisplayNames
	}
	if r := f.RateLimit; r != nil {
		num(&c.RateLimit.Messages, r.Messages)
		duration(&c.RateLimit.Window, "rate_limit.window", r.Window)
	}
	if tr := f.Tracing; tr != nil {
		str(&c.Tracing.Endpoint, tr.Endpoint)
		if tr.Insecure != nil {
			c.Tracing.Insecure = *tr.Insecure
		}
		if tr.SampleRatio != nil {
			c.Tracing.SampleRatio = *tr.SampleRatio
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// Load builds the runtime configuration.
// FUNCTIONAL DISCOVERY: Precedence is defaults, then environment, then the
// file named by ROOMLINK_CONFIG_FILE
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
