package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = "test-secret"
	return cfg
}

// FUNCTIONAL VALIDATION TEST: Default configuration provides usable settings
func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Database.Path == "" {
		t.Error("Default database path should not be empty")
	}
	if config.HTTP.Port != 8080 {
		t.Errorf("Default HTTP port should be 8080, got %d", config.HTTP.Port)
	}
	if config.RateLimit.Messages != 100 || config.RateLimit.Window != time.Minute {
		t.Errorf("Default rate limit should be 100/min, got %+v", config.RateLimit)
	}
	if config.Presence.StrictDisplayNames {
		t.Error("Display names should overwrite by default")
	}
	if config.Token.Secret != "" {
		t.Error("There must be no default token secret")
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration validation prevents invalid settings
func TestConfig_Validate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Valid config should pass validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Token.Secret = "" }, "token secret"},
		{"invalid port", func(c *Config) { c.HTTP.Port = -1 }, "HTTP port"},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, "database path"},
		{"read timeout below ping", func(c *Config) { c.WebSocket.ReadTimeout = time.Second }, "ping interval"},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }, "log level"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"zero rate limit", func(c *Config) { c.RateLimit.Messages = 0 }, "rate limit"},
		{"sample ratio above one", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "HTTP port") || !strings.Contains(err.Error(), "database path") {
		t.Errorf("expected both problems reported, got %q", err)
	}
}

// FUNCTIONAL VALIDATION TEST: Environment variable configuration loading
func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("ROOMLINK_HTTP_PORT", "9090")
	t.Setenv("ROOMLINK_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("ROOMLINK_TOKEN_SECRET", "from-env")
	t.Setenv("ROOMLINK_WEBSOCKET_PING_INTERVAL", "15s")
	t.Setenv("ROOMLINK_PRESENCE_STRICT_DISPLAY_NAMES", "true")
	t.Setenv("ROOMLINK_HTTP_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	config := DefaultConfig()
	if err := config.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if config.HTTP.Port != 9090 {
		t.Errorf("Expected HTTP port 9090, got %d", config.HTTP.Port)
	}
	if config.Database.Path != "/tmp/test.db" {
		t.Errorf("Expected database path /tmp/test.db, got %s", config.Database.Path)
	}
	if config.Token.Secret != "from-env" {
		t.Errorf("Expected token secret from env, got %q", config.Token.Secret)
	}
	if config.WebSocket.PingInterval != 15*time.Second {
		t.Errorf("Expected ping interval 15s, got %v", config.WebSocket.PingInterval)
	}
	if !config.Presence.StrictDisplayNames {
		t.Error("Expected strict display names from env")
	}
	if len(config.HTTP.AllowedOrigins) != 2 || config.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected allowed origins %v", config.HTTP.AllowedOrigins)
	}
	if config.HTTP.ReadTimeout != 30*time.Second {
		t.Errorf("Unset variables must keep defaults, got read timeout %v", config.HTTP.ReadTimeout)
	}
}

func TestConfig_ApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("ROOMLINK_HTTP_PORT", "not-a-port")

	if err := DefaultConfig().ApplyEnv(); err == nil {
		t.Error("expected parse error for a non-numeric port")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestConfig_ApplyFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"http": {"port": 7070, "read_timeout": "45s"},
		"token": {"secret": "from-file", "ttl": "2h"},
		"gateway": {"url": "http://profiles:9000"},
		"presence": {"strict_display_names": true},
		"rate_limit": {"messages": 20, "window": "30s"},
		"tracing": {"endpoint": "otel-collector:4318", "insecure": true, "sample_ratio": 0.25}
	}`)

	config := DefaultConfig()
	if err := config.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile failed: %v", err)
	}

	if config.HTTP.Port != 7070 || config.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("Unexpected HTTP config %+v", config.HTTP)
	}
	if config.HTTP.Host != "0.0.0.0" {
		t.Errorf("Missing keys must keep defaults, got host %q", config.HTTP.Host)
	}
	if config.Token.Secret != "from-file" || config.Token.TTL != 2*time.Hour {
		t.Errorf("Unexpected token config %+v", config.Token)
	}
	if config.Gateway.URL != "http://profiles:9000" {
		t.Errorf("Unexpected gateway URL %q", config.Gateway.URL)
	}
	if !config.Presence.StrictDisplayNames {
		t.Error("Expected strict display names from file")
	}
	if config.RateLimit.Messages != 20 || config.RateLimit.Window != 30*time.Second {
		t.Errorf("Unexpected rate limit %+v", config.RateLimit)
	}
	if config.Tracing.Endpoint != "otel-collector:4318" || !config.Tracing.Insecure || config.Tracing.SampleRatio != 0.25 {
		t.Errorf("Unexpected tracing config %+v", config.Tracing)
	}
}

func TestConfig_ApplyFileErrors(t *testing.T) {
	if err := DefaultConfig().ApplyFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}

	if err := DefaultConfig().ApplyFile(writeConfigFile(t, `{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}

	err := DefaultConfig().ApplyFile(writeConfigFile(t, `{"http": {"read_timeout": "soon"}}`))
	if err == nil || !strings.Contains(err.Error(), "http.read_timeout") {
		t.Errorf("expected duration error naming the field, got %v", err)
	}
}

// FUNCTIONAL VALIDATION TEST: File values win over environment values
func TestConfig_LoadPrecedence(t *testing.T) {
	path := writeConfigFile(t, `{"http": {"port": 7070}}`)
	t.Setenv("ROOMLINK_HTTP_PORT", "9090")
	t.Setenv("ROOMLINK_HTTP_HOST", "127.0.0.1")
	t.Setenv("ROOMLINK_TOKEN_SECRET", "s3cret")
	t.Setenv(ConfigFileEnv, path)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.HTTP.Port != 7070 {
		t.Errorf("File should override env, got port %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("Env should override defaults, got host %q", config.HTTP.Host)
	}
	if config.Address() != "127.0.0.1:7070" {
		t.Errorf("Unexpected address %q", config.Address())
	}
}

func TestConfig_LoadValidates(t *testing.T) {
	t.Setenv("ROOMLINK_TOKEN_SECRET", "")
	t.Setenv(ConfigFileEnv, "")

	if _, err := Load(); err == nil {
		t.Error("Load without a token secret should fail validation")
	}
}
