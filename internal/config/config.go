// Package config loads and validates siteclone configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/siteclone/internal/id/token"
	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/render"
	"github.com/JakeFAU/siteclone/internal/retry"
)

// EnvPrefix namespaces environment overrides, e.g. SITECLONE_SERVER_URL.
const EnvPrefix = "SITECLONE"

// Config captures all client configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Session   SessionConfig    `mapstructure:"session"`
	Markers   progress.Markers `mapstructure:"markers"`
	RateLimit RateLimitConfig  `mapstructure:"ratelimit"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	Download  DownloadConfig   `mapstructure:"download"`
	Status    StatusConfig     `mapstructure:"status"`
	Hub       HubConfig        `mapstructure:"hub"`
	Store     StoreConfig      `mapstructure:"store"`
	Output    OutputConfig     `mapstructure:"output"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig locates the mirroring service.
type ServerConfig struct {
	URL              string        `mapstructure:"url"`
	SocketPath       string        `mapstructure:"socket_path"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// SessionConfig controls tokens and per-session bounds.
type SessionConfig struct {
	TokenScope  string        `mapstructure:"token_scope"`
	TokenLength int           `mapstructure:"token_length"`
	LogCapacity int           `mapstructure:"log_capacity"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
	Buffer      int           `mapstructure:"buffer"`
}

// RateLimitConfig throttles outbound submissions.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// DownloadConfig controls archive retrieval after completion.
type DownloadConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	Progress bool   `mapstructure:"progress"`
}

// StatusConfig controls the status bar tasks and the local status API.
type StatusConfig struct {
	Listen        string        `mapstructure:"listen"`
	ClockInterval time.Duration `mapstructure:"clock_interval"`
	IPLookup      bool          `mapstructure:"ip_lookup"`
	IPLookupURL   string        `mapstructure:"ip_lookup_url"`
}

// HubConfig tunes the observation hub.
type HubConfig struct {
	BufferSize  int           `mapstructure:"buffer_size"`
	MaxBatch    int           `mapstructure:"max_batch"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
}

// StoreConfig bounds the session snapshot store.
type StoreConfig struct {
	MaxSessions int `mapstructure:"max_sessions"`
}

// OutputConfig selects the renderer.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	markers := progress.DefaultMarkers()

	v.SetDefault("server.url", "http://localhost:5000")
	v.SetDefault("server.socket_path", "/socket.io/")
	v.SetDefault("server.handshake_timeout", "10s")
	v.SetDefault("session.token_scope", string(token.ScopeRequest))
	v.SetDefault("session.token_length", token.DefaultLength)
	v.SetDefault("session.log_capacity", 50)
	v.SetDefault("session.wait_timeout", "0s")
	v.SetDefault("session.buffer", 64)
	v.SetDefault("markers.converting", markers.Converting)
	v.SetDefault("markers.completed", markers.Completed)
	v.SetDefault("markers.errors", markers.Errors)
	v.SetDefault("markers.page", markers.Page)
	v.SetDefault("markers.resources", markers.Resources)
	v.SetDefault("markers.success", markers.Success)
	v.SetDefault("ratelimit.requests_per_minute", 5)
	v.SetDefault("ratelimit.burst", 0)
	v.SetDefault("http.timeout_seconds", 600)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("download.enabled", true)
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.progress", true)
	v.SetDefault("status.listen", "")
	v.SetDefault("status.clock_interval", "1s")
	v.SetDefault("status.ip_lookup", true)
	v.SetDefault("status.ip_lookup_url", "https://api.ipify.org?format=json")
	v.SetDefault("hub.buffer_size", 256)
	v.SetDefault("hub.max_batch", 64)
	v.SetDefault("hub.max_wait", "250ms")
	v.SetDefault("hub.sink_timeout", "5s")
	v.SetDefault("store.max_sessions", 100)
	v.SetDefault("output.format", string(render.FormatText))
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "warn")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("server.url must be an absolute URL, got %q", c.Server.URL)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server.url scheme %q is not supported", u.Scheme)
	}
	if _, err := token.ParseScope(c.Session.TokenScope); err != nil {
		return fmt.Errorf("session.token_scope: %w", err)
	}
	if c.Session.TokenLength <= 0 {
		return errors.New("session.token_length must be > 0")
	}
	if c.Session.LogCapacity <= 0 {
		return errors.New("session.log_capacity must be > 0")
	}
	if c.Session.WaitTimeout < 0 {
		return errors.New("session.wait_timeout must be >= 0")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return errors.New("ratelimit.requests_per_minute must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return errors.New("http.max_retries must be >= 0")
	}
	if c.Download.Enabled && c.Download.Dir == "" {
		return errors.New("download.dir must be set when downloads are enabled")
	}
	if c.Status.ClockInterval <= 0 {
		return errors.New("status.clock_interval must be > 0")
	}
	if _, err := render.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	return nil
}

// ServerURL returns the parsed service base URL with ws and wss mapped to
// http and https. Validate guarantees it parses.
func (c Config) ServerURL() *url.URL {
	u, _ := url.Parse(c.Server.URL)
	if u == nil {
		return nil
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return u
}

// HTTPTimeout converts the HTTP timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryPolicy converts the HTTP retry knobs into a retry.Policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.HTTP.MaxRetries + 1,
		BaseDelay:   time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
	}
}
