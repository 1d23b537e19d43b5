package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultMinInterval       = 10 * time.Second
	DefaultMinDisplacementM  = 100.0
	DefaultReplaySpeed       = 1.0
	DefaultMarginDeg         = 0.001
	DefaultMaxAttempts       = 4
	DefaultAttemptTimeout    = 30 * time.Second
	DefaultBackoffInitial    = 1 * time.Second
	DefaultBackoffMultiplier = 3.0
	DefaultBackoffMax        = 30 * time.Second
	DefaultCacheTTL          = 10 * time.Minute
	DefaultJournalPath       = "hiketracker.db"
	DefaultJournalBuffer     = 256
)

// Config is the top-level configuration of the tracker daemon.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Tracker     TrackerConfig     `yaml:"tracker"`
	Location    LocationConfig    `yaml:"location"`
	PhotoSearch PhotoSearchConfig `yaml:"photosearch"`
	Journal     JournalConfig     `yaml:"journal"`
	Alerts      AlertsConfig      `yaml:"alerts"`
}

// TrackerConfig holds process-level settings.
type TrackerConfig struct {
	// HTTPPort is the port the REST API, websocket observer and metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// Log controls the slog handler installed at startup.
	Log LogConfig `yaml:"log"`

	// Auth protects the HTTP surface.
	Auth ServerAuthConfig `yaml:"auth"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// ServerAuthConfig configures API key authentication of incoming HTTP requests.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header carrying the key. Defaults to "X-API-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-API-Key".
func (a ServerAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

// LocationConfig describes where location samples come from and how often
// they are accepted.
type LocationConfig struct {
	// Source is one of: http | replay | mqtt.
	Source string `yaml:"source"`

	// MinInterval is the minimum time between two accepted samples.
	MinInterval time.Duration `yaml:"min_interval"`

	// MinDisplacementM is the minimum distance in meters between two accepted samples.
	MinDisplacementM float64 `yaml:"min_displacement_m"`

	Replay ReplayConfig `yaml:"replay"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// ReplayConfig configures replay of a recorded track file.
type ReplayConfig struct {
	// Path is an NDJSON file with one {"lon","lat","timestamp"} object per line.
	Path string `yaml:"path"`

	// Speed divides the recorded gaps between samples. 10 replays ten times faster.
	Speed float64 `yaml:"speed"`
}

// MQTTConfig configures the OwnTracks-compatible MQTT location source.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Topic       string `yaml:"topic"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// PhotoSearchConfig configures the remote photo-search client.
type PhotoSearchConfig struct {
	// Endpoint is the full URL of the search API, without the bounding box parameters.
	Endpoint string `yaml:"endpoint"`

	// MarginDeg is the half-width of the search box in degrees.
	MarginDeg float64 `yaml:"margin_deg"`

	// MaxAttempts is the total number of attempts per fetch, first try included.
	MaxAttempts int `yaml:"max_attempts"`

	// AttemptTimeout bounds each single attempt.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`

	// RateLimit caps outgoing requests per second. Zero disables the limiter.
	RateLimit float64 `yaml:"rate_limit"`

	// CacheTTL keeps non-empty responses per area. Zero disables the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Params are static query parameters added to every request.
	Params map[string]string `yaml:"params"`

	// BoundsParams names the four bounding box query parameters.
	BoundsParams BoundsParams `yaml:"bounds_params"`

	Auth AuthConfig `yaml:"auth"`
}

// BoundsParams names the query parameters carrying the search box.
type BoundsParams struct {
	MinLon string `yaml:"min_lon"`
	MinLat string `yaml:"min_lat"`
	MaxLon string `yaml:"max_lon"`
	MaxLat string `yaml:"max_lat"`
}

// AuthConfig specifies how the client authenticates to the photo-search API.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name to send the API key in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// JournalConfig configures the optional SQLite history of stored photos.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// BufferSize is the number of pending rows held before the oldest is dropped.
	BufferSize int `yaml:"buffer_size"`
}

// AlertsConfig holds failure alert rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier.
	Name string `yaml:"name"`

	// Condition is an expression like "consecutive_failures >= 5".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Tracker: TrackerConfig{
			HTTPPort: DefaultHTTPPort,
			Log:      LogConfig{Level: "info", Format: "json"},
		},
		Location: LocationConfig{
			Source:           "http",
			MinInterval:      DefaultMinInterval,
			MinDisplacementM: DefaultMinDisplacementM,
			Replay:           ReplayConfig{Speed: DefaultReplaySpeed},
			MQTT:             MQTTConfig{ClientID: "hiketracker", Topic: "owntracks/+/+"},
		},
		PhotoSearch: PhotoSearchConfig{
			MarginDeg:         DefaultMarginDeg,
			MaxAttempts:       DefaultMaxAttempts,
			AttemptTimeout:    DefaultAttemptTimeout,
			BackoffInitial:    DefaultBackoffInitial,
			BackoffMultiplier: DefaultBackoffMultiplier,
			BackoffMax:        DefaultBackoffMax,
			CacheTTL:          DefaultCacheTTL,
			BoundsParams: BoundsParams{
				MinLon: "minx",
				MinLat: "miny",
				MaxLon: "maxx",
				MaxLat: "maxy",
			},
		},
		Journal: JournalConfig{
			Path:       DefaultJournalPath,
			BufferSize: DefaultJournalBuffer,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Tracker.HTTPPort <= 0 || cfg.Tracker.HTTPPort > 65535 {
		return fmt.Errorf("tracker.http_port %d is out of range [1, 65535]", cfg.Tracker.HTTPPort)
	}
	switch cfg.Tracker.Log.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("tracker.log.level %q unknown: want debug|info|warn|error", cfg.Tracker.Log.Level)
	}
	switch cfg.Tracker.Log.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("tracker.log.format %q unknown: want json|text", cfg.Tracker.Log.Format)
	}
	switch cfg.Tracker.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("tracker.auth.mode %q unknown: want apikey|none", cfg.Tracker.Auth.Mode)
	}

	loc := cfg.Location
	switch loc.Source {
	case "http":
	case "replay":
		if loc.Replay.Path == "" {
			return fmt.Errorf("location.replay.path is required for the replay source")
		}
		if loc.Replay.Speed <= 0 {
			return fmt.Errorf("location.replay.speed must be positive")
		}
	case "mqtt":
		if loc.MQTT.Broker == "" {
			return fmt.Errorf("location.mqtt.broker is required for the mqtt source")
		}
		if loc.MQTT.Topic == "" {
			return fmt.Errorf("location.mqtt.topic is required for the mqtt source")
		}
	default:
		return fmt.Errorf("location.source %q unknown: want http|replay|mqtt", loc.Source)
	}
	if loc.MinInterval < 0 {
		return fmt.Errorf("location.min_interval must not be negative")
	}
	if loc.MinDisplacementM < 0 {
		return fmt.Errorf("location.min_displacement_m must not be negative")
	}

	ps := cfg.PhotoSearch
	if ps.Endpoint == "" {
		return fmt.Errorf("photosearch.endpoint is required")
	}
	if ps.MarginDeg <= 0 {
		return fmt.Errorf("photosearch.margin_deg must be positive")
	}
	if ps.MaxAttempts <= 0 {
		return fmt.Errorf("photosearch.max_attempts must be positive")
	}
	if ps.AttemptTimeout <= 0 {
		return fmt.Errorf("photosearch.attempt_timeout must be positive")
	}
	if ps.BackoffInitial < 0 || ps.BackoffMax < 0 {
		return fmt.Errorf("photosearch backoff durations must not be negative")
	}
	if ps.BackoffMultiplier < 1 {
		return fmt.Errorf("photosearch.backoff_multiplier must be at least 1")
	}
	if ps.RateLimit < 0 {
		return fmt.Errorf("photosearch.rate_limit must not be negative")
	}
	if ps.CacheTTL < 0 {
		return fmt.Errorf("photosearch.cache_ttl must not be negative")
	}
	switch ps.Auth.Mode {
	case "apikey":
		if ps.Auth.Header == "" {
			return fmt.Errorf("photosearch.auth.header is required for apikey mode")
		}
	case "bearer", "none", "":
	default:
		return fmt.Errorf("photosearch.auth.mode %q unknown: want apikey|bearer|none", ps.Auth.Mode)
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if cfg.Journal.BufferSize <= 0 {
		return fmt.Errorf("journal.buffer_size must be positive")
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
	}
	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	return nil
}
