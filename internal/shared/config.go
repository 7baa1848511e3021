package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Values may be overridden by ADPACKS_* environment variables, see [ApplyEnv].
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Backend     BackendConfig     `toml:"backend"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Sync        SyncConfig        `toml:"sync"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains provider-specific OAuth client credentials.
type CredentialsConfig struct {
	Facebook     ProviderConfig `toml:"facebook"`
	GoogleSheets ProviderConfig `toml:"google_sheets"`
}

// ProviderConfig contains OAuth2 client credentials for a single provider.
type ProviderConfig struct {
	ClientID     string   `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `toml:"client_secret" env:"CLIENT_SECRET"`
	Scopes       []string `toml:"scopes" env:"SCOPES" envSeparator:","`
}

// Configured reports whether both client id and secret are set.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// BackendConfig points at the authoritative backend API.
type BackendConfig struct {
	URL     string   `toml:"url" env:"BACKEND_URL"`
	Timeout Duration `toml:"timeout" env:"BACKEND_TIMEOUT"`
	Retries uint     `toml:"retries" env:"BACKEND_RETRIES"` // GET retries on transport errors and 5xx
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
//
// PublicOrigin is the origin the browser sees; it prefixes the shared callback path and scopes cross-window messages.
type ServerConfig struct {
	Host         string   `toml:"host" env:"SERVER_HOST"`
	Port         int      `toml:"port" env:"SERVER_PORT"`
	PublicOrigin string   `toml:"public_origin" env:"PUBLIC_ORIGIN"`
	CloseDelay   Duration `toml:"close_delay" env:"CLOSE_DELAY"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Origin returns PublicOrigin, falling back to http://host:port.
func (s ServerConfig) Origin() string {
	if s.PublicOrigin != "" {
		return s.PublicOrigin
	}
	return "http://" + s.Addr()
}

// StorageConfig contains client-side persistence settings.
type StorageConfig struct {
	Debounce Duration `toml:"debounce" env:"STORAGE_DEBOUNCE"`
}

// SyncConfig contains pack synchronization settings.
type SyncConfig struct {
	Workers          int     `toml:"workers" env:"SYNC_WORKERS"`
	RateLimit        float64 `toml:"rate_limit" env:"SYNC_RATE_LIMIT"`
	CacheConcurrency int     `toml:"cache_concurrency" env:"SYNC_CACHE_CONCURRENCY"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// Duration wraps [time.Duration] so it can be written as "500ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// envOverrides mirrors the overridable parts of [Config].
type envOverrides struct {
	Facebook     ProviderConfig `envPrefix:"FACEBOOK_"`
	GoogleSheets ProviderConfig `envPrefix:"GOOGLE_SHEETS_"`
	Backend      BackendConfig
	Database     DatabaseConfig
	Server       ServerConfig
	Storage      StorageConfig
	Sync         SyncConfig
	Log          LogConfig
}

// LoadConfig reads and parses a TOML configuration file from the specified path, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides config values with ADPACKS_* environment variables.
//
// Variables that are unset leave the existing value in place.
func ApplyEnv(config *Config) error {
	overrides := envOverrides{
		Facebook:     config.Credentials.Facebook,
		GoogleSheets: config.Credentials.GoogleSheets,
		Backend:      config.Backend,
		Database:     config.Database,
		Server:       config.Server,
		Storage:      config.Storage,
		Sync:         config.Sync,
		Log:          config.Log,
	}

	if err := env.ParseWithOptions(&overrides, env.Options{Prefix: "ADPACKS_"}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.Credentials.Facebook = overrides.Facebook
	config.Credentials.GoogleSheets = overrides.GoogleSheets
	config.Backend = overrides.Backend
	config.Database = overrides.Database
	config.Server = overrides.Server
	config.Storage = overrides.Storage
	config.Sync = overrides.Sync
	config.Log = overrides.Log
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
