package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: YAML is the source of truth. A .env file next to the process and
// TRIPCAL_* environment variables are layered on top at Load time and are
// never written back by Save.

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StoreConfig controls local persistence of the itinerary document.
type StoreConfig struct {
	// Dir is the badger data directory.
	Dir string `yaml:"dir" json:"dir" env:"TRIPCAL_STORE_DIR"`
	// Key is the single key the document lives under.
	Key string `yaml:"key" json:"key" env:"TRIPCAL_STORE_KEY"`
}

// SyncConfig describes the optional remote per-user record.
type SyncConfig struct {
	// Backend selects the remote: "" (disabled), "redis" or "mongo".
	Backend string `yaml:"backend" json:"backend" env:"TRIPCAL_SYNC_BACKEND"`
	// UserID keys the remote record.
	UserID string `yaml:"user_id" json:"user_id" env:"TRIPCAL_SYNC_USER"`
	// DebounceMs is the quiet period before a change is pushed.
	DebounceMs int `yaml:"debounce_ms" json:"debounce_ms" env:"TRIPCAL_SYNC_DEBOUNCE_MS"`

	RedisAddr     string `yaml:"redis_addr" json:"redis_addr" env:"TRIPCAL_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" json:"-" env:"TRIPCAL_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db" env:"TRIPCAL_REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix" env:"TRIPCAL_REDIS_PREFIX"`

	MongoURI      string `yaml:"mongo_uri" json:"-" env:"TRIPCAL_MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" json:"mongo_database" env:"TRIPCAL_MONGO_DATABASE"`
}

// ExportConfig controls the scheduled calendar export.
type ExportConfig struct {
	// Path is where the scheduled job writes the .ics file. Empty disables it.
	Path string `yaml:"path" json:"path" env:"TRIPCAL_EXPORT_PATH"`
	// Cron is a cron-style schedule string (e.g. "*/15 * * * *").
	Cron string `yaml:"cron" json:"cron" env:"TRIPCAL_EXPORT_CRON"`
	// ProductID is written to the PRODID line.
	ProductID string `yaml:"product_id" json:"product_id" env:"TRIPCAL_EXPORT_PRODID"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"TRIPCAL_LISTEN"`

	// LogLevel is one of DEBUG, INFO, ERROR.
	LogLevel string `yaml:"log_level" json:"log_level" env:"TRIPCAL_LOG_LEVEL"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format" json:"log_format" env:"TRIPCAL_LOG_FORMAT"`

	// AllowedOrigins feeds the CORS middleware. "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" env:"TRIPCAL_ALLOWED_ORIGINS" envSeparator:","`

	// RateLimitRPS caps requests per client address. Zero disables the limiter.
	RateLimitRPS float64 `yaml:"rate_limit_rps" json:"rate_limit_rps" env:"TRIPCAL_RATE_LIMIT_RPS"`

	Store  StoreConfig  `yaml:"store" json:"store"`
	Sync   SyncConfig   `yaml:"sync" json:"sync"`
	Export ExportConfig `yaml:"export" json:"export"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		LogLevel:       "INFO",
		LogFormat:      "console",
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   20,
		Store: StoreConfig{
			Dir: "./var/tripcal",
			Key: "trip-planner-cache-v3",
		},
		Sync: SyncConfig{
			DebounceMs:    900,
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "tripcal",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "tripcal",
		},
		Export: ExportConfig{
			Cron:      "*/15 * * * *",
			ProductID: "-//Trip Planner//EN",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "DEBUG", "INFO", "ERROR":
	default:
		c.LogLevel = def.LogLevel
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		c.LogFormat = def.LogFormat
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = def.AllowedOrigins
	}
	if c.RateLimitRPS < 0 {
		c.RateLimitRPS = 0
	}

	if c.Store.Dir == "" {
		c.Store.Dir = def.Store.Dir
	}
	if c.Store.Key == "" {
		c.Store.Key = def.Store.Key
	}

	c.Sync.Backend = strings.ToLower(strings.TrimSpace(c.Sync.Backend))
	switch c.Sync.Backend {
	case "", "redis", "mongo":
	default:
		// Unknown backend; run local-only rather than guess.
		c.Sync.Backend = ""
	}
	if c.Sync.DebounceMs <= 0 {
		c.Sync.DebounceMs = def.Sync.DebounceMs
	}
	if c.Sync.RedisAddr == "" {
		c.Sync.RedisAddr = def.Sync.RedisAddr
	}
	if c.Sync.RedisPrefix == "" {
		c.Sync.RedisPrefix = def.Sync.RedisPrefix
	}
	if c.Sync.MongoURI == "" {
		c.Sync.MongoURI = def.Sync.MongoURI
	}
	if c.Sync.MongoDatabase == "" {
		c.Sync.MongoDatabase = def.Sync.MongoDatabase
	}

	if c.Export.Cron == "" {
		c.Export.Cron = def.Export.Cron
	}
	if c.Export.ProductID == "" {
		c.Export.ProductID = def.Export.ProductID
	}
}

// SyncEnabled reports whether a remote backend and user are configured.
func (c *Config) SyncEnabled() bool {
	return c.Sync.Backend != "" && c.Sync.UserID != ""
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - continue with the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - Then apply .env and TRIPCAL_* environment overrides
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// applyEnv layers a local .env file and TRIPCAL_* variables over cfg.
// Variables that are not set leave the YAML value untouched.
func applyEnv(cfg *Config) error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return err
	}
	if cfg.BasicAuth == nil {
		user, pass := os.Getenv("TRIPCAL_BASIC_AUTH_USER"), os.Getenv("TRIPCAL_BASIC_AUTH_PASSWORD")
		if user != "" && pass != "" {
			cfg.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
		}
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".tripcal-config-*.tmp")
}

// WriteFileAtomic writes data to a temp file in the target directory, fsyncs
// it, sets 0600 and renames it over path.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
