// Package config loads process configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPassword and DefaultSecretKey are development placeholders. The
	// process refuses to run with them unless Env is "development".
	DefaultPassword  = "changeme"
	DefaultSecretKey = "change-this-secret-key-in-production"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendDir   = "dir"
	BackendMinio = "minio"
)

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	Password       string        `yaml:"password"`
	SecretKey      string        `yaml:"secret_key"`
	Port           int           `yaml:"port"`
	DataDir        string        `yaml:"data_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	Env            string        `yaml:"env"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	TrustProxy     bool          `yaml:"trust_proxy"`
	SessionTTL     time.Duration `yaml:"session_ttl"`

	LoginRatePerMinute     int `yaml:"login_rate_per_minute"`
	MaxConcurrentTransfers int `yaml:"max_concurrent_transfers"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Storage Storage `yaml:"storage"`
	Cleanup Cleanup `yaml:"cleanup"`
}

// Cleanup configures the sweeper for partial uploads left by crashes.
type Cleanup struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// Storage selects and configures the file backend.
type Storage struct {
	Backend   string `yaml:"backend"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Password:               DefaultPassword,
		SecretKey:              DefaultSecretKey,
		Port:                   5000,
		DataDir:                "./data",
		MaxUploadBytes:         5 << 30,
		Env:                    EnvProduction,
		SessionTTL:             12 * time.Hour,
		LoginRatePerMinute:     10,
		MaxConcurrentTransfers: 8,
		LogLevel:               "info",
		LogFormat:              "json",
		Storage:                Storage{Backend: BackendDir},
		Cleanup:                Cleanup{Enabled: true, Interval: time.Hour, MaxAge: 24 * time.Hour},
	}
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Development reports whether insecure placeholders are tolerated.
func (c Config) Development() bool {
	return c.Env == EnvDevelopment
}

// Load builds the configuration and validates it. lookup is normally
// os.LookupEnv; tests pass a map-backed function.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	v := NewValidator()
	cfg.mergeEnv(lookup, v)
	cfg.validate(v)
	if v.HasErrors() {
		return Config{}, v
	}
	return cfg, nil
}

// FromEnv is Load against the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool), v *Validator) {
	str := func(key string, dst *string) {
		if val, ok := lookup(key); ok && val != "" {
			*dst = val
		}
	}
	num := func(key string, dst *int) {
		if val, ok := lookup(key); ok && val != "" {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				v.AddError(key, "must be a valid integer")
				return
			}
			*dst = n
		}
	}

	str("APP_PASSWORD", &c.Password)
	str("SECRET_KEY", &c.SecretKey)
	str("DATA_DIR", &c.DataDir)
	str("APP_ENV", &c.Env)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("S3_ENDPOINT", &c.Storage.Endpoint)
	str("S3_ACCESS_KEY", &c.Storage.AccessKey)
	str("S3_SECRET_KEY", &c.Storage.SecretKey)
	str("S3_BUCKET", &c.Storage.Bucket)
	num("PORT", &c.Port)
	num("LOGIN_RATE_PER_MINUTE", &c.LoginRatePerMinute)
	num("MAX_CONCURRENT_TRANSFERS", &c.MaxConcurrentTransfers)

	if val, ok := lookup("MAX_CONTENT_LENGTH"); ok && val != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			v.AddError("MAX_CONTENT_LENGTH", "must be a valid integer")
		} else {
			c.MaxUploadBytes = n
		}
	}
	flag := func(key string, dst *bool) {
		if val, ok := lookup(key); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				v.AddError(key, "must be a boolean")
				return
			}
			*dst = b
		}
	}
	flag("COOKIE_SECURE", &c.CookieSecure)
	flag("TRUST_PROXY", &c.TrustProxy)
	flag("CLEANUP_ENABLED", &c.Cleanup.Enabled)
	dur := func(key string, dst *time.Duration) {
		if val, ok := lookup(key); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				v.AddError(key, "must be a valid duration (e.g., 12h, 90m)")
				return
			}
			*dst = d
		}
	}
	dur("SESSION_TTL", &c.SessionTTL)
	dur("CLEANUP_INTERVAL", &c.Cleanup.Interval)
	dur("CLEANUP_MAX_AGE", &c.Cleanup.MaxAge)
}

func (c *Config) validate(v *Validator) {
	v.ValidateEnum("APP_ENV", c.Env, []string{EnvDevelopment, EnvProduction})
	v.ValidateEnum("LOG_LEVEL", c.LogLevel, []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("LOG_FORMAT", c.LogFormat, []string{"json", "console"})
	v.ValidateEnum("STORAGE_BACKEND", c.Storage.Backend, []string{BackendDir, BackendMinio})

	if c.Port < 1 || c.Port > 65535 {
		v.AddError("PORT", "port must be between 1 and 65535")
	}
	if c.MaxUploadBytes <= 0 {
		v.AddError("MAX_CONTENT_LENGTH", "must be a positive integer")
	}
	if c.SessionTTL <= 0 {
		v.AddError("SESSION_TTL", "must be positive")
	}
	if c.Cleanup.Enabled {
		if c.Cleanup.Interval <= 0 {
			v.AddError("CLEANUP_INTERVAL", "must be positive")
		}
		if c.Cleanup.MaxAge <= 0 {
			v.AddError("CLEANUP_MAX_AGE", "must be positive")
		}
	}
	if c.LoginRatePerMinute <= 0 {
		v.AddError("LOGIN_RATE_PER_MINUTE", "must be a positive integer")
	}
	if c.MaxConcurrentTransfers <= 0 {
		v.AddError("MAX_CONCURRENT_TRANSFERS", "must be a positive integer")
	}

	if c.Password == "" {
		v.AddError("APP_PASSWORD", "must not be empty")
	}
	if c.SecretKey == "" {
		v.AddError("SECRET_KEY", "must not be empty")
	}
	if !c.Development() {
		if c.Password == DefaultPassword {
			v.AddError("APP_PASSWORD", "insecure default in use; set a real password or APP_ENV=development")
		}
		if c.SecretKey == DefaultSecretKey {
			v.AddError("SECRET_KEY", "insecure default in use; set a real key or APP_ENV=development")
		}
	}

	switch c.Storage.Backend {
	case BackendDir:
		if strings.TrimSpace(c.DataDir) == "" {
			v.AddError("DATA_DIR", "must not be empty")
		}
	case BackendMinio:
		if c.Storage.Endpoint == "" {
			v.AddError("S3_ENDPOINT", "required when STORAGE_BACKEND=minio")
		} else if strings.Contains(c.Storage.Endpoint, "://") {
			v.ValidateURL("S3_ENDPOINT", c.Storage.Endpoint)
		}
		if c.Storage.AccessKey == "" {
			v.AddError("S3_ACCESS_KEY", "required when STORAGE_BACKEND=minio")
		}
		if c.Storage.SecretKey == "" {
			v.AddError("S3_SECRET_KEY", "required when STORAGE_BACKEND=minio")
		}
		if c.Storage.Bucket == "" {
			v.AddError("S3_BUCKET", "required when STORAGE_BACKEND=minio")
		}
	}
}

// Warnings lists settings that are accepted but worth an operator's attention.
func (c Config) Warnings() []string {
	var w []string
	if c.Password == DefaultPassword {
		w = append(w, "APP_PASSWORD is the insecure default")
	}
	if c.SecretKey == DefaultSecretKey {
		w = append(w, "SECRET_KEY is the insecure default")
	} else if len(c.SecretKey) < 32 {
		w = append(w, "SECRET_KEY is shorter than 32 characters")
	}
	if !c.CookieSecure {
		w = append(w, "COOKIE_SECURE is false; session cookies will be sent over plain HTTP")
	}
	return w
}
