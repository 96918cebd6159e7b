// Package config loads querywise configuration from an optional YAML file
// and QUERYWISE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/executor"
	"github.com/abhisek/querywise/internal/llm"
	"github.com/abhisek/querywise/internal/store"
)

// Profile backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the complete application configuration.
type Config struct {
	LLM        llm.Config       `yaml:"llm"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Profiles   ProfilesConfig   `yaml:"profiles"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// AssessmentConfig tunes the cognitive engine.
type AssessmentConfig struct {
	LoadFactor        float64       `yaml:"load_factor"`
	Delegate          bool          `yaml:"delegate"`
	DelegationTimeout time.Duration `yaml:"delegation_timeout"`
	// Explain enables generated explanations.
	Explain bool `yaml:"explain"`
}

// ProfilesConfig selects and configures the durable profile backend.
type ProfilesConfig struct {
	Backend    string            `yaml:"backend"`
	FlushEvery int               `yaml:"flush_every"`
	BadgerPath string            `yaml:"badger_path"`
	Redis      store.RedisConfig `yaml:"redis"`
}

// ExecutorConfig locates the database questions are asked about.
type ExecutorConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	MaxRows int    `yaml:"max_rows"`
}

// StoreConfig locates the application database. Empty Path means the
// default location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		LLM: llm.DefaultConfig(),
		Assessment: AssessmentConfig{
			LoadFactor:        cognitive.DefaultLoadFactor,
			DelegationTimeout: cognitive.DefaultDelegationTimeout,
			Explain:           true,
		},
		Profiles: ProfilesConfig{
			Backend:    BackendSQLite,
			FlushEvery: 1,
			Redis:      store.RedisConfig{Addr: "localhost:6379"},
		},
		Executor: ExecutorConfig{
			Driver:  executor.DriverSQLite,
			MaxRows: executor.DefaultMaxRows,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultPath is $XDG_CONFIG_HOME/querywise/config.yaml, or the same under
// ~/.config. QUERYWISE_CONFIG overrides it.
func DefaultPath() string {
	if p := os.Getenv("QUERYWISE_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "querywise", "config.yaml")
}

// ApplyEnv overrides fields from QUERYWISE_* environment variables.
func (c *Config) ApplyEnv() {
	c.LLM.ApplyEnv()

	if v, ok := lookupFloat("QUERYWISE_LOAD_FACTOR"); ok {
		c.Assessment.LoadFactor = v
	}
	if v, ok := lookupBool("QUERYWISE_DELEGATE"); ok {
		c.Assessment.Delegate = v
	}
	if v, ok := lookupDuration("QUERYWISE_DELEGATION_TIMEOUT"); ok {
		c.Assessment.DelegationTimeout = v
	}
	if v, ok := lookupBool("QUERYWISE_EXPLAIN"); ok {
		c.Assessment.Explain = v
	}

	if v := os.Getenv("QUERYWISE_PROFILE_BACKEND"); v != "" {
		c.Profiles.Backend = v
	}
	if v, ok := lookupInt("QUERYWISE_PROFILE_FLUSH_EVERY"); ok {
		c.Profiles.FlushEvery = v
	}
	if v := os.Getenv("QUERYWISE_BADGER_PATH"); v != "" {
		c.Profiles.BadgerPath = v
	}
	if v := os.Getenv("QUERYWISE_REDIS_ADDR"); v != "" {
		c.Profiles.Redis.Addr = v
	}
	if v := os.Getenv("QUERYWISE_REDIS_PASSWORD"); v != "" {
		c.Profiles.Redis.Password = v
	}
	if v, ok := lookupInt("QUERYWISE_REDIS_DB"); ok {
		c.Profiles.Redis.DB = v
	}

	if v := os.Getenv("QUERYWISE_EXECUTOR_DRIVER"); v != "" {
		c.Executor.Driver = v
	}
	if v := os.Getenv("QUERYWISE_EXECUTOR_DSN"); v != "" {
		c.Executor.DSN = v
	}
	if v, ok := lookupInt("QUERYWISE_EXECUTOR_MAX_ROWS"); ok {
		c.Executor.MaxRows = v
	}

	if v := os.Getenv("QUERYWISE_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("QUERYWISE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("QUERYWISE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("QUERYWISE_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate checks the settings that can be checked without connecting.
// LLM settings are validated only when a collaborator is needed.
func (c Config) Validate() error {
	switch c.Profiles.Backend {
	case BackendSQLite, BackendBadger, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown profile backend: %q", c.Profiles.Backend)
	}
	switch c.Executor.Driver {
	case executor.DriverSQLite, executor.DriverPostgres:
	default:
		return fmt.Errorf("unknown executor driver: %q", c.Executor.Driver)
	}
	if c.Assessment.LoadFactor <= 0 {
		return fmt.Errorf("assessment load_factor must be positive, got %g", c.Assessment.LoadFactor)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}
	return nil
}

func lookupInt(key string) (int, bool) {
	v, err := strconv.Atoi(os.Getenv(key))
	return v, err == nil
}

func lookupFloat(key string) (float64, bool) {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	return v, err == nil
}

func lookupBool(key string) (bool, bool) {
	v, err := strconv.ParseBool(os.Getenv(key))
	return v, err == nil
}

func lookupDuration(key string) (time.Duration, bool) {
	v, err := time.ParseDuration(os.Getenv(key))
	return v, err == nil
}
