package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	want := Default()
	want.ApplyEnv()
	assert.Equal(t, want, cfg)
	assert.Equal(t, 2.0, Default().Assessment.LoadFactor)
	assert.Equal(t, 8*time.Second, Default().Assessment.DelegationTimeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  timeout: 45s
assessment:
  load_factor: 1.5
  delegate: true
  delegation_timeout: 3s
profiles:
  backend: badger
  badger_path: /tmp/profiles
executor:
  driver: postgres
  dsn: postgres://localhost/shop
log:
  format: json
`), 0o600))

	t.Setenv("QUERYWISE_PROFILE_BACKEND", "redis")
	t.Setenv("QUERYWISE_REDIS_ADDR", "cache:6379")
	t.Setenv("QUERYWISE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1.5, cfg.Assessment.LoadFactor)
	assert.True(t, cfg.Assessment.Delegate)
	assert.Equal(t, 3*time.Second, cfg.Assessment.DelegationTimeout)
	assert.True(t, cfg.Assessment.Explain, "unset keys keep their defaults")
	assert.Equal(t, BackendRedis, cfg.Profiles.Backend)
	assert.Equal(t, "/tmp/profiles", cfg.Profiles.BadgerPath)
	assert.Equal(t, "cache:6379", cfg.Profiles.Redis.Addr)
	assert.Equal(t, "postgres", cfg.Executor.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Profiles.Backend = BackendMemory
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, got.Profiles.Backend)
	assert.Equal(t, cfg.Assessment.DelegationTimeout, got.Assessment.DelegationTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad backend", func(c *Config) { c.Profiles.Backend = "mongo" }, true},
		{"bad driver", func(c *Config) { c.Executor.Driver = "mysql" }, true},
		{"zero load factor", func(c *Config) { c.Assessment.LoadFactor = 0 }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("QUERYWISE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, "/cfg/querywise/config.yaml", DefaultPath())

	t.Setenv("QUERYWISE_CONFIG", "/etc/qw.yaml")
	assert.Equal(t, "/etc/qw.yaml", DefaultPath())
}
