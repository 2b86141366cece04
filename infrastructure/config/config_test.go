package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 6, cfg.DefaultListingLimit)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.IsLambda)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cms.yaml")
	writeFile(t, path, `
server:
  requestTimeout: 3s
  enableCors: false
store:
  driver: badger
  badgerPath: /tmp/cms
listing:
  defaultLimit: 9
observability:
  logLevel: debug
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DEFAULT_LISTING_LIMIT", "12")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreBadger, cfg.StoreDriver)
	assert.Equal(t, "/tmp/cms", cfg.BadgerPath)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.EnableCORS)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Environment wins over the file.
	assert.Equal(t, 12, cfg.DefaultListingLimit)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "server: [")
	_, err = LoadFile(bad)
	assert.Error(t, err)

	timeout := filepath.Join(dir, "timeout.yaml")
	writeFile(t, timeout, "server:\n  requestTimeout: soon\n")
	_, err = LoadFile(timeout)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, true},
		{"badger without path", func(c *Config) { c.StoreDriver = StoreBadger; c.BadgerPath = "" }, true},
		{"zero listing limit", func(c *Config) { c.DefaultListingLimit = 0 }, true},
		{"production without secret", func(c *Config) {
			c.Environment = "production"
			c.StoreDriver = StoreDynamoDB
		}, true},
		{"production on memory store", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "s"
		}, true},
		{"production", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "s"
			c.StoreDriver = StoreDynamoDB
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("CMS_TEST_TIMEOUT", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("CMS_TEST_TIMEOUT", time.Second))
	t.Setenv("CMS_TEST_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("CMS_TEST_TIMEOUT", time.Second))
	t.Setenv("CMS_TEST_TIMEOUT", "later")
	assert.Equal(t, time.Second, getEnvDuration("CMS_TEST_TIMEOUT", time.Second))
}

func TestWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cms.yaml")
	writeFile(t, path, "observability:\n  logLevel: info\n")

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "info", w.Current().Observability.LogLevel)

	changed := make(chan string, 4)
	w.OnChange(func(o *Overlay) { changed <- o.Observability.LogLevel })
	w.Start()
	defer w.Stop()

	writeFile(t, path, "observability:\n  logLevel: debug\n")

	select {
	case level := <-changed:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
	assert.Equal(t, "debug", w.Current().Observability.LogLevel)
}
