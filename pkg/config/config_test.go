package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 252, c.Engine.Window)
	assert.Equal(t, 1.0, c.Engine.RidgeAlpha)
	assert.Equal(t, 0.85, c.Engine.Coverage)
	assert.Equal(t, "^VIX", c.Engine.ShockFactor)
	assert.Equal(t, 0.2, c.Engine.ShockSize)
	assert.Equal(t, "@every 1h", c.Engine.RefreshCron)
	assert.Equal(t, "sqlite", c.Backend.Type)
	assert.Equal(t, 10, c.Redis.PoolSize)
	assert.Equal(t, 1000, c.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, c.Cache.Cleanup)
	assert.NoError(t, c.Validate())
	assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), c.StartDate())
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
engine:
  window: 120
  tail: lower
data:
  source: http
  url: http://prices.local/api
backend:
  type: none
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 120, c.Engine.Window)
	assert.Equal(t, "lower", c.Engine.Tail)
	assert.Equal(t, 1.0, c.Engine.RidgeAlpha)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"window":  "engine:\n  window: 0\n",
		"tail":    "engine:\n  tail: sideways\n",
		"backend": "backend:\n  type: postgres\n",
		"source":  "data:\n  source: ftp\n",
		"url":     "data:\n  source: http\n",
		"kafka":   "kafka:\n  enabled: true\n",
		"archive": "archive:\n  enabled: true\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  window: 60\n"), 0o600))

	t.Setenv("FACTORLENS_WINDOW", "90")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("FACTORLENS_TICKERS", "7203.T,6758.T")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 90, c.Engine.Window)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, []string{"7203.T", "6758.T"}, c.Universe.Tickers)
}

func TestLoadWithEnvMissingFile(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 252, c.Engine.Window)
}
