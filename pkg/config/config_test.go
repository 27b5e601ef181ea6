package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, ConfigureEnv(v))
	return v
}

func TestDefault(t *testing.T) {
	c := Default("/home/u/.clarinet")
	require.Equal(t, "http://localhost:8000", c.API.URL)
	require.Equal(t, 3*time.Second, c.API.PollInterval)
	require.Equal(t, "openrouter", c.Provider)
	require.Equal(t, "/home/u/.clarinet/credentials.yaml", c.Credentials.Path)
	require.Equal(t, "/home/u/.clarinet/clarinet.log", c.UILogFile)
	require.NoError(t, c.Validate())
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("CLARINET_API_URL", "https://search.example")
	t.Setenv("CLARINET_PROVIDER", "ollama")
	t.Setenv("CLARINET_POLL_INTERVAL", "5")
	t.Setenv("CLARINET_CREDENTIALS_DRIVER", "sqlite")
	t.Setenv("CLARINET_REDIS_ADDR", "redis:6379")
	t.Setenv("CLARINET_HISTORY_PATH", "   ")
	t.Setenv("CLARINET_EVENTS_REDIS_ENABLED", "true")

	dir := t.TempDir()
	c, err := FromViper(newViper(t), dir)
	require.NoError(t, err)
	require.Equal(t, "https://search.example", c.API.URL)
	require.Equal(t, "ollama", c.Provider)
	require.Equal(t, 5*time.Second, c.API.PollInterval)
	require.Equal(t, "sqlite", c.Credentials.Driver)
	require.Equal(t, "redis:6379", c.Credentials.RedisAddr)
	require.Equal(t, "redis:6379", c.Events.RedisAddr)
	require.True(t, c.Events.RedisEnabled)
	require.Equal(t, filepath.Join(dir, "history.db"), c.History.Path)

	t.Setenv("CLARINET_POLL_INTERVAL", "")
	t.Setenv("CLARINET_API_POLL_INTERVAL", "250ms")
	c, err = FromViper(newViper(t), dir)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, c.API.PollInterval)

	t.Setenv("CLARINET_API_POLL_INTERVAL", "soon")
	_, err = FromViper(newViper(t), dir)
	require.ErrorContains(t, err, "api.poll-interval")
}

func TestFromViper_ConfigFile(t *testing.T) {
	v := newViper(t)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
provider: ollama
api:
  url: http://backend:9000
  poll-interval: 1s
credentials:
  driver: memory
history:
  enabled: false
`)))

	c, err := FromViper(v, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "ollama", c.Provider)
	require.Equal(t, "http://backend:9000", c.API.URL)
	require.Equal(t, time.Second, c.API.PollInterval)
	require.Equal(t, "memory", c.Credentials.Driver)
	require.False(t, c.History.Enabled)
	require.Equal(t, 30*time.Second, c.API.Timeout)

	out, err := c.YAML()
	require.NoError(t, err)
	require.Contains(t, out, "url: http://backend:9000")
}

func TestFromViper_ValuesOverrideFile(t *testing.T) {
	v := newViper(t)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("provider: ollama\n")))
	v.Set(KeyProvider, "anthropic")

	_, err := FromViper(v, t.TempDir())
	require.ErrorContains(t, err, "anthropic")
}

func TestValidate(t *testing.T) {
	c := Default(t.TempDir())
	c.Provider = "anthropic"
	require.Error(t, c.Validate())

	c = Default(t.TempDir())
	c.API.PollInterval = 0
	require.Error(t, c.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, LoadDotEnv(path))

	require.NoError(t, os.WriteFile(path, []byte("CLARINET_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("CLARINET_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CLARINET_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv("CLARINET_TEST_DOTENV"))
}
