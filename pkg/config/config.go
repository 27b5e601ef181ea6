package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/events"
	"github.com/go-go-golems/clarinet/pkg/persistence/historystore"
	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "clarinet"
	DefaultAPIURL  = "http://localhost:8000"
	DirName        = ".clarinet"
	ConfigFileName = "config.yaml"
)

type APISettings struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll-interval"`
	SearchMode   string        `yaml:"search-mode"`
}

// Config is the effective configuration: defaults, then config.yaml, CLARINET_*
// variables and flags as resolved by viper.
type Config struct {
	Provider    string                `yaml:"provider"`
	API         APISettings           `yaml:"api"`
	Credentials credentials.Settings  `yaml:"credentials"`
	History     historystore.Settings `yaml:"history"`
	Events      events.Settings       `yaml:"events"`
	// UILogFile receives logs of the interactive commands when --log-file is unset.
	UILogFile string `yaml:"ui-log-file"`
}

// Dir returns ~/.clarinet.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath returns ~/.clarinet/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Provider: string(credentials.OpenRouter),
		API: APISettings{
			URL:          DefaultAPIURL,
			Timeout:      30 * time.Second,
			PollInterval: 3 * time.Second,
			SearchMode:   searchapi.SearchModeQuick,
		},
		Credentials: credentials.Settings{
			Driver:    credentials.DriverFile,
			Path:      filepath.Join(dir, "credentials.yaml"),
			RedisAddr: "localhost:6379",
		},
		History: historystore.Settings{
			Enabled: true,
			Path:    filepath.Join(dir, "history.db"),
		},
		Events:    events.DefaultSettings(),
		UILogFile: filepath.Join(dir, "clarinet.log"),
	}
}

// Keys read from viper. Nested keys match the sections of config.yaml and map
// to CLARINET_* variables with dots and dashes turned into underscores.
const (
	KeyProvider             = "provider"
	KeyAPIURL               = "api.url"
	KeyAPITimeout           = "api.timeout"
	KeyAPIPollInterval      = "api.poll-interval"
	KeyAPISearchMode        = "api.search-mode"
	KeyCredentialsDriver    = "credentials.driver"
	KeyCredentialsPath      = "credentials.path"
	KeyCredentialsRedisAddr = "credentials.redis-addr"
	KeyHistoryEnabled       = "history.enabled"
	KeyHistoryPath          = "history.path"
	KeyEventsRedisEnabled   = "events.redis-enabled"
	KeyEventsRedisAddr      = "events.redis-addr"
	KeyEventsGroup          = "events.group"
	KeyEventsConsumer       = "events.consumer"
	KeyUILogFile            = "ui-log-file"
)

// envAliases are the short variable names accepted next to the derived ones.
var envAliases = map[string][]string{
	KeyAPIPollInterval:      {"CLARINET_POLL_INTERVAL"},
	KeyCredentialsRedisAddr: {"CLARINET_REDIS_ADDR"},
	KeyEventsRedisAddr:      {"CLARINET_REDIS_ADDR"},
}

// ConfigureEnv makes v resolve CLARINET_* variables for every key.
func ConfigureEnv(v *viper.Viper) error {
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return errors.Wrapf(err, "bind env for %s", key)
		}
	}
	return nil
}

// FromViper resolves the configuration from v over Default(dir). Blank values
// keep the default.
func FromViper(v *viper.Viper, dir string) (*Config, error) {
	c := Default(dir)
	str := func(key string, dst *string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		if !v.IsSet(key) {
			return nil
		}
		d, err := toDuration(v.Get(key))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = d
		return nil
	}

	str(KeyProvider, &c.Provider)
	str(KeyAPIURL, &c.API.URL)
	if err := dur(KeyAPITimeout, &c.API.Timeout); err != nil {
		return nil, err
	}
	if err := dur(KeyAPIPollInterval, &c.API.PollInterval); err != nil {
		return nil, err
	}
	str(KeyAPISearchMode, &c.API.SearchMode)
	str(KeyCredentialsDriver, &c.Credentials.Driver)
	str(KeyCredentialsPath, &c.Credentials.Path)
	str(KeyCredentialsRedisAddr, &c.Credentials.RedisAddr)
	flag(KeyHistoryEnabled, &c.History.Enabled)
	str(KeyHistoryPath, &c.History.Path)
	flag(KeyEventsRedisEnabled, &c.Events.RedisEnabled)
	str(KeyEventsRedisAddr, &c.Events.RedisAddr)
	str(KeyEventsGroup, &c.Events.Group)
	str(KeyEventsConsumer, &c.Events.Consumer)
	str(KeyUILogFile, &c.UILogFile)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// toDuration accepts Go durations and bare seconds.
func toDuration(raw interface{}) (time.Duration, error) {
	if s, err := cast.ToStringE(raw); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return time.Duration(n) * time.Second, nil
		}
	}
	return cast.ToDurationE(raw)
}

// LoadDotEnv loads path into the process environment. A missing file is not an error
// and variables already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

func (c *Config) Validate() error {
	if _, err := credentials.ParseProvider(c.Provider); err != nil {
		return err
	}
	if c.API.PollInterval <= 0 {
		return errors.Errorf("api.poll-interval must be positive, got %s", c.API.PollInterval)
	}
	if c.API.Timeout < 0 {
		return errors.Errorf("api.timeout must not be negative, got %s", c.API.Timeout)
	}
	if strings.TrimSpace(c.API.URL) == "" {
		return errors.New("api.url is empty")
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	b, err := yaml.Marshal(c)
	return string(b), errors.Wrap(err, "marshal config")
}
