package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MrEthical07/reelclient"
)

// Settings is the merged reelctl configuration: defaults, then the config
// file, then REELCTL_* environment variables, then flags.
type Settings struct {
	Mode       string          `mapstructure:"mode" yaml:"mode"`
	BaseURL    string          `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Origin     string          `mapstructure:"origin" yaml:"origin,omitempty"`
	Output     string          `mapstructure:"output" yaml:"output"`
	Timeout    time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	RequestIDs bool            `mapstructure:"request_ids" yaml:"request_ids"`
	Verbose    bool            `mapstructure:"verbose" yaml:"verbose"`
	Storage    StorageSettings `mapstructure:"storage" yaml:"storage"`
}

// StorageSettings selects where the session token lives between runs.
type StorageSettings struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	Path        string `mapstructure:"path" yaml:"path,omitempty"`
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix,omitempty"`
	Key         string `mapstructure:"key" yaml:"key"`
}

const (
	envPrefix = "REELCTL"

	driverSQLite = "sqlite"
	driverRedis  = "redis"
	driverMemory = "memory"
)

// HomeDir is ~/.reelctl, or ./.reelctl when the home directory is unknown.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reelctl"
	}
	return filepath.Join(home, ".reelctl")
}

// DefaultConfigPath is the config file read when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(reelclient.ModeDevelopment))
	v.SetDefault("base_url", "")
	v.SetDefault("origin", "")
	v.SetDefault("output", formatTable)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("request_ids", false)
	v.SetDefault("verbose", false)
	v.SetDefault("storage.driver", driverSQLite)
	v.SetDefault("storage.path", filepath.Join(HomeDir(), "session.db"))
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_prefix", "reelctl")
	v.SetDefault("storage.key", reelclient.DefaultStorageKey)
}

// flagKeys maps persistent flag names to settings keys.
var flagKeys = map[string]string{
	"mode":       "mode",
	"base-url":   "base_url",
	"origin":     "origin",
	"output":     "output",
	"timeout":    "timeout",
	"request-id": "request_ids",
	"verbose":    "verbose",
	"storage":    "storage.driver",
}

// LoadSettings merges all configuration sources. An explicit configPath must
// exist; the default path is optional.
func LoadSettings(configPath string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := configPath
	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if configPath != "" || !missing {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, err
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	switch s.Output {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unsupported output %q (want table, json or yaml)", s.Output)
	}
	switch s.Storage.Driver {
	case driverSQLite, driverRedis, driverMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Storage.Driver)
	}
	return nil
}

// ClientConfig converts the settings into a client configuration.
func (s Settings) ClientConfig() reelclient.Config {
	cfg := reelclient.DefaultConfig()
	cfg.Mode = reelclient.Mode(s.Mode)
	cfg.BaseURL = s.BaseURL
	cfg.Origin = s.Origin
	cfg.HTTPTimeout = s.Timeout
	cfg.RequestIDs = s.RequestIDs
	cfg.StorageKey = s.Storage.Key
	cfg.UserAgent = "reelctl"
	return cfg
}
