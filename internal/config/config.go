// Package config loads lockbox configuration from defaults, a lockbox.yaml
// file, LOCKBOX_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName  = "lockbox"
	fileName = "lockbox.yaml"
)

// Config is the full lockbox configuration.
type Config struct {
	DataDir string        `mapstructure:"data_dir" yaml:"data_dir"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Breach  BreachConfig  `mapstructure:"breach" yaml:"breach"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	TOTP    TOTPConfig    `mapstructure:"totp" yaml:"totp"`
}

type StorageConfig struct {
	// Backend is one of memory, bbolt, sqlite or postgres.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// DSN is a file path for bbolt and sqlite, a connection string for
	// postgres. Empty means a default file under DataDir.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type BreachConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Padding  bool          `mapstructure:"padding" yaml:"padding"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	TLSCert     string        `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey      string        `mapstructure:"tls_key" yaml:"tls_key"`
}

type TOTPConfig struct {
	Issuer string `mapstructure:"issuer" yaml:"issuer"`
}

// Defaults returns the default value of every key.
func Defaults() map[string]any {
	return map[string]any{
		"data_dir":            defaultDataDir(),
		"storage.backend":     "bbolt",
		"storage.dsn":         "",
		"log.level":           "info",
		"log.format":          "text",
		"breach.endpoint":     "https://api.pwnedpasswords.com/range/",
		"breach.delay":        "200ms",
		"breach.timeout":      "10s",
		"breach.padding":      true,
		"server.addr":         "127.0.0.1:7878",
		"server.idle_timeout": "5m",
		"server.tls_cert":     "",
		"server.tls_key":      "",
		"totp.issuer":         "Lockbox",
	}
}

// FlagKeys maps command-line flag names to the configuration key they set.
var FlagKeys = map[string]string{
	"data-dir":     "data_dir",
	"backend":      "storage.backend",
	"dsn":          "storage.dsn",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"addr":         "server.addr",
	"idle-timeout": "server.idle_timeout",
	"tls-cert":     "server.tls_cert",
	"tls-key":      "server.tls_key",
	"breach-delay": "breach.delay",
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return "./data"
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Lockbox")
		default:
			configDir = "/etc/lockbox"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, appName)
	}
	return filepath.Join(configDir, fileName), nil
}

// LoadConfig reads configuration into a T. configFile, when non-empty, is
// read instead of searching the standard locations. Flags on cmd listed in
// FlagKeys override everything else when set.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(appName)
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return c, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range FlagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// Load is LoadConfig for Config with Defaults, followed by Validate.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	c, err := LoadConfig[Config](cmd, Defaults(), configFile)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

var backends = []string{"memory", "bbolt", "sqlite", "postgres"}

// MinBreachDelay is the smallest accepted spacing between breach lookups.
const MinBreachDelay = 100 * time.Millisecond

// Validate checks values that cannot be expressed as defaults.
func (c Config) Validate() error {
	var errs []error
	if !contains(backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend must be one of %s, got %q", strings.Join(backends, ", "), c.Storage.Backend))
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn is required for the postgres backend"))
	}
	if c.Breach.Delay < MinBreachDelay {
		errs = append(errs, fmt.Errorf("breach.delay must be at least %s, got %s", MinBreachDelay, c.Breach.Delay))
	}
	if c.Breach.Timeout <= 0 {
		errs = append(errs, errors.New("breach.timeout must be positive"))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.addr: %w", err))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// StoragePath returns the DSN, or the default file for file-backed backends.
func (c Config) StoragePath() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	switch c.Storage.Backend {
	case "sqlite":
		return filepath.Join(c.DataDir, "lockbox.sqlite")
	default:
		return filepath.Join(c.DataDir, "lockbox.db")
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// WriteConfigFile writes c as YAML to path, or to the user (or system)
// config location when path is empty. It returns the path written.
func WriteConfigFile[T any](c *T, path string, system bool) (string, error) {
	if path == "" {
		p, err := getConfigPath(system)
		if err != nil {
			return "", err
		}
		path = p
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
