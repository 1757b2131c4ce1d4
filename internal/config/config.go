// Package config loads finder settings from a YAML file, a .env file and
// FINDER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "FINDER"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON}

// Config holds finder settings.
type Config struct {
	DB               string `mapstructure:"db"`
	LookupLimit      int    `mapstructure:"lookup_limit"`
	GraphLookupLimit int    `mapstructure:"graph_lookup_limit"`
	LogLevel         string `mapstructure:"log_level"`
	Format           string `mapstructure:"format"`
	CacheSize        int    `mapstructure:"cache_size"`
}

var defaults = map[string]any{
	"db":                 "finder.db",
	"lookup_limit":       10000,
	"graph_lookup_limit": 10000,
	"log_level":          "info",
	"format":             FormatText,
	"cache_size":         4096,
}

// Load reads configuration. With an explicit path that file must exist;
// otherwise finder.yaml in the working directory is used when present.
// Precedence, highest first: FINDER_* environment, .env in the working
// directory, the config file, defaults.
func Load(path string) (*Config, error) {
	return load(path, ".")
}

func load(path, dir string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("finder")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyDotEnv(v, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDotEnv copies FINDER_* entries of a .env file into v unless the
// process environment already sets them. A missing file is not an error.
func applyDotEnv(v *viper.Viper, path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	prefix := EnvPrefix + "_"
	for name, val := range env {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(strings.ToLower(strings.TrimPrefix(name, prefix)), val)
	}
	return nil
}

// Validate rejects negative limits and unknown formats or log levels.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db must not be empty"))
	}
	if c.LookupLimit < 0 {
		errs = append(errs, fmt.Errorf("lookup_limit must be >= 0, got %d", c.LookupLimit))
	}
	if c.GraphLookupLimit < 0 {
		errs = append(errs, fmt.Errorf("graph_lookup_limit must be >= 0, got %d", c.GraphLookupLimit))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must be >= 0, got %d", c.CacheSize))
	}
	if !slices.Contains(Formats, c.Format) {
		errs = append(errs, fmt.Errorf("format must be one of %v, got %q", Formats, c.Format))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
