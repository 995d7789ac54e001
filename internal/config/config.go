// Package config resolves run settings from flags, PHIVOLCS_* environment
// variables, an optional YAML config file and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pfrederiksen/phivolcs-events/internal/logger"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Setting keys as they appear in the config file
const (
	KeySourceURL          = "source_url"
	KeyDataDir            = "data_dir"
	KeyFilePrefix         = "file_prefix"
	KeyTimeout            = "timeout"
	KeyUserAgent          = "user_agent"
	KeyInsecureSkipVerify = "insecure_skip_verify"
	KeyChronological      = "chronological"
	KeyEnsureCurrent      = "ensure_current"
	KeyLogLevel           = "log_level"
	KeyLogFile            = "log_file"
	KeyMetricsFile        = "metrics_file"
	KeyFormat             = "format"
)

const (
	EnvPrefix      = "PHIVOLCS"
	ConfigFileName = ".phivolcs-events"

	DefaultSourceURL = "https://earthquake.phivolcs.dost.gov.ph/"
	DefaultUserAgent = "phivolcs-events/1.0 (github.com/pfrederiksen/phivolcs-events)"
	DefaultTimeout   = 15 * time.Second
)

// Formats accepted by the format setting
var Formats = []string{"text", "json", "yaml"}

// Config holds the resolved settings of one run
type Config struct {
	SourceURL          string        `mapstructure:"source_url"`
	DataDir            string        `mapstructure:"data_dir"`
	FilePrefix         string        `mapstructure:"file_prefix"`
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Chronological      bool          `mapstructure:"chronological"`
	EnsureCurrent      bool          `mapstructure:"ensure_current"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFile            string        `mapstructure:"log_file"`
	MetricsFile        string        `mapstructure:"metrics_file"`
	Format             string        `mapstructure:"format"`
}

// SetDefaults registers the built-in value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySourceURL, DefaultSourceURL)
	v.SetDefault(KeyDataDir, ".")
	v.SetDefault(KeyFilePrefix, quake.DefaultFilePrefix)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeyInsecureSkipVerify, true)
	v.SetDefault(KeyChronological, false)
	v.SetDefault(KeyEnsureCurrent, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyFormat, "text")
}

// flagKeys maps command-line flag names to setting keys
var flagKeys = map[string]string{
	"source-url":           KeySourceURL,
	"data-dir":             KeyDataDir,
	"file-prefix":          KeyFilePrefix,
	"timeout":              KeyTimeout,
	"user-agent":           KeyUserAgent,
	"insecure-skip-verify": KeyInsecureSkipVerify,
	"chronological":        KeyChronological,
	"ensure-current":       KeyEnsureCurrent,
	"log-level":            KeyLogLevel,
	"log-file":             KeyLogFile,
	"metrics-file":         KeyMetricsFile,
	"format":               KeyFormat,
}

// AddFlags defines the persistent flags shared by every command
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./"+ConfigFileName+".yaml or $HOME/"+ConfigFileName+".yaml)")
	flags.String("source-url", DefaultSourceURL, "PHIVOLCS listing page URL")
	flags.String("data-dir", ".", "Directory holding the monthly CSV partitions")
	flags.String("file-prefix", quake.DefaultFilePrefix, "Partition file name prefix")
	flags.Duration("timeout", DefaultTimeout, "HTTP request timeout")
	flags.String("user-agent", DefaultUserAgent, "User-Agent header sent to the source")
	flags.Bool("insecure-skip-verify", true, "Skip TLS certificate verification (the source serves an incomplete chain)")
	flags.Bool("chronological", false, "Append new records oldest first instead of in source order")
	flags.Bool("ensure-current", false, "Create the current month's partition even when nothing is new")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also append logs to this file")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.String("format", "text", "Output format: "+strings.Join(Formats, ", "))
}

// BindFlags makes explicitly set flags override every other source
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file and environment into v and returns the resolved Config.
// An explicitly named config file must exist; the default locations are optional.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings a run cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourceURL) == "" {
		return fmt.Errorf("invalid config: %s must not be empty", KeySourceURL)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("invalid config: %s must not be empty", KeyDataDir)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid config: %s must be positive, got %s", KeyTimeout, c.Timeout)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	format := strings.ToLower(c.Format)
	for _, f := range Formats {
		if format == f {
			c.Format = format
			return nil
		}
	}
	return fmt.Errorf("invalid config: format %q (must be one of %s)", c.Format, strings.Join(Formats, ", "))
}

// Level returns the parsed log level
func (c *Config) Level() logger.Level {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.LevelInfo
	}
	return level
}
