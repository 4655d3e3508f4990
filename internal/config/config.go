package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config carries the CLI-wide settings. Values come from bndl.yaml (cwd or
// home directory), overridden by flags in the root command.
type Config struct {
	Database   string `mapstructure:"database"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
	NoProgress bool   `mapstructure:"no_progress"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	viper.SetDefault("database", "bndl.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("no_progress", false)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName("bndl")
		viper.SetConfigType("yaml")
	}

	// Config file handling is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}

	return &cfg, nil
}

func validateLogLevel(level string) error {
	switch level {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", level)
}
