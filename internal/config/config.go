package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"heavy-image-compressor/internal/compressor"
	"heavy-image-compressor/internal/logger"
)

// EnvPrefix is the prefix of every environment variable read by the tool.
const EnvPrefix = "HEAVY_COMPRESSOR"

// Config represents the main configuration structure
type Config struct {
	TargetMB     float64       `mapstructure:"target_mb"`
	MinQuality   int           `mapstructure:"min_quality"`
	Overwrite    bool          `mapstructure:"overwrite"`
	ShowProgress bool          `mapstructure:"show_progress"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	logDefaults := logger.DefaultConfig()
	return &Config{
		TargetMB:     compressor.DefaultTargetMB,
		MinQuality:   compressor.DefaultMinQuality,
		Overwrite:    false,
		ShowProgress: true,
		Logging: LoggingConfig{
			Level:      logDefaults.Level,
			FilePath:   logDefaults.FilePath,
			MaxSize:    logDefaults.MaxSize,
			MaxBackups: logDefaults.MaxBackups,
			MaxAge:     logDefaults.MaxAge,
			Compress:   logDefaults.Compress,
			Console:    logDefaults.Console,
		},
	}
}

// LoadConfig loads configuration from file, .env and environment variables.
// An empty configPath searches the usual locations; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.heavy-compressor")
		v.AddConfigPath("/etc/heavy-compressor")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so that environment variables are picked
// up by Unmarshal even when no config file mentions them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("target_mb", d.TargetMB)
	v.SetDefault("min_quality", d.MinQuality)
	v.SetDefault("overwrite", d.Overwrite)
	v.SetDefault("show_progress", d.ShowProgress)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file_path", d.Logging.FilePath)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.console", d.Logging.Console)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TargetMB <= 0 {
		return fmt.Errorf("target_mb must be positive, got %v", c.TargetMB)
	}

	if c.MinQuality < 1 || c.MinQuality > 100 {
		return fmt.Errorf("min_quality must be between 1 and 100, got %d", c.MinQuality)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Logging.MaxSize <= 0 {
		c.Logging.MaxSize = logger.DefaultConfig().MaxSize
	}

	return nil
}
