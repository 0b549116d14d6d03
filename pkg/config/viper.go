// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	appconfig "github.com/JakeFAU/siteclone/internal/config"
)

// ConfigName is the config file base name searched for on disk.
const ConfigName = "siteclone"

// InitConfig prepares v: it loads an optional .env file, registers defaults,
// search paths and environment overrides, then reads the config file.
// cfgFile, when set, bypasses the search paths and must exist. A missing
// file on the search paths is not an error.
func InitConfig(v *viper.Viper, cfgFile, envFile string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	// --- .env ---
	// Values already present in the environment win over the file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load env file %s: %w", envFile, err)
			}
			logger.Debug("no env file", zap.String("path", envFile))
		}
	}

	// --- Defaults ---
	appconfig.SetDefaults(v)

	// --- Environment Variables ---
	v.SetEnvPrefix(appconfig.EnvPrefix) // e.g., SITECLONE_SERVER_URL=https://...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// --- Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		logger.Debug("using config file", zap.String("path", v.ConfigFileUsed()))
		return nil
	}

	v.SetConfigName(ConfigName)
	v.AddConfigPath(".")                // Current working directory
	v.AddConfigPath("$HOME/.siteclone") // User-specific configuration
	v.AddConfigPath("/etc/siteclone/")  // System-wide configuration
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("config file not found; using defaults and environment variables")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	logger.Debug("using config file", zap.String("path", v.ConfigFileUsed()))
	return nil
}
