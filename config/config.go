// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AutoApply AutoApplyConfig
	Log       LogConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// AutoApplyConfig holds startup auto-apply settings.
type AutoApplyConfig struct {
	Enabled bool
	// DelaySeconds before the startup run fires.
	DelaySeconds int
	// Tenant the startup run applies for.
	Tenant string
	// SeedDemo populates the demo dataset on first boot.
	SeedDemo bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Delay converts the configured delay to a duration.
func (c AutoApplyConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// Load reads configuration from file and env. Env var overrides use
// prefix BUDGETEER_, e.g. BUDGETEER_SERVER_PORT=9090.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "budgeteer", "budgeteer.db"))
	v.SetDefault("autoapply.enabled", true)
	v.SetDefault("autoapply.delayseconds", 2)
	v.SetDefault("autoapply.tenant", "demo")
	v.SetDefault("autoapply.seeddemo", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BUDGETEER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "budgeteer"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BUDGETEER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
