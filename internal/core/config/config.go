package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Database holds the order store connection settings.
	Database DatabaseConfig `mapstructure:",squash"`

	// Redis holds the shared rate-limit counter settings.
	Redis RedisConfig `mapstructure:",squash"`

	// Provider holds the SMM provider API settings.
	Provider ProviderConfig `mapstructure:",squash"`

	// Sync holds the scheduled reconciliation settings.
	Sync SyncConfig `mapstructure:",squash"`

	// Proxy holds the optional outbound proxy for provider calls.
	Proxy ProxyConfig `mapstructure:",squash"`
}

// ProviderConfig holds the endpoint and credentials of the SMM panel.
type ProviderConfig struct {
	// Host is the single API endpoint every action is posted to.
	Host string `mapstructure:"SMM_PROVIDER_HOST" default:"https://smmlite.com/api/v2"`
	// Key is the API key sent as the "key" field of every payload.
	Key string `mapstructure:"SMM_PROVIDER_KEY" required:"true"`
}

// DatabaseConfig holds database connection details.
type DatabaseConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver string `mapstructure:"DB_DRIVER" default:"sqlite"`
	// DSN is the driver specific connection string (a file path for sqlite).
	DSN string `mapstructure:"DB_DSN" default:"orders.db"`
}

// RedisConfig holds the Redis connection used by the rate limiter.
type RedisConfig struct {
	// URL in the format redis://[:password@]host[:port][/database].
	// Empty means the process-local limiter is used.
	URL string `mapstructure:"REDIS_URL"`
}

// SyncConfig controls the periodic status reconciliation job.
type SyncConfig struct {
	// Schedule is a robfig/cron spec, e.g. "@every 5m".
	Schedule string `mapstructure:"SYNC_SCHEDULE" default:"@every 5m"`
	// BatchSize is the number of orders sent in one status request.
	BatchSize int `mapstructure:"SYNC_BATCH_SIZE" default:"100"`
}

// ProxyConfig mirrors proxy.Settings for env loading.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"PROXY_ENABLED" default:"false"`
	Hostname string `mapstructure:"PROXY_HOST"`
	Port     int    `mapstructure:"PROXY_PORT"`
	Username string `mapstructure:"PROXY_USERNAME"`
	Password string `mapstructure:"PROXY_PASSWORD"`
}

// IsDevelopment reports whether debug-only behavior should be enabled.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	if config.Database.Driver != "sqlite" && config.Database.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", config.Database.Driver)
	}

	if config.Sync.BatchSize <= 0 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be > 0")
	}

	return &config, nil
}

// processTags binds every tagged field to its env var and registers defaults.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}

		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}

		if defaultValue := field.Tag.Get("default"); defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		if field.Tag.Get("required") == "true" && val.Field(i).IsZero() {
			return fmt.Errorf("missing required configuration: %s", field.Tag.Get("mapstructure"))
		}
	}
	return nil
}
