package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	AppName  string `mapstructure:"APP_NAME"`
	HTTPPort int    `mapstructure:"HTTP_PORT"`

	// Redis cart store
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Catalog source: a local path or an http(s) URL to the products
	// document.
	CatalogSource string `mapstructure:"CATALOG_SOURCE"`

	// Pricing
	ShippingFlatRate      string `mapstructure:"SHIPPING_FLAT_RATE"`
	FreeShippingThreshold string `mapstructure:"FREE_SHIPPING_THRESHOLD"`

	// GitHub-backed inventory document
	GitHubToken        string `mapstructure:"GITHUB_TOKEN"`
	GitHubRepo         string `mapstructure:"GITHUB_REPO"` // "owner/name"
	GitHubProductsPath string `mapstructure:"GITHUB_PRODUCTS_PATH"`

	// Outbound relays
	MailerLiteAPIToken string `mapstructure:"MAILERLITE_API_TOKEN"`
	MailerLiteGroup    string `mapstructure:"MAILERLITE_GROUP"`
	OrderFormURL       string `mapstructure:"ORDER_FORM_URL"`

	// Dispatch queue
	DispatchDBPath      string        `mapstructure:"DISPATCH_DB_PATH"`
	MigrationsPath      string        `mapstructure:"MIGRATIONS_PATH"`
	DispatchMaxAttempts int           `mapstructure:"DISPATCH_MAX_ATTEMPTS"`
	DispatchInterval    time.Duration `mapstructure:"DISPATCH_INTERVAL"`

	// HTTP timeouts
	ReadTimeout     time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"WRITE_TIMEOUT"`
	RelayTimeout    time.Duration `mapstructure:"RELAY_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// Application settings
	LogLevel string `mapstructure:"LOG_LEVEL"` // e.g., "debug", "info", "warn", "error"
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "storefront")
	viper.SetDefault("HTTP_PORT", 8080)
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("CATALOG_SOURCE", "data/products.json")

	viper.SetDefault("SHIPPING_FLAT_RATE", "4.99")
	viper.SetDefault("FREE_SHIPPING_THRESHOLD", "35.00")

	viper.SetDefault("GITHUB_REPO", "")
	viper.SetDefault("GITHUB_PRODUCTS_PATH", "data/products.json")

	viper.SetDefault("MAILERLITE_GROUP", "Newsletter")
	viper.SetDefault("ORDER_FORM_URL", "")

	viper.SetDefault("DISPATCH_DB_PATH", "dispatch.db")
	viper.SetDefault("MIGRATIONS_PATH", "migrations")
	viper.SetDefault("DISPATCH_MAX_ATTEMPTS", 5)
	viper.SetDefault("DISPATCH_INTERVAL", 5*time.Second)

	viper.SetDefault("READ_TIMEOUT", 10*time.Second)
	viper.SetDefault("WRITE_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_TIMEOUT", 10*time.Second)
	viper.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)

	if err = viper.ReadInConfig(); err == nil {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		log.Info().Msg("No config file found, using environment variables and defaults.")
		err = nil
	} else {
		log.Error().Err(err).Msg("Error reading config file")
		return
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err = viper.Unmarshal(&config)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to decode into struct")
	}

	return
}
