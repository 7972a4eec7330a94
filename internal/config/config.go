/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	DwollaAPIBaseURL      string `mapstructure:"DWOLLA_API_BASE_URL"`
	DwollaAPIKey          string `mapstructure:"DWOLLA_API_KEY"`
	DwollaAPISecret       string `mapstructure:"DWOLLA_API_SECRET"`
	WebhookBaseURL        string `mapstructure:"WEBHOOK_BASE_URL"`
	SessionJWKSURL        string `mapstructure:"SESSION_JWKS_URL"`
	InternalAPIKey        string `mapstructure:"INTERNAL_API_KEY"`
	SecretEncryptionKey   string `mapstructure:"SECRET_ENCRYPTION_KEY"`
	AlertGatewayURL       string `mapstructure:"ALERT_GATEWAY_URL"`
	AlertGatewayAPIKey    string `mapstructure:"ALERT_GATEWAY_API_KEY"`
	TransferPollSchedule  string `mapstructure:"TRANSFER_POLL_SCHEDULE"`
	TransferPollBatchSize int    `mapstructure:"TRANSFER_POLL_BATCH_SIZE"`
}

// WebhookEndpointURL is the full public URL Dwolla should deliver webhooks to.
func (c Config) WebhookEndpointURL() string {
	return strings.TrimSuffix(c.WebhookBaseURL, "/") + "/api/dwolla/webhook"
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DWOLLA_API_BASE_URL", "https://api-sandbox.dwolla.com")
	viper.SetDefault("TRANSFER_POLL_SCHEDULE", "*/5 * * * *")
	viper.SetDefault("TRANSFER_POLL_BATCH_SIZE", 100)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMENT_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("DWOLLA_API_BASE_URL")
	_ = viper.BindEnv("DWOLLA_API_KEY")
	_ = viper.BindEnv("DWOLLA_API_SECRET")
	_ = viper.BindEnv("WEBHOOK_BASE_URL")
	_ = viper.BindEnv("SESSION_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PAYMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SECRET_ENCRYPTION_KEY")
	_ = viper.BindEnv("ALERT_GATEWAY_URL")
	_ = viper.BindEnv("ALERT_GATEWAY_API_KEY")
	_ = viper.BindEnv("TRANSFER_POLL_SCHEDULE")
	_ = viper.BindEnv("TRANSFER_POLL_BATCH_SIZE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PAYMENT_SERVICE_INTERNAL_API_KEY"))
	}
	if config.TransferPollBatchSize <= 0 {
		config.TransferPollBatchSize = 100
	}

	return
}
