package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the portal.
// Tags use mapstructure for Viper unmarshalling; every key can also be set
// through the environment.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	BaseURL     string `mapstructure:"BASE_URL"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Identity provider (Discord-compatible OAuth2 + guild API).
	ProviderClientID     string `mapstructure:"PROVIDER_CLIENT_ID"`
	ProviderClientSecret string `mapstructure:"PROVIDER_CLIENT_SECRET"`
	ProviderBotToken     string `mapstructure:"PROVIDER_BOT_TOKEN"`
	ProviderGuildID      string `mapstructure:"PROVIDER_GUILD_ID"`
	ProviderAPIBaseURL   string `mapstructure:"PROVIDER_API_BASE_URL"`
	ProviderInviteURL    string `mapstructure:"PROVIDER_INVITE_URL"`

	// External collaborators.
	LedgerAPIURL  string `mapstructure:"LEDGER_API_URL"`
	RoleBotURL    string `mapstructure:"ROLE_BOT_URL"`
	RoleBotAPIKey string `mapstructure:"ROLE_BOT_API_KEY"`

	// Secrets.
	AdminAPIKey   string `mapstructure:"ADMIN_API_KEY"`
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"` // 64 hex chars = 32 bytes

	// TTLs in minutes / hours.
	WalletSessionTTLMin int `mapstructure:"WALLET_SESSION_TTL_MIN"`
	OAuthStateTTLMin    int `mapstructure:"OAUTH_STATE_TTL_MIN"`
	UserSessionTTLHour  int `mapstructure:"USER_SESSION_TTL_HOUR"`
	RoleCacheTTLMin     int `mapstructure:"ROLE_CACHE_TTL_MIN"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults, in that order of increasing precedence for env vars.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/walletgate/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/walletgate_dev")
	v.SetDefault("MONGO_DB_NAME", "walletgate_dev")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "walletgate-server")
	v.SetDefault("PROVIDER_API_BASE_URL", "https://discord.com/api")
	v.SetDefault("LEDGER_API_URL", "https://lcd.osmosis.zone")
	v.SetDefault("WALLET_SESSION_TTL_MIN", 15)
	v.SetDefault("OAUTH_STATE_TTL_MIN", 10)
	v.SetDefault("USER_SESSION_TTL_HOUR", 24)
	v.SetDefault("ROLE_CACHE_TTL_MIN", 5)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on env vars and defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
