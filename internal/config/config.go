package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the proximity hub
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Keycloak  KeycloakConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Proximity ProximityConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MQTTConfig struct {
	BrokerURL      string `mapstructure:"broker_url"`
	ClientID       string `mapstructure:"client_id"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	SightingsTopic string `mapstructure:"sightings_topic"`
}

// ProximityConfig tunes the detection pipeline. The highlight TTL and RSSI
// thresholds are part of the beacon contract and are deliberately not
// configurable here.
type ProximityConfig struct {
	DetectionCooldown  time.Duration `mapstructure:"detection_cooldown"`
	MeetPollInterval   time.Duration `mapstructure:"meet_poll_interval"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	DetectionRetention time.Duration `mapstructure:"detection_retention"`
	IngestBuffer       int           `mapstructure:"ingest_buffer"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("CARDROP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// MQTT defaults
	viper.SetDefault("mqtt.client_id", "cardrop-proximity-hub")
	viper.SetDefault("mqtt.sightings_topic", "cardrop/scanners/+/sightings")

	// Proximity defaults
	viper.SetDefault("proximity.detection_cooldown", "60s")
	viper.SetDefault("proximity.meet_poll_interval", "30s")
	viper.SetDefault("proximity.sweep_interval", "1h")
	viper.SetDefault("proximity.detection_retention", "720h") // 30 days
	viper.SetDefault("proximity.ingest_buffer", 256)
}

func validateConfig(config *Config) error {
	if config.Database.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if config.Keycloak.URL == "" {
		return fmt.Errorf("keycloak URL is required")
	}
	if config.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt broker URL is required")
	}
	if config.Proximity.DetectionCooldown <= 0 {
		return fmt.Errorf("detection cooldown must be positive")
	}
	if config.Proximity.MeetPollInterval <= 0 {
		return fmt.Errorf("meet poll interval must be positive")
	}
	return nil
}
