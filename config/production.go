// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Cache    CacheConfig    `json:"cache"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Pipeline PipelineConfig `json:"pipeline"`
	Logging  LoggingConfig  `json:"logging"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type CacheConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type MQTTConfig struct {
	BrokerURL      string        `json:"broker_url"`
	ClientID       string        `json:"client_id"`
	Namespace      string        `json:"namespace"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	QoS            int           `json:"qos"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	PublishTimeout time.Duration `json:"publish_timeout"`
}

type PipelineConfig struct {
	Workers   int           `json:"workers"`
	MaxJitter time.Duration `json:"max_jitter"`
}

type LoggingConfig struct {
	Dir string `json:"dir"`
}

// LoadProductionConfig loads configuration from the environment, with an
// optional .env file
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "shelfsync"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		MQTT: MQTTConfig{
			BrokerURL:      getEnvString("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:       getEnvString("MQTT_CLIENT_ID", "shelfsync-pipeline"),
			Namespace:      getEnvString("MQTT_NAMESPACE", "esl"),
			Username:       getEnvString("MQTT_USERNAME", ""),
			Password:       getEnvString("MQTT_PASSWORD", ""),
			QoS:            getEnvInt("MQTT_QOS", 1),
			ConnectTimeout: getEnvDuration("MQTT_CONNECT_TIMEOUT", 5*time.Second),
			PublishTimeout: getEnvDuration("MQTT_PUBLISH_TIMEOUT", 2*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:   getEnvInt("PIPELINE_WORKERS", 4),
			MaxJitter: getEnvDuration("PIPELINE_MAX_JITTER", 500*time.Millisecond),
		},
		Logging: LoggingConfig{
			Dir: getEnvString("LOG_DIR", "data"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs from a .env file when present; variables
// already set in the environment win
func loadEnvFile() error {
	f, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if cfg.Cache.Host == "" {
		errors = append(errors, "REDIS_HOST is required")
	}
	if cfg.Cache.Port <= 0 || cfg.Cache.Port > 65535 {
		errors = append(errors, "REDIS_PORT must be between 1 and 65535")
	}

	if cfg.MQTT.BrokerURL == "" {
		errors = append(errors, "MQTT_BROKER_URL is required")
	}
	if cfg.MQTT.Namespace == "" {
		errors = append(errors, "MQTT_NAMESPACE is required")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errors = append(errors, "MQTT_QOS must be 0, 1, or 2")
	}

	if cfg.Pipeline.Workers <= 0 {
		errors = append(errors, "PIPELINE_WORKERS must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

// DSN builds the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Addr returns the redis address
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ListenAddr returns the HTTP listen address
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
