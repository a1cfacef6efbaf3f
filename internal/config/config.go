// Package config loads process configuration from the environment, reading
// a .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/aderut/moridam/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Logger   logger.Config
	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Cart     CartConfig
	Delivery DeliveryConfig
	Notify   NotifyConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080"`
	GRPCHealthPort     string        `envconfig:"GRPC_HEALTH_PORT" default:"50051"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxRequestBodySize int64         `envconfig:"MAX_REQUEST_BODY_SIZE" default:"1048576"`
	SecureCookies      bool          `envconfig:"SECURE_COOKIES" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"moridam"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"moridam"`
	DBName   string `envconfig:"POSTGRES_DB" default:"moridam"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

type MongoConfig struct {
	URI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database string `envconfig:"MONGO_DATABASE" default:"moridam"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"order-placed"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"moridam-notifier"`
}

type CatalogConfig struct {
	DBPath string `envconfig:"CATALOG_DB_PATH" default:"moridam-catalog.db"`
}

// CartConfig bounds how long idle session carts stay in memory.
type CartConfig struct {
	IdleTTL       time.Duration `envconfig:"CART_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"CART_SWEEP_INTERVAL" default:"1m"`
}

type DeliveryConfig struct {
	ORSAPIKey  string `envconfig:"ORS_API_KEY"`
	ORSBaseURL string `envconfig:"ORS_BASE_URL" default:"https://api.openrouteservice.org"`
}

type NotifyConfig struct {
	WhatsAppNumber string `envconfig:"WHATSAPP_NUMBER" default:"2348161637306"`
}

type AdminConfig struct {
	Token string `envconfig:"ADMIN_TOKEN"`
}

// Load reads envFile (if present) into the environment and parses Config.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	// Sections are processed one by one so variable names carry no
	// section prefix.
	var cfg Config
	sections := []interface{}{
		&cfg.Server, &cfg.Logger, &cfg.Postgres, &cfg.Mongo, &cfg.Redis,
		&cfg.Kafka, &cfg.Catalog, &cfg.Cart, &cfg.Delivery, &cfg.Notify, &cfg.Admin,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("parse environment: %w", err)
		}
	}
	return &cfg, nil
}
