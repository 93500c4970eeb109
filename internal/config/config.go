package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr          string
	TicketLockTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderEvents string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds the postgres connection string, unless POSTGRES_DSN overrides it.
func (d DatabaseConfig) DSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type SchedulerConfig struct {
	SweepInterval    time.Duration
	CartExpiry       time.Duration
	NotifyBufferSize int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			TicketLockTTL: time.Duration(getEnvInt("TICKET_LOCK_TTL_MINUTES", 5)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				OrderEvents: getEnv("KAFKA_TOPIC_ORDER_EVENTS", "raffle.orders.events"),
			},
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "raffle_user"),
			Password:     getEnv("DB_PASSWORD", "raffle_pass"),
			Database:     getEnv("DB_NAME", "raffle_service"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Scheduler: SchedulerConfig{
			SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			CartExpiry:       time.Duration(getEnvInt("CART_EXPIRY_MINUTES", 10)) * time.Minute,
			NotifyBufferSize: getEnvInt("NOTIFY_BUFFER_SIZE", 128),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
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
