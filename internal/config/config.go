// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the binaries read from the environment. Load it
// once in main after godotenv has had a chance to populate the process env.
type Config struct {
	HTTPAddr string

	DB       DBConfig
	RabbitMQ RabbitMQConfig
	Poller   PollerConfig
	Consumer ConsumerConfig
	Email    EmailConfig
	SMS      SMSConfig
	Push     PushConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the postgres connection string for lib/pq.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RabbitMQConfig struct {
	Host                 string
	Port                 int
	User                 string
	Password             string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

// URL renders the amqp dial string.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

type PollerConfig struct {
	Interval  time.Duration
	BatchSize int
}

type ConsumerConfig struct {
	Queue    string
	Prefetch int
}

type EmailConfig struct {
	Provider  string
	APIKey    string
	FromEmail string
	FromName  string
}

// PushConfig has no real provider integration yet; setting the provider to
// "mock" enables the loopback channel.
type PushConfig struct {
	Provider string
}

type SMSConfig struct {
	Provider   string
	AccountSID string
	AuthToken  string
	SenderID   string
}

// Load reads the environment, applying the same defaults the services have
// always shipped with.
func Load() Config {
	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "bulk_messaging"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:                 getEnv("RABBITMQ_HOST", "127.0.0.1"),
			Port:                 getEnvInt("RABBITMQ_PORT", 5672),
			User:                 getEnv("RABBITMQ_USER", "guest"),
			Password:             getEnv("RABBITMQ_PASSWORD", "guest"),
			MaxReconnectAttempts: getEnvInt("RABBITMQ_MAX_RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:       getEnvDuration("RABBITMQ_RECONNECT_DELAY", time.Second),
		},
		Poller: PollerConfig{
			Interval:  getEnvDuration("POLL_INTERVAL", 5*time.Second),
			BatchSize: getEnvInt("POLL_BATCH_SIZE", 100),
		},
		Consumer: ConsumerConfig{
			Queue:    getEnv("NOTIFICATION_QUEUE", "notification.queue"),
			Prefetch: getEnvInt("CONSUMER_PREFETCH", 1),
		},
		Email: EmailConfig{
			Provider:  getEnv("EMAIL_PROVIDER", "sendgrid"),
			APIKey:    getEnv("EMAIL_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", "noreply@example.com"),
			FromName:  getEnv("EMAIL_FROM_NAME", "Bulk Messaging"),
		},
		Push: PushConfig{
			Provider: getEnv("PUSH_PROVIDER", ""),
		},
		SMS: SMSConfig{
			Provider:   getEnv("SMS_PROVIDER", "twilio"),
			AccountSID: getEnv("SMS_ACCOUNT_SID", ""),
			AuthToken:  getEnv("SMS_AUTH_TOKEN", ""),
			SenderID:   getEnv("SMS_SENDER_ID", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
