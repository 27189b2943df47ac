package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN builds a lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// MQTTConfig push channel broker settings
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// MailConfig transactional mail API settings (email channel)
type MailConfig struct {
	Enabled bool
	APIURL  string
	APIKey  string
	From    string
}

// AuthConfig bearer token verification
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// Config agrikonek-data (HTTP API) configuration
type Config struct {
	HTTP struct {
		Addr           string
		RequestTimeout time.Duration
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Mail      MailConfig
	Auth      AuthConfig
	Log       struct {
		Level  string
		Format string
	}
	Notify struct {
		Stream  string
		Workers int
		Queue   int
	}
	IdempotencyTTL      time.Duration
	SeedFallbackEnabled bool
}

// Load reads an optional .env file and then the process environment.
// Secrets have no defaults; call Validate before serving.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.RequestTimeout = parseDuration(getEnv("HTTP_REQUEST_TIMEOUT", "10s"), 10*time.Second)

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Database = getEnv("DB_NAME", "agrikonek")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "agrikonek-data")
	cfg.MQTT.Username = os.Getenv("MQTT_USERNAME")
	cfg.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "agrikonek")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Mail.Enabled = getEnv("MAIL_ENABLED", "false") == "true"
	cfg.Mail.APIURL = getEnv("MAIL_API_URL", "http://localhost:8025")
	cfg.Mail.APIKey = os.Getenv("MAIL_API_KEY")
	cfg.Mail.From = getEnv("MAIL_FROM", "no-reply@agrikonek.local")

	cfg.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.Auth.Issuer = getEnv("AUTH_JWT_ISSUER", "agrikonek")
	cfg.Auth.TokenTTL = parseDuration(getEnv("AUTH_TOKEN_TTL", "12h"), 12*time.Hour)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "agrikonek:notifications:deliveries")
	cfg.Notify.Workers = parseInt(getEnv("NOTIFY_WORKERS", "4"), 4)
	cfg.Notify.Queue = parseInt(getEnv("NOTIFY_QUEUE", "256"), 256)

	cfg.IdempotencyTTL = parseDuration(getEnv("IDEMPOTENCY_TTL", "24h"), 24*time.Hour)
	cfg.SeedFallbackEnabled = getEnv("SEED_FALLBACK_ENABLED", "true") == "true"

	return cfg
}

// Validate rejects configurations the server must not start with
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	} else if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be at least 32 bytes"))
	}
	if c.DBEnabled && c.Database.Password == "" && c.Database.SSLMode != "disable" {
		errs = append(errs, errors.New("DB_PASSWORD is required when DB_SSLMODE is enabled"))
	}
	if c.Mail.Enabled && c.Mail.APIKey == "" {
		errs = append(errs, errors.New("MAIL_API_KEY is required when MAIL_ENABLED=true"))
	}
	if c.Notify.Workers <= 0 {
		errs = append(errs, errors.New("NOTIFY_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
