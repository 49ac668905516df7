package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	SMSGatewayURL   string
	SMSGatewayToken string
	SMTP            SMTPConfig

	SOS SOSConfig
}

// RedisConfig holds connection settings for the optional Redis cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the optional lifecycle event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SMTPConfig holds settings for the email delivery channel.
type SMTPConfig struct {
	Addr string // host:port
	From string
}

// SOSConfig carries the tunables of the SOS lifecycle engine.
type SOSConfig struct {
	MaxTrustedContacts     int
	MaxRecordingDuration   time.Duration
	LocationCacheFreshness time.Duration
	LocationFixTimeout     time.Duration
	PerContactTimeout      time.Duration
	FreeIncidentLimit      int
}

// FromEnv builds a Config from environment variables, applying defaults that
// match the product configuration (5 contacts, 1h recording cap, 5m location
// cache, 10s fix timeout).
func FromEnv() Config {
	return Config{
		Addr:          getenv("AEGIS_ADDR", ":8080"),
		JWTSigningKey: getenv("AEGIS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:      getduration("AEGIS_TOKEN_TTL", time.Hour),

		PostgresURL: os.Getenv("AEGIS_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("AEGIS_REDIS_URL"),
			PoolSize:     getint("AEGIS_REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("AEGIS_REDIS_MIN_IDLE", 2),
			DialTimeout:  getduration("AEGIS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("AEGIS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("AEGIS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("AEGIS_KAFKA_BROKERS")),
			Topic:   getenv("AEGIS_KAFKA_TOPIC", "aegis.incident.events"),
		},

		SMSGatewayURL:   os.Getenv("AEGIS_SMS_GATEWAY_URL"),
		SMSGatewayToken: os.Getenv("AEGIS_SMS_GATEWAY_TOKEN"),
		SMTP: SMTPConfig{
			Addr: os.Getenv("AEGIS_SMTP_ADDR"),
			From: getenv("AEGIS_SMTP_FROM", "alerts@aegis.local"),
		},

		SOS: SOSConfig{
			MaxTrustedContacts:     getint("AEGIS_MAX_TRUSTED_CONTACTS", 5),
			MaxRecordingDuration:   getduration("AEGIS_MAX_RECORDING_DURATION", time.Hour),
			LocationCacheFreshness: getduration("AEGIS_LOCATION_CACHE_FRESHNESS", 5*time.Minute),
			LocationFixTimeout:     getduration("AEGIS_LOCATION_FIX_TIMEOUT", 10*time.Second),
			PerContactTimeout:      getduration("AEGIS_PER_CONTACT_TIMEOUT", 5*time.Second),
			FreeIncidentLimit:      getint("AEGIS_FREE_INCIDENT_LIMIT", 1),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
