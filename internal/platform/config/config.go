package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	KafkaBrokers  string
	AuditTopic    string
	JWTSigningKey string
	LogFormat     string
	TxTimeout     time.Duration
}

var defaultTxTimeout = 5 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("GOVERNA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("GOVERNA_AUDIT_TOPIC")
	if topic == "" {
		topic = "governa.audit.events"
	}

	txTimeout := defaultTxTimeout
	if s := os.Getenv("GOVERNA_TX_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			txTimeout = d
		}
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		KafkaBrokers:  os.Getenv("KAFKA_BROKERS"),
		AuditTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		LogFormat:     os.Getenv("LOG_FORMAT"),
		TxTimeout:     txTimeout,
	}
}
