package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the service.
type Config struct {
	Port        string
	Environment string

	// StoreBackend selects the document store adapter: "firestore",
	// "postgres" or "memory".
	StoreBackend     string
	FirestoreProject string
	PostgresDSN      string
	PostgresPoll     time.Duration

	RedisURL string

	AMQPURL      string
	AMQPExchange string
	AuditRouting string

	JWTSecret string

	OTLPEndpoint string
	DebugRoutes  bool
}

// Load reads configuration from the environment, with a best-effort .env
// file for local runs.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	return Config{
		Port:             getEnv("PORT", "8083"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		StoreBackend:     getEnv("STORE_BACKEND", "memory"),
		FirestoreProject: getEnv("FIRESTORE_PROJECT", ""),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		PostgresPoll:     getDuration("POSTGRES_POLL_INTERVAL", time.Second),
		RedisURL:         getEnv("REDIS_URL", ""),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "chatsync.events"),
		AuditRouting:     getEnv("AUDIT_ROUTING_KEY", "audit.chatsync"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		DebugRoutes:      getEnv("DEBUG_ROUTES", "") == "true",
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("invalid duration for %s: %v", key, err)
		return fallback
	}
	return parsed
}
