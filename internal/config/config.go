package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings for the server, read from the
// environment with Docker-friendly defaults.
type Config struct {
	// HTTPAddr is the listen address for the REST API.
	HTTPAddr string

	// StorageBackend selects the benefit store: "postgres" or "memory".
	StorageBackend string

	// DatabaseConnStr is the Postgres connection string, used when
	// StorageBackend is "postgres".
	DatabaseConnStr string

	// KafkaBrokers lists broker addresses for transfer event
	// publication. Empty disables publication.
	KafkaBrokers []string

	// SeedFixtures loads the initial benefit fixtures on startup.
	SeedFixtures bool
}

// Load reads configuration from the environment, loading a .env file
// first when one is present.
func Load() Config {
	// Missing .env is fine; explicit environment wins anyway.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StorageBackend: getEnv("STORAGE_BACKEND", "memory"),
		SeedFixtures:   getEnv("SEED_FIXTURES", "true") == "true",
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.DatabaseConnStr = os.Getenv("DB_CONN_STR")
	if cfg.DatabaseConnStr == "" {
		// If the explicit string is missing, build it from individual vars (Docker friendly)
		cfg.DatabaseConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
			getEnv("DB_NAME", "benefitflow"),
		)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
