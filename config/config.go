package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration parameters for the application.
type Config struct {
	DatabaseURL       string
	ServerPort        int
	SchedulerInterval time.Duration
}

// Load reads configuration from environment variables.
// A .env file is loaded if present, which is handy for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	intervalStr := os.Getenv("SCHEDULER_INTERVAL")
	if intervalStr == "" {
		intervalStr = "30s"
	}
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL environment variable: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %v", interval)
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		ServerPort:        port,
		SchedulerInterval: interval,
	}

	return cfg, nil
}
