package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	Storage         string
	MySQLDSN        string
	RedisAddr       string
	LogLevel        string
	OverdueSchedule string
	SeedDemo        bool
}

// Load reads the configuration from the environment, falling back to
// defaults suitable for a local MySQL and Redis.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":50051"),
		Storage:         getenv("STORAGE", StorageMySQL),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/bookreservation?parseTime=true"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		OverdueSchedule: getenv("OVERDUE_SCHEDULE", "@every 1h"),
	}

	if cfg.Storage == StorageMySQL && cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}

	if v := os.Getenv("SEED_DEMO"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("SEED_DEMO: %w", err)
		}
		cfg.SeedDemo = seed
	}

	switch cfg.Storage {
	case StorageMySQL, StorageMemory:
	default:
		return Config{}, fmt.Errorf("STORAGE must be %q or %q, got %q", StorageMySQL, StorageMemory, cfg.Storage)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
