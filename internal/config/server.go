package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

type Server struct {
	ListenAddr    string
	StorageType   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDB       string
	PollTimeout   time.Duration
	LogLevel      string
	LogFile       string
}

// LoadServer reads the relay settings from the environment. Variables in
// envFile are applied first without overriding ones already set; a missing
// envFile is ignored.
func LoadServer(envFile string) (*Server, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: %s: %w", envFile, err)
		}
	}

	cfg := &Server{
		ListenAddr:    getEnv("LISTEN_ADDR", ":9090"),
		StorageType:   getEnv("STORAGE_TYPE", StorageMemory),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "cipher_chat"),
		PollTimeout:   getEnvAsDuration("POLL_TIMEOUT", 10*time.Minute),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
	}
	return cfg, cfg.Validate()
}

func (c *Server) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageRedis, StorageMongo:
	default:
		return fmt.Errorf("config: unknown STORAGE_TYPE %q", c.StorageType)
	}
	if c.PollTimeout <= 0 {
		return errors.New("config: POLL_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
