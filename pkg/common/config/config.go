package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	StudyServicePort    string
	AnalysisServicePort string
	ServerHost          string
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBody      int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	KafkaEventTopic string

	// Platform properties file (yaml)
	PropertiesPath string
}

func Load() *Config {
	return &Config{
		StudyServicePort:    getEnv("STUDY_SERVICE_PORT", "8080"),
		AnalysisServicePort: getEnv("ANALYSIS_SERVICE_PORT", "8081"),
		ServerHost:          getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:         getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody:      int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "preclinical"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "preclinical123"),
		PostgresDB:       getEnv("POSTGRES_DB", "preclinical"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaEventTopic: getEnv("KAFKA_EVENT_TOPIC", "preclinical.lifecycle-events"),

		PropertiesPath: getEnv("PLATFORM_PROPERTIES_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
