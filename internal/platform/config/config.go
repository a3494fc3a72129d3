package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration read from the environment.
// Broker behaviour (services, rules, schemas) lives in the YAML documents
// under ConfigDir and is loaded by the catalog package.
type Server struct {
	Addr            string
	ConfigDir       string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ResultCacheTTL  time.Duration
	Redis           RedisConfig
	Kafka           KafkaConfig
}

// RedisConfig configures the optional result cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional request log publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers         []string
	RequestLogTopic string
	ClientID        string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envString("CITEBROKER_ADDR", ":3005"),
		ConfigDir:       envString("CITEBROKER_CONFIG_DIR", "./config"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "text"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ResultCacheTTL:  envDuration("RESULT_CACHE_TTL", 0),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         envList("KAFKA_BROKERS"),
			RequestLogTopic: envString("KAFKA_REQUEST_LOG_TOPIC", "citebroker.requests"),
			ClientID:        envString("KAFKA_CLIENT_ID", "citebroker"),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envDuration accepts Go duration syntax ("30s") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
