package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration for the register service.
type Server struct {
	Addr         string
	DatabaseURL  string
	Redis        RedisConfig
	KafkaBrokers []string
	AuditTopic   string
	Environment  string
	AdminToken   string
}

// RedisConfig holds connection settings for the search index backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PROFREG_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	env := os.Getenv("PROFREG_ENV")
	if env == "" {
		env = "development"
	}

	adminToken := os.Getenv("PROFREG_ADMIN_TOKEN")
	if adminToken == "" {
		// Use a default for development - should be overridden in production
		adminToken = "dev-admin-token-change-in-production"
	}

	auditTopic := os.Getenv("PROFREG_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "profreg.audit"
	}

	var brokers []string
	if raw := os.Getenv("PROFREG_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:         addr,
		DatabaseURL:  os.Getenv("PROFREG_DATABASE_URL"),
		Redis:        redisFromEnv(),
		KafkaBrokers: brokers,
		AuditTopic:   auditTopic,
		Environment:  env,
		AdminToken:   adminToken,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("PROFREG_REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
