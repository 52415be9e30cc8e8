package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig is resolved once at startup and passed by reference into the
// components that need it; there is no other process-wide mode state.
type AppConfig struct {
	Port     int
	BaseURL  string
	TenantID string

	MongoURI      string
	MongoDatabase string
	MongoUser     string
	MongoPassword string
	MongoPoolSize uint64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsServers []string

	JWTSecret []byte

	// RepairMissingChats gates the legacy leniency of healing a missing chat
	// during send instead of failing it.
	RepairMissingChats bool

	UploadLimitBytes int64
	PresenceTTL      time.Duration

	NodeID int64
}

func Default() *AppConfig {
	return &AppConfig{
		Port:               8080,
		BaseURL:            env("PORTAL_BASE_URL", "http://localhost:8080"),
		TenantID:           env("PORTAL_TENANT", "default"),
		MongoURI:           env("PORTAL_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      env("PORTAL_MONGO_DB", "portal"),
		MongoUser:          env("PORTAL_MONGO_USER", ""),
		MongoPassword:      env("PORTAL_MONGO_PASSWORD", ""),
		MongoPoolSize:      20,
		RedisAddr:          env("PORTAL_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:      env("PORTAL_REDIS_PASSWORD", ""),
		RedisDB:            0,
		NatsServers:        []string{env("PORTAL_NATS_URL", "nats://127.0.0.1:4222")},
		JWTSecret:          []byte(env("PORTAL_JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")),
		RepairMissingChats: envBool("PORTAL_REPAIR_MISSING_CHATS", false),
		UploadLimitBytes:   50 * 1024 * 1024,
		PresenceTTL:        2 * time.Minute,
		NodeID:             envInt64("PORTAL_NODE_ID", 100),
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return def
}
