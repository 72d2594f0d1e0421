package main

import (
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	Addr    string
	TLSCert string
	TLSKey  string

	JWTSecret string
	JWTIssuer string

	DBPath  string
	NATSURL string

	MaxMessageSize int64
	PingInterval   time.Duration
	IdleThreshold  time.Duration

	HandshakeRatePerIP float64
	PersistQueueSize   int

	ChatCapacity  int
	ChatRefill    float64
	ReadCapacity  int
	ReadRefill    float64
	EnterCapacity int
	EnterRefill   float64
}

func LoadConfig() *Config {
	return &Config{
		Addr:      envStr("CHAT_ADDR", ":8080"),
		TLSCert:   envStr("CHAT_TLS_CERT", ""),
		TLSKey:    envStr("CHAT_TLS_KEY", ""),
		JWTSecret: envStr("CHAT_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer: envStr("CHAT_JWT_ISSUER", "sessiond"),
		DBPath:    envStr("CHAT_DB_PATH", "sessiond.db"),
		NATSURL:   envStr("CHAT_NATS_URL", ""),

		MaxMessageSize: int64(envInt("CHAT_MAX_MESSAGE_SIZE", 16384)),
		PingInterval:   time.Duration(envInt("CHAT_PING_INTERVAL", 30)) * time.Second,
		IdleThreshold:  time.Duration(envInt("CHAT_IDLE_THRESHOLD", 60)) * time.Second,

		HandshakeRatePerIP: float64(envInt("CHAT_HANDSHAKE_RATE_PER_IP", 10)),
		PersistQueueSize:   envInt("CHAT_PERSIST_QUEUE_SIZE", 1024),

		ChatCapacity:  envInt("CHAT_RATE_CHAT_CAPACITY", 20),
		ChatRefill:    float64(envInt("CHAT_RATE_CHAT_REFILL", 20)),
		ReadCapacity:  envInt("CHAT_RATE_READ_CAPACITY", 10),
		ReadRefill:    float64(envInt("CHAT_RATE_READ_REFILL", 10)),
		EnterCapacity: envInt("CHAT_RATE_ENTER_CAPACITY", 5),
		EnterRefill:   float64(envInt("CHAT_RATE_ENTER_REFILL", 2)),
	}
}

// ActionPolicies builds the per-type bucket policies from config.
// ENTER and LEAVE share one policy shape, as they share one cost.
func (c *Config) ActionPolicies() map[MessageType]ActionPolicy {
	return map[MessageType]ActionPolicy{
		TypeChat:  {Capacity: c.ChatCapacity, Refill: rate.Limit(c.ChatRefill)},
		TypeRead:  {Capacity: c.ReadCapacity, Refill: rate.Limit(c.ReadRefill)},
		TypeEnter: {Capacity: c.EnterCapacity, Refill: rate.Limit(c.EnterRefill)},
		TypeLeave: {Capacity: c.EnterCapacity, Refill: rate.Limit(c.EnterRefill)},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
