package config

import (
	"os"
	"strings"
	"time"

	"vaultd/internal/domain"
)

// Server captures process level configuration so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string

	// VaultAccount is the identity under which the vault custodies
	// underlying assets at the token service.
	VaultAccount domain.Identity

	// Owner is the initial owning authority. Transferable at runtime.
	Owner domain.Identity

	// StrategyAuthority is the initial strategy authority. Optional;
	// updatable at runtime by the owner.
	StrategyAuthority domain.Identity

	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig

	TokenServiceURL string
	RelayerURL      string
}

// RedisConfig holds connection settings for the batch idempotency store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the vault event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("VAULTD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_EVENTS_TOPIC")
	if topic == "" {
		topic = "vaultd.events"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		VaultAccount:      domain.NormalizeIdentity(envOr("VAULTD_ACCOUNT", "vaultd")),
		Owner:             domain.NormalizeIdentity(os.Getenv("VAULTD_OWNER")),
		StrategyAuthority: domain.NormalizeIdentity(os.Getenv("VAULTD_STRATEGY_AUTHORITY")),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		TokenServiceURL: os.Getenv("TOKEN_SERVICE_URL"),
		RelayerURL:      os.Getenv("RELAYER_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
