package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration, read once at startup and passed
// into constructors. Nothing in the hot path reads the environment.
type Config struct {
	Server     Server
	Database   Database
	Redis      Redis
	Kafka      Kafka
	Token      Token
	Federation Federation
	Retention  Retention
	Integrity  Integrity
}

// Server captures HTTP server level configuration. StoreTimeout bounds the
// audit writer's store calls.
type Server struct {
	Addr         string
	StoreTimeout time.Duration
}

// Database holds Postgres connection settings.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis holds optional Redis settings. An empty URL disables Redis-backed
// stores and the in-memory or Postgres implementations are used instead.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka holds the ops notification channel settings. An empty Brokers value
// disables the notifier.
type Kafka struct {
	Brokers         string
	Topic           string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// Token configures the token issuer. The signing key is read-only after
// startup; rotation is an operational procedure, not a runtime mutation.
type Token struct {
	SigningKey string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Federation configures the OIDC code exchange with an external provider.
// Timeout bounds the provider round-trips independently of store deadlines.
type Federation struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Timeout      time.Duration
}

// Retention is the audit retention policy loaded at startup. It can be
// changed at runtime through the policy update operation; these are only the
// initial values.
type Retention struct {
	ActiveRetention  time.Duration
	ArchiveRetention time.Duration
	TaskInterval     time.Duration
	AutoArchive      bool
	AutoPurge        bool
	MaxStoreBytes    int64
	CompressArchive  bool
	EncryptArchive   bool
	NotifyAddress    string
}

// Integrity holds the Ed25519 signing seed for exportable audit evidence,
// hex-encoded, 32 bytes once decoded. Empty disables signing.
type Integrity struct {
	SigningSeed string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:         envString("TRUSTCORE_ADDR", ":8080"),
			StoreTimeout: envDuration("TRUSTCORE_STORE_TIMEOUT", 5*time.Second),
		},
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Topic:           envString("KAFKA_OPS_TOPIC", "trustcore.ops.events"),
			Acks:            envString("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		},
		Token: Token{
			SigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     envString("TOKEN_ISSUER", "trustcore"),
			Audience:   envString("TOKEN_AUDIENCE", "trustcore-clients"),
			AccessTTL:  envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL: envDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Federation: Federation{
			ClientID:     os.Getenv("FEDERATION_CLIENT_ID"),
			ClientSecret: os.Getenv("FEDERATION_CLIENT_SECRET"),
			AuthURL:      os.Getenv("FEDERATION_AUTH_URL"),
			TokenURL:     os.Getenv("FEDERATION_TOKEN_URL"),
			UserInfoURL:  os.Getenv("FEDERATION_USERINFO_URL"),
			RedirectURL:  os.Getenv("FEDERATION_REDIRECT_URL"),
			Timeout:      envDuration("FEDERATION_TIMEOUT", 10*time.Second),
		},
		Retention: Retention{
			ActiveRetention:  envDuration("AUDIT_ACTIVE_RETENTION", 30*24*time.Hour),
			ArchiveRetention: envDuration("AUDIT_ARCHIVE_RETENTION", 365*24*time.Hour),
			TaskInterval:     envDuration("AUDIT_RETENTION_INTERVAL", time.Hour),
			AutoArchive:      envBool("AUDIT_AUTO_ARCHIVE", true),
			AutoPurge:        envBool("AUDIT_AUTO_PURGE", false),
			MaxStoreBytes:    int64(envInt("AUDIT_MAX_STORE_BYTES", 0)),
			CompressArchive:  envBool("AUDIT_COMPRESS_ARCHIVE", false),
			EncryptArchive:   envBool("AUDIT_ENCRYPT_ARCHIVE", false),
			NotifyAddress:    os.Getenv("AUDIT_NOTIFY_ADDRESS"),
		},
		Integrity: Integrity{
			SigningSeed: os.Getenv("AUDIT_SIGNING_SEED"),
		},
	}
}

func envString(key, fallback string) string {
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
