// Package config loads the inventory service settings from the environment.
// Every field carries its variable name and default in struct tags, and the
// whole set is validated once at startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Auth     AuthConfig
	Archive  ArchiveConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so import progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	// Driver is one of mongo, postgres, memory (default: mongo)
	Driver string `env:"STORE_DRIVER" default:"mongo"`

	MongoURI      string `env:"MONGO_URI" envAlt:"MONGODB_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" default:"inventory"`

	// PostgresURL supports both DATABASE_URL and DB_URL.
	PostgresURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"STORE_MAX_CONNS" default:"20"`
	MinConns        int           `env:"STORE_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"STORE_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"STORE_MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `env:"STORE_CONNECT_TIMEOUT" default:"10s"`
}

// ImportConfig holds bulk product import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted spreadsheet size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the number of import jobs allowed to run at once (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a whole import job (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// ResultRetention is how long finished jobs stay queryable (default: 5m)
	ResultRetention time.Duration `env:"IMPORT_RESULT_RETENTION" default:"5m"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`

	// LoginLimit is requests per minute for the sign-in endpoint (default: 10)
	LoginLimit int `env:"RATE_LIMIT_LOGIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// SecureCookies marks the session cookie Secure (default: false for local dev)
	SecureCookies bool `env:"SECURITY_SECURE_COOKIES" default:"false"`
}

// Session drivers.
const (
	SessionRedis  = "redis"
	SessionMemory = "memory"
)

// AuthConfig configures the local identity provider and session gate.
type AuthConfig struct {
	// JWTSecret signs session tokens (required)
	JWTSecret string `env:"AUTH_JWT_SECRET" required:"true"`

	TokenTTL        time.Duration `env:"AUTH_TOKEN_TTL" default:"12h"`
	ProfileCacheTTL time.Duration `env:"AUTH_PROFILE_CACHE_TTL" default:"1m"`
	BcryptCost      int           `env:"AUTH_BCRYPT_COST" default:"10"`
	CookieName      string        `env:"AUTH_COOKIE_NAME" default:"inventory_session"`

	// SessionDriver is redis or memory (default: memory)
	SessionDriver string `env:"SESSION_DRIVER" default:"memory"`
	RedisAddr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`
}

// Archive drivers.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
)

// ArchiveConfig controls where original import files are kept.
type ArchiveConfig struct {
	Driver    string `env:"ARCHIVE_DRIVER" default:"none"`
	LocalRoot string `env:"ARCHIVE_LOCAL_ROOT" default:"storage/imports"`

	S3Bucket   string `env:"ARCHIVE_S3_BUCKET"`
	S3Region   string `env:"ARCHIVE_S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	S3Endpoint string `env:"ARCHIVE_S3_ENDPOINT"`
	S3Key      string `env:"ARCHIVE_S3_KEY" envAlt:"AWS_ACCESS_KEY_ID"`
	S3Secret   string `env:"ARCHIVE_S3_SECRET" envAlt:"AWS_SECRET_ACCESS_KEY"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
