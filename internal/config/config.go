// Package config loads the server configuration from environment variables.
// Defaults cover local development; every setting is validated on startup so
// a misconfigured server fails before it accepts a file.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Ledger   LedgerConfig
	Repair   RepairConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// LedgerConfig selects where repair jobs are recorded.
type LedgerConfig struct {
	// Driver is none, postgres or sqlite (default: none)
	Driver string `env:"LEDGER_DRIVER" default:"none"`

	// URL is the Postgres connection string or the SQLite file path.
	// DATABASE_URL is accepted for compatibility.
	URL string `env:"LEDGER_URL" envAlt:"DATABASE_URL"`

	// MaxConns is the maximum number of Postgres connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of Postgres connections (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time of a connection (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RepairConfig holds repair job settings.
type RepairConfig struct {
	// ProfilesFile is a YAML profile file loaded on top of the built-in profiles
	ProfilesFile string `env:"PROFILES_FILE"`

	// MaxFileSize is the largest accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"REPAIR_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel repair jobs (default: 5)
	MaxConcurrent int `env:"REPAIR_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a job slot (default: 30s)
	MaxWaitTime time.Duration `env:"REPAIR_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single repair job (default: 10m)
	Timeout time.Duration `env:"REPAIR_TIMEOUT" default:"10m"`

	// RetainFor is how long a finished job stays queryable (default: 15m)
	RetainFor time.Duration `env:"REPAIR_RETAIN_FOR" default:"15m"`

	// MaxSyncRows caps the rows of a synchronous mend request (default: 1000)
	MaxSyncRows int `env:"REPAIR_MAX_SYNC_ROWS" default:"1000"`

	// MaxDepth applies to profiles that do not set one (default: 20)
	MaxDepth int `env:"MENDER_MAX_DEPTH" default:"20"`

	// OptimizeThreshold applies to profiles that do not set one; -1 disables (default: -1)
	OptimizeThreshold int `env:"MENDER_OPTIMIZE_THRESHOLD" default:"-1"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// RepairLimit is requests per minute for file repair uploads (default: 10)
	RepairLimit int `env:"RATE_LIMIT_REPAIR" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api routes with the X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
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
