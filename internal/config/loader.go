package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct walks nested structs and fills every field carrying an env tag.
// The envAlt variable is consulted when the primary one is unset.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok := lookupEnv(envName, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// setField parses value into the field according to its kind. Durations use
// time.ParseDuration and string slices are comma separated.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Ledger validation
	switch strings.ToLower(c.Ledger.Driver) {
	case "none":
	case "postgres", "sqlite":
		if c.Ledger.URL == "" {
			errs = append(errs, fmt.Sprintf("LEDGER_URL is required when LEDGER_DRIVER is %s", c.Ledger.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_DRIVER (%q) must be one of: none, postgres, sqlite", c.Ledger.Driver))
	}
	if c.Ledger.MaxConns < c.Ledger.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Ledger.MaxConns, c.Ledger.MinConns))
	}
	if c.Ledger.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Ledger.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Repair validation
	if c.Repair.MaxFileSize <= 0 {
		errs = append(errs, "REPAIR_MAX_FILE_SIZE must be positive")
	}
	if c.Repair.MaxConcurrent <= 0 {
		errs = append(errs, "REPAIR_MAX_CONCURRENT must be positive")
	}
	if c.Repair.MaxWaitTime <= 0 {
		errs = append(errs, "REPAIR_MAX_WAIT_TIME must be positive")
	}
	if c.Repair.Timeout <= 0 {
		errs = append(errs, "REPAIR_TIMEOUT must be positive")
	}
	if c.Repair.RetainFor <= 0 {
		errs = append(errs, "REPAIR_RETAIN_FOR must be positive")
	}
	if c.Repair.MaxSyncRows <= 0 {
		errs = append(errs, "REPAIR_MAX_SYNC_ROWS must be positive")
	}
	if c.Repair.MaxDepth < 1 {
		errs = append(errs, fmt.Sprintf("MENDER_MAX_DEPTH (%d) must be greater than 0", c.Repair.MaxDepth))
	}
	if c.Repair.OptimizeThreshold < -1 {
		errs = append(errs, fmt.Sprintf("MENDER_OPTIMIZE_THRESHOLD (%d) must be -1 or greater", c.Repair.OptimizeThreshold))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.RepairLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_REPAIR must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "API_KEYS is required when REQUIRE_API_KEY is true")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The ledger URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Ledger: {Driver: %q, URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Ledger.Driver, c.Ledger.MaxConns, c.Ledger.MinConns)
	fmt.Fprintf(&b, "Repair: {MaxFileSize: %d, MaxConcurrent: %d, MaxDepth: %d, OptimizeThreshold: %d}, ",
		c.Repair.MaxFileSize, c.Repair.MaxConcurrent, c.Repair.MaxDepth, c.Repair.OptimizeThreshold)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d, RepairLimit: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.RepairLimit)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
