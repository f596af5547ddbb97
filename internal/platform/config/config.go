package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile           = ".env"
	envPrefix                = "STOREFRONT_"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultStorageBackend    = BackendMemory
	defaultStorageQuota      = 5 << 20
	defaultStorageIdleTTL    = 720 * time.Hour
	defaultRedisTTL          = 720 * time.Hour
	defaultFirestoreCollect  = "cartStorage"
	defaultCartStorageKey    = "cart"
	defaultCartTaxRate       = "0.08"
	defaultCartShipping      = "10.00"
	defaultZeroQuantity      = ZeroQuantityRemove
	defaultSessionCookie     = "urbenshop_session"
	defaultSessionMaxAge     = 720 * time.Hour
	defaultContactRatePerMin = 10
)

// Storage backends accepted by STOREFRONT_STORAGE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Zero quantity policies accepted by STOREFRONT_CART_ZERO_QUANTITY.
const (
	ZeroQuantityRemove = "remove"
	ZeroQuantityClamp  = "clamp"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Firestore  FirestoreConfig
	Cart       CartConfig
	Catalog    CatalogConfig
	Session    SessionConfig
	RateLimits RateLimitConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StorageConfig selects the key-value backend holding shopper carts.
// QuotaBytes and IdleTTL apply to the memory backend, per shopper session.
type StorageConfig struct {
	Backend    string
	QuotaBytes int
	IdleTTL    time.Duration
}

// RedisConfig is used when Storage.Backend is redis. Addr accepts host:port or a redis:// URL.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	Collection   string
}

// CartConfig controls cart persistence and pricing.
type CartConfig struct {
	StorageKey   string
	TaxRate      decimal.Decimal
	Shipping     decimal.Decimal
	ZeroQuantity string
}

// CatalogConfig points at an optional YAML catalog replacing the built-in products.
type CatalogConfig struct {
	File string
}

// SessionConfig controls the shopper session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
	MaxAge     time.Duration
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	ContactPerMinute int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the storefront configuration from defaults, .env overrides and
// environment variables (dotenv < OS env < explicit map).
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		key = envPrefix + key
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return strings.TrimSpace(value), true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return strings.TrimSpace(value), true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	var invalid []string
	decimalField := func(name, key, fallback string) decimal.Decimal {
		value, ok := decimalWithDefault(lookup, key, fallback)
		if !ok {
			invalid = append(invalid, name)
		}
		return value
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(stringWithDefault(lookup, "STORAGE_BACKEND", defaultStorageBackend)),
			QuotaBytes: intWithDefault(lookup, "STORAGE_QUOTA_BYTES", defaultStorageQuota),
			IdleTTL:    durationWithDefault(lookup, "STORAGE_IDLE_TTL", defaultStorageIdleTTL),
		},
		Redis: RedisConfig{
			Addr: stringWithDefault(lookup, "REDIS_ADDR", ""),
			TTL:  durationWithDefault(lookup, "REDIS_TTL", defaultRedisTTL),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
			Collection:   stringWithDefault(lookup, "FIRESTORE_COLLECTION", defaultFirestoreCollect),
		},
		Cart: CartConfig{
			StorageKey:   stringWithDefault(lookup, "CART_STORAGE_KEY", defaultCartStorageKey),
			TaxRate:      decimalField("Cart.TaxRate", "CART_TAX_RATE", defaultCartTaxRate),
			Shipping:     decimalField("Cart.Shipping", "CART_SHIPPING", defaultCartShipping),
			ZeroQuantity: strings.ToLower(stringWithDefault(lookup, "CART_ZERO_QUANTITY", defaultZeroQuantity)),
		},
		Catalog: CatalogConfig{
			File: stringWithDefault(lookup, "CATALOG_FILE", ""),
		},
		Session: SessionConfig{
			CookieName: stringWithDefault(lookup, "SESSION_COOKIE", defaultSessionCookie),
			Secure:     boolWithDefault(lookup, "SESSION_SECURE", false),
			MaxAge:     durationWithDefault(lookup, "SESSION_MAX_AGE", defaultSessionMaxAge),
		},
		RateLimits: RateLimitConfig{
			ContactPerMinute: intWithDefault(lookup, "CONTACT_RATE_PER_MIN", defaultContactRatePerMin),
		},
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)
	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Storage.Backend {
	case BackendMemory:
		if cfg.Storage.QuotaBytes < 0 {
			missing = append(missing, "Storage.QuotaBytes")
		}
		if cfg.Storage.IdleTTL < 0 {
			missing = append(missing, "Storage.IdleTTL")
		}
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			missing = append(missing, "Redis.Addr")
		}
		if cfg.Redis.TTL < 0 {
			missing = append(missing, "Redis.TTL")
		}
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
		if cfg.Firestore.Collection == "" {
			missing = append(missing, "Firestore.Collection")
		}
	default:
		missing = append(missing, "Storage.Backend")
	}
	if strings.TrimSpace(cfg.Cart.StorageKey) == "" {
		missing = append(missing, "Cart.StorageKey")
	}
	if cfg.Cart.TaxRate.IsNegative() {
		missing = append(missing, "Cart.TaxRate")
	}
	if cfg.Cart.Shipping.IsNegative() {
		missing = append(missing, "Cart.Shipping")
	}
	if cfg.Cart.ZeroQuantity != ZeroQuantityRemove && cfg.Cart.ZeroQuantity != ZeroQuantityClamp {
		missing = append(missing, "Cart.ZeroQuantity")
	}
	if cfg.Session.CookieName == "" {
		missing = append(missing, "Session.CookieName")
	}
	if cfg.Session.MaxAge <= 0 {
		missing = append(missing, "Session.MaxAge")
	}
	if cfg.RateLimits.ContactPerMinute <= 0 {
		missing = append(missing, "RateLimits.ContactPerMinute")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

// decimalWithDefault reports false when the value is present but not a decimal number.
func decimalWithDefault(lookup func(string) (string, bool), key, fallback string) (decimal.Decimal, bool) {
	raw := fallback
	if value, ok := lookup(key); ok && value != "" {
		raw = value
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.RequireFromString(fallback), false
	}
	return parsed, true
}
