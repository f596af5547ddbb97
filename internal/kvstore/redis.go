package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRedisAttempts = 30
	defaultRedisBackoff  = time.Second
	maxRedisBackoff      = 30 * time.Second
	redisPingTimeout     = 5 * time.Second
)

// Redis stores values as plain Redis strings.
type Redis struct {
	client   *redis.Client
	ttl      time.Duration
	attempts int
	backoff  time.Duration
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// RedisOption customises a Redis store.
type RedisOption func(*Redis)

// WithTTL expires each value ttl after its last write. Zero keeps values forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRedisClient replaces the client built from the address.
func WithRedisClient(client *redis.Client) RedisOption {
	return func(r *Redis) {
		if client != nil {
			r.client = client
		}
	}
}

// WithRetry overrides the Initialize attempt count and the first backoff delay.
func WithRetry(attempts int, backoff time.Duration) RedisOption {
	return func(r *Redis) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if backoff > 0 {
			r.backoff = backoff
		}
	}
}

// WithRedisLogger installs the event hook used by Initialize.
func WithRedisLogger(logger func(ctx context.Context, event string, fields map[string]any)) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis builds a store for addr, which may be a redis:// URL or a plain host:port.
func NewRedis(addr string, opts ...RedisOption) *Redis {
	r := &Redis{
		attempts: defaultRedisAttempts,
		backoff:  defaultRedisBackoff,
		logger:   func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.client == nil {
		options, err := redis.ParseURL(addr)
		if err != nil {
			options = &redis.Options{
				Addr:         addr,
				MinIdleConns: 1,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
				PoolSize:     10,
				PoolTimeout:  4 * time.Second,
				IdleTimeout:  180 * time.Second,
			}
		}
		r.client = redis.NewClient(options)
	}
	return r
}

// Initialize pings Redis until it answers, backing off exponentially between attempts.
func (r *Redis) Initialize(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = r.Ping(ctx)
		if lastErr == nil {
			r.logger(ctx, "kvstore.redis_ready", map[string]any{"attempt": attempt})
			return nil
		}

		backoff := r.backoff << uint(attempt-1)
		if backoff <= 0 || backoff > maxRedisBackoff {
			backoff = maxRedisBackoff
		}
		r.logger(ctx, "kvstore.redis_ping_failed", map[string]any{
			"attempt": attempt,
			"backoff": backoff.String(),
			"error":   lastErr.Error(),
		})
		if attempt == r.attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("kvstore: redis not reachable after %d attempts: %w", r.attempts, lastErr)
}

// Get returns the stored value or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", classifyRedisError("get", err)
	}
	return value, nil
}

// Set writes value under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return classifyRedisError("set", err)
	}
	return nil
}

// Ping checks connectivity with a bounded timeout.
func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return classifyRedisError("ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func classifyRedisError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) && strings.HasPrefix(replyErr.Error(), "OOM") {
		return fmt.Errorf("%w: redis %s: %v", ErrQuotaExceeded, op, err)
	}
	return fmt.Errorf("%w: redis %s: %v", ErrUnavailable, op, err)
}
