// Package cache provides the shared volatile-store handle used by the link
// cache, token blacklist, reset-token store, rate counter, and click queue.
// The connection is established lazily, at most once per Client; when it
// cannot be established every operation reports ErrUnavailable and callers
// degrade to their documented cache-miss / fail-open behavior.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss is returned by Get when the key does not exist.
	ErrMiss = errors.New("cache: key not found")

	// ErrUnavailable is returned by every operation when the volatile store
	// could not be reached. Callers must treat it as a miss or fail open,
	// never propagate it to the request path.
	ErrUnavailable = errors.New("cache: unavailable")
)

// Store defines the single-key primitives the sub-stores rely on.
// Every operation is atomic on its key; no cross-key transactions exist.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	RPush(ctx context.Context, key string, values ...string) error
	LPopCount(ctx context.Context, key string, count int) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// Config holds connection settings for the volatile store.
type Config struct {
	URL          string // redis:// or rediss:// URL; empty disables the cache
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Client is the process-wide handle to the volatile store. It is safe for
// concurrent use; all sub-stores share one instance. The underlying
// connection is established on first use and attempted exactly once for the
// lifetime of the Client.
type Client struct {
	cfg    Config
	logger *slog.Logger

	connectOnce sync.Once
	rdb         *redis.Client // nil after a failed or skipped connect
}

var _ Store = (*Client)(nil)

// NewClient creates a Client. No connection is made until the first operation.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// connect runs under connectOnce. A failure leaves rdb nil permanently;
// the process then runs without a cache rather than crash-looping on it.
func (c *Client) connect(ctx context.Context) {
	if c.cfg.URL == "" {
		c.logger.Warn("cache url not configured, running without cache")
		return
	}

	opts, err := redis.ParseURL(c.cfg.URL)
	if err != nil {
		c.logger.Warn("invalid cache url, running without cache", "error", err)
		return
	}

	if c.cfg.DialTimeout > 0 {
		opts.DialTimeout = c.cfg.DialTimeout
	}
	if c.cfg.ReadTimeout > 0 {
		opts.ReadTimeout = c.cfg.ReadTimeout
	}
	if c.cfg.WriteTimeout > 0 {
		opts.WriteTimeout = c.cfg.WriteTimeout
	}
	if c.cfg.PoolSize > 0 {
		opts.PoolSize = c.cfg.PoolSize
	}

	rdb := redis.NewClient(opts)

	pingCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn("cache connection failed, running without cache", "error", err)
		_ = rdb.Close()
		return
	}

	c.logger.Info("cache connection established")
	c.rdb = rdb
}

// handle returns the live connection, or ErrUnavailable in degraded mode.
func (c *Client) handle(ctx context.Context) (*redis.Client, error) {
	c.connectOnce.Do(func() { c.connect(ctx) })
	if c.rdb == nil {
		return nil, ErrUnavailable
	}
	return c.rdb, nil
}

// Available reports whether the volatile store is reachable. Used by health
// checks; triggers the one-time connect if it has not happened yet.
func (c *Client) Available(ctx context.Context) bool {
	rdb, err := c.handle(ctx)
	if err != nil {
		return false
	}
	return rdb.Ping(ctx).Err() == nil
}

// Close releases the underlying connection pool, if one was established.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	rdb, err := c.handle(ctx)
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	rdb, err := c.handle(ctx)
	if err != nil {
		return "", err
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", wrapErr(err)
	}
	return val, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	rdb, err := c.handle(ctx)
	if err != nil {
		return err
	}
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	rdb, err := c.handle(ctx)
	if err != nil {
		return false, err
	}
	n, err := rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	rdb, err := c.handle(ctx)
	if err != nil {
		return 0, err
	}
	n, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

func (c *Client) RPush(ctx context.Context, key string, values ...string) error {
	rdb, err := c.handle(ctx)
	if err != nil {
		return err
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := rdb.RPush(ctx, key, args...).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (c *Client) LPopCount(ctx context.Context, key string, count int) ([]string, error) {
	rdb, err := c.handle(ctx)
	if err != nil {
		return nil, err
	}
	vals, err := rdb.LPopCount(ctx, key, count).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, wrapErr(err)
	}
	return vals, nil
}

func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	rdb, err := c.handle(ctx)
	if err != nil {
		return 0, err
	}
	n, err := rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

// wrapErr folds transport errors into ErrUnavailable so callers can match a
// single sentinel regardless of the underlying failure.
func wrapErr(err error) error {
	return errors.Join(ErrUnavailable, err)
}
