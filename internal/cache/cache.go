// Package cache keeps short-lived lookup results (image search links) in Valkey.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "citron:"

type Options struct {
	Addr string
	TTL  time.Duration
	// DisableCache turns off valkey client-side caching (needed for miniredis).
	DisableCache bool
	Logger       *slog.Logger
}

// Cache stores string lists with a TTL. A zero Cache, or one created without an
// address, is disabled and every lookup misses.
type Cache struct {
	client valkey.Client
	ttl    time.Duration
	log    *slog.Logger
}

func New(opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With(slog.String("component", "cache"))
	if opts.Addr == "" {
		log.Info("Cache disabled, no valkey address configured")
		return &Cache{log: log}, nil
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{opts.Addr},
		DisableCache: opts.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	return &Cache{client: client, ttl: opts.TTL, log: log}, nil
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetList returns the cached list for key and whether it was found.
// Backend errors count as misses.
func (c *Cache) GetList(ctx context.Context, key string) ([]string, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+key).Build()).ToString()
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			c.log.Warn("Cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.log.Warn("Cache entry is corrupt", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return out, true
}

func (c *Cache) SetList(ctx context.Context, key string, values []string) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	cmd := c.client.B().Set().Key(keyPrefix + key).Value(string(data)).Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (c *Cache) Close() {
	if c.Enabled() {
		c.client.Close()
	}
}
