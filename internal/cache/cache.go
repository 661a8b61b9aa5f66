// Package cache keeps rendered stills in Redis so an identical request
// (same bytes, same settings, same font) skips the render.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wm_render:"

// Redis is a TTL-bound byte cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get reports a miss as (nil, false, nil).
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop is used when Redis is not configured: every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Close() error                                      { return nil }

// Key identifies one still render. Engine options are part of it, so
// instances with different WM_* config never share entries.
func Key(image []byte, s model.Settings, fontID string, opts render.Options) string {
	hash := sha256.New()
	hash.Write(image)
	settings, _ := json.Marshal(s)
	hash.Write(settings)
	hash.Write([]byte(fontID))
	options, _ := json.Marshal(opts)
	hash.Write(options)
	return keyPrefix + hex.EncodeToString(hash.Sum(nil))
}
