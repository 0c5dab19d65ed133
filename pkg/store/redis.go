package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a redis server, for deployments where the
// bot's state should survive restarts and live outside the process.
type Redis struct {
	client *redis.Client

	// notifiedTTL bounds throttle-key growth. A missing entry always
	// means "may notify", so expiring entries long after the cool-down
	// window changes nothing a caller can observe.
	notifiedTTL time.Duration
}

// NewRedis connects to the redis server at url
// (e.g. redis://localhost:6379/0) and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("redis store connected", "addr", opts.Addr)
	return &Redis{client: client, notifiedTTL: 24 * time.Hour}, nil
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	var ttl time.Duration
	if strings.HasPrefix(key, "notified:") {
		ttl = s.notifiedTTL
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Redis) All(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", prefix, err)
	}
	return out, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

// escapeGlob neutralizes glob metacharacters in a literal prefix.
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}
