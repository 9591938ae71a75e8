package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const viewKeyPrefix = "blockpress:view"

// Connect opens a redis client from a URL (redis://...) or a bare host:port and
// pings it. An empty address returns nil without error: callers run without a cache.
func Connect(ctx context.Context, addr string, log *zap.Logger) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if log != nil {
		log.Info("redis connected", zap.String("addr", opts.Addr))
	}
	return client, nil
}

// ViewDeduper remembers which visitor viewed which post for a window.
type ViewDeduper struct {
	client *redis.Client
}

// NewViewDeduper wraps an existing client.
func NewViewDeduper(client *redis.Client) *ViewDeduper {
	return &ViewDeduper{client: client}
}

// FirstView reports whether this is the visitor's first view of postID within window.
func (d *ViewDeduper) FirstView(ctx context.Context, postID uint, visitorID string, window time.Duration) (bool, error) {
	if d == nil || d.client == nil {
		return true, errors.New("view deduper has no redis client")
	}
	if window <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("%s:%d:%s", viewKeyPrefix, postID, visitorID)
	ok, err := d.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}
