package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/metrics"
)

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// cachedConnector is a read-through cache over a Connector. Redis failures
// degrade to a direct fetch; they never fail the request.
type cachedConnector struct {
	inner Connector
	rdb   *redis.Client
	ttl   time.Duration
}

// WithCache wraps a connector with a Redis read-through cache.
func WithCache(inner Connector, rdb *redis.Client, ttl time.Duration) Connector {
	return &cachedConnector{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *cachedConnector) Name() string { return c.inner.Name() }

func (c *cachedConnector) Fetch(ctx context.Context, req Request) (*Result, error) {
	key := cacheKey(c.inner.Name(), req)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var result Result
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return &result, nil
		}
		slog.Warn("discarding unreadable cache entry", "key", key)
	} else if err != redis.Nil {
		slog.Warn("cache lookup failed", "key", key, "error", err)
	}
	metrics.CacheHits.WithLabelValues("miss").Inc()

	result, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			slog.Warn("cache store failed", "key", key, "error", err)
		}
	}

	return result, nil
}

// cacheKey derives a stable key from the source name and request shape.
func cacheKey(source string, req Request) string {
	metricNames := append([]string(nil), req.Metrics...)
	sort.Strings(metricNames)
	dims := append([]string(nil), req.Dimensions...)
	sort.Strings(dims)

	var filters []string
	for k, v := range req.Filters {
		filters = append(filters, k+"="+v)
	}
	sort.Strings(filters)

	payload := fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.Join(metricNames, ","),
		strings.Join(dims, ","),
		req.Range.String(),
		strings.Join(filters, ","),
		source,
	)
	sum := sha256.Sum256([]byte(payload))
	return "fetch:" + source + ":" + hex.EncodeToString(sum[:16])
}
