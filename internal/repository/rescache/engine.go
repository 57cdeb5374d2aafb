package rescache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/db"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/response"
)

// DefaultKeyPrefix namespaces cached responses.
const DefaultKeyPrefix = "edasearch:resp:"

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

type engine interface {
	Search(ctx context.Context, index string, req *request.Request) (*response.Response, error)
}

// CachedEngine caches raw engine responses keyed by index and request body.
// Normalization still runs per call, so per-user selection never leaks
// across cache entries.
type CachedEngine struct {
	inner      engine
	store      store
	ttl        time.Duration
	prefix     string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner engine,
	s store,
	ttl time.Duration,
	prefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEngine {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &CachedEngine{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Search returns a cached response or calls the inner engine. Cache failures
// degrade to a plain engine call.
func (c *CachedEngine) Search(ctx context.Context, index string, req *request.Request) (*response.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	key := c.cacheKey(req.Kind(), index, body)

	if resp, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return resp, nil
	}

	c.incCache("miss")

	resp, err := c.inner.Search(ctx, index, req)
	if err != nil {
		return nil, err
	}

	c.putToCache(ctx, key, resp)
	return resp, nil
}

// Purge drops every cached response and returns how many were removed.
func (c *CachedEngine) Purge(ctx context.Context) (int64, error) {
	keys, err := c.store.Scan(ctx, c.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan cached responses: %w", err)
	}
	n, err := c.store.Del(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("delete cached responses: %w", err)
	}
	return n, nil
}

func (c *CachedEngine) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEngine) cacheKey(kind request.Kind, index string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(index))
	h.Write([]byte{0})
	h.Write(body)
	return c.prefix + string(kind) + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEngine) getFromCache(ctx context.Context, key string) (*response.Response, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached response", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	resp, err := response.Decode(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("Failed to parse cached response", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return resp, true
}

func (c *CachedEngine) putToCache(ctx context.Context, key string, resp *response.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("Failed to encode response for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}
