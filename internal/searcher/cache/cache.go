// Package cache stores lookup results in Redis, keyed by a hash of the
// normalized query and the catalog generation it was computed against.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const keyPrefix = "lookup:"

// Backend is the key/value store behind the cache. *pkgredis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Errors     int64  `json:"errors"`
	Generation int64  `json:"generation"`
	Breaker    string `json:"breaker"`
	Rejected   int64  `json:"rejected"`
}

type QueryCache struct {
	backend    Backend
	ttl        time.Duration
	breaker    *resilience.CircuitBreaker
	group      singleflight.Group
	generation atomic.Int64
	logger     *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// New builds a cache over backend. Zero fields of breaker take the
// breaker defaults.
func New(backend Backend, ttl time.Duration, breaker resilience.CircuitBreakerConfig) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", breaker),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, q lookup.Query) (lookup.Result, bool) {
	return c.getKey(ctx, c.buildKey(q))
}

func (c *QueryCache) getKey(ctx context.Context, key string) (lookup.Result, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.errs.Add(1)
		c.misses.Add(1)
		return lookup.Result{}, false
	}
	if data == nil {
		c.misses.Add(1)
		return lookup.Result{}, false
	}
	var result lookup.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return lookup.Result{}, false
	}
	c.hits.Add(1)
	return result, true
}

func (c *QueryCache) Set(ctx context.Context, q lookup.Query, result lookup.Result) {
	c.setKey(ctx, c.buildKey(q), result)
}

// setKey stores result under key. Callers computing a result build the key
// before computing, so a result from a replaced catalog lands in the old
// generation.
func (c *QueryCache) setKey(ctx context.Context, key string, result lookup.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.errs.Add(1)
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or runs compute once per key, even
// under concurrent identical queries. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q lookup.Query,
	compute func() (lookup.Result, error),
) (lookup.Result, bool, error) {
	key := c.buildKey(q)
	if result, ok := c.getKey(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return lookup.Result{}, err
		}
		c.setKey(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return lookup.Result{}, false, err
	}
	return val.(lookup.Result), false, nil
}

// Invalidate moves to a new generation and deletes every stored result.
// Old entries are unreachable even when the delete fails.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	gen := c.generation.Add(1)
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated",
		"keys_deleted", deleted,
		"generation", gen,
	)
	return nil
}

func (c *QueryCache) Stats() Stats {
	bc := c.breaker.Counts()
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Errors:     c.errs.Load(),
		Generation: c.generation.Load(),
		Breaker:    bc.State.String(),
		Rejected:   bc.Rejected,
	}
}

func (c *QueryCache) buildKey(q lookup.Query) string {
	raw := fmt.Sprintf("g=%d|%s|%s|limit=%d|%s",
		c.generation.Load(), q.Section, q.Mode, q.Limit, normalizeText(q))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeText maps equivalent query texts to one string: key modes compare
// encoded keys, fulltext ignores word order and case.
func normalizeText(q lookup.Query) string {
	if q.Mode != lookup.ModeFulltext {
		return q.Key()
	}
	words := strings.Fields(strings.ToLower(q.Text))
	sort.Strings(words)
	return strings.Join(words, " ")
}
