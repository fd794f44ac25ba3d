// Package cache keeps one live instance per user, bounded by an LRU policy.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize = 100

	evictSaveTimeout = 10 * time.Second
	flushConcurrency = 8
)

// Saver is implemented by cached values that hold state worth keeping when
// they leave the cache.
type Saver interface {
	Save(ctx context.Context) error
}

// Factory builds the value for key on a cache miss.
type Factory[V Saver] func(ctx context.Context, key string) (V, error)

// Cache memoizes values by key. Misses are built through the factory, with
// concurrent misses for one key sharing a single construction. Construction
// errors are returned to every waiting caller and are never cached. Values
// leaving the cache, by eviction or invalidation, are saved in the
// background, and a rebuild of the same key waits for that save.
type Cache[V Saver] struct {
	factory Factory[V]
	logger  *slog.Logger

	mu       sync.Mutex
	lru      *lru.Cache[string, V]
	versions map[string]uint64
	evicting map[string]*eviction
	group    singleflight.Group
	saves    sync.WaitGroup
}

// eviction counts the background saves of one key still running.
type eviction struct {
	n    int
	done chan struct{}
}

// New creates a cache holding at most size values. If size <= 0,
// DefaultSize is used.
func New[V Saver](size int, factory Factory[V]) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache[V]{
		factory:  factory,
		logger:   slog.Default(),
		versions: make(map[string]uint64),
		evicting: make(map[string]*eviction),
	}
	l, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	c.lru = l
	return c, nil
}

// onEvict runs with c.mu held. Saving can wait on a turn of the evicted
// value, so it happens on its own goroutine and never under c.mu.
func (c *Cache[V]) onEvict(key string, v V) {
	e, ok := c.evicting[key]
	if !ok {
		e = &eviction{done: make(chan struct{})}
		c.evicting[key] = e
	}
	e.n++
	c.saves.Add(1)
	go c.saveEvicted(key, v, e)
}

func (c *Cache[V]) saveEvicted(key string, v V, e *eviction) {
	defer c.saves.Done()

	ctx, cancel := context.WithTimeout(context.Background(), evictSaveTimeout)
	err := v.Save(ctx)
	cancel()
	if err != nil {
		c.logger.Warn("saving evicted instance failed", "key", shortKey(key), "error", err)
	} else {
		c.logger.Debug("instance evicted", "key", shortKey(key))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e.n--; e.n == 0 {
		close(e.done)
		delete(c.evicting, key)
	}
}

// WaitSaved blocks until every background save of a value evicted under key
// has finished, or ctx is done.
func (c *Cache[V]) WaitSaved(ctx context.Context, key string) error {
	c.mu.Lock()
	e, ok := c.evicting[key]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the cached value for key, building it on a miss.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	version := c.versions[key]
	c.mu.Unlock()

	res, err, _ := c.group.Do(flightKey(key, version), func() (any, error) {
		// The factory loads from storage, which the evicted value may not
		// have reached yet.
		if err := c.WaitSaved(ctx, key); err != nil {
			return nil, err
		}
		v, err := c.factory(ctx, key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.lru.Get(key); ok {
			return existing, nil
		}
		if c.versions[key] == version {
			c.lru.Add(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns the cached value without building or touching recency.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Invalidate drops the value for key so the next Get builds a fresh one once
// the dropped value is saved. Constructions already in flight are not
// cached. It reports whether a value was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[key]++
	return c.lru.Remove(key)
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Flush saves every cached value concurrently and waits for background
// saves of evicted values. Values stay cached.
func (c *Cache[V]) Flush(ctx context.Context) error {
	c.mu.Lock()
	keys := c.lru.Keys()
	values := make([]V, 0, len(keys))
	for _, k := range keys {
		if v, ok := c.lru.Peek(k); ok {
			values = append(values, v)
		}
	}
	c.mu.Unlock()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(flushConcurrency)
	for i, v := range values {
		g.Go(func() error {
			if err := v.Save(gCtx); err != nil {
				return fmt.Errorf("saving %s: %w", shortKey(keys[i]), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	evicted := make(chan struct{})
	go func() {
		c.saves.Wait()
		close(evicted)
	}()
	select {
	case <-evicted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func flightKey(key string, version uint64) string {
	return fmt.Sprintf("%s#%d", key, version)
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
