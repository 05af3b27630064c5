package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader is a read-through cache: results are keyed by request parameters,
// expire after a per-query TTL, and at most one load per key is in flight.
type Loader struct {
	store       Store
	group       singleflight.Group
	loadTimeout time.Duration
	logger      *slog.Logger
}

// DefaultLoadTimeout bounds a shared load once it no longer follows any
// caller's context.
const DefaultLoadTimeout = 30 * time.Second

func NewLoader(store Store, logger *slog.Logger) *Loader {
	return &Loader{store: store, loadTimeout: DefaultLoadTimeout, logger: logger.With("component", "cache")}
}

// Key joins query parameters into a cache key.
func Key(parts ...any) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += fmt.Sprint(p)
	}
	return k
}

// Fetch returns the cached value for key or runs load. A load that reports
// store=false is returned to every waiter but not cached. A caller whose ctx
// ends stops waiting; the load keeps running for the others.
func Fetch[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, load func(context.Context) (T, bool, error)) (T, error) {
	var zero T

	if b, err := l.store.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		l.logger.Warn("discarding undecodable cache entry", "key", key)
	}

	ch := l.group.DoChan(key, func() (any, error) {
		// Waiters share this load, so no single caller may cancel it.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.loadTimeout)
		defer cancel()

		v, store, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if store && ttl > 0 {
			b, err := json.Marshal(v)
			if err == nil {
				err = l.store.Set(lctx, key, b, ttl)
			}
			if err != nil {
				l.logger.Warn("cache write failed", "key", key, "err", err)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			l.logger.Debug("shared in-flight load", "key", key)
		}
		return res.Val.(T), nil
	}
}
