package breeds

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/illmade-knight/go-dogbreeds/pkg/cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachingFetcher memoizes successful lookups of an underlying Fetcher, keyed
// by the normalized breed name. Failed lookups are never cached, so the next
// call for the same breed reaches the underlying fetcher again. Entries are
// kept for the lifetime of the CachingFetcher.
//
// Callers always receive their own copy of a sub-breed list. CachingFetcher
// is safe for concurrent use; concurrent misses for one key share a single
// delegation.
type CachingFetcher struct {
	fetcher   Fetcher
	cache     cache.Cache[string, []string]
	group     singleflight.Group
	callsMade atomic.Int64
	logger    zerolog.Logger
}

// NewCachingFetcher wraps fetcher. The fetcher is shared, not owned: the
// caller controls its lifetime.
func NewCachingFetcher(fetcher Fetcher, logger zerolog.Logger) (*CachingFetcher, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("underlying fetcher must not be nil: %w", ErrInvalidArgument)
	}
	return &CachingFetcher{
		fetcher: fetcher,
		cache:   cache.NewInMemoryCache[string, []string](),
		logger:  logger.With().Str("component", "CachingFetcher").Logger(),
	}, nil
}

// GetSubBreeds returns the sub-breeds of breed, consulting the cache first.
// Names that normalize to an empty key are always forwarded and never cached.
// Errors from the underlying fetcher are returned unchanged. If ctx ends
// while a shared lookup is still running, GetSubBreeds returns a NotFoundError
// wrapping ctx.Err(); the lookup itself carries on and may still be cached.
func (c *CachingFetcher) GetSubBreeds(ctx context.Context, breed string) ([]string, error) {
	key := NormalizeKey(breed)
	if key == "" {
		c.logger.Debug().Msg("Empty breed key, forwarding without caching.")
		names, err := c.delegate(ctx, breed)
		if err != nil {
			return nil, err
		}
		return cloneNames(names), nil
	}

	if names, ok := c.cache.FetchFromCache(ctx, key); ok {
		c.logger.Debug().Str("key", key).Msg("Cache hit.")
		return cloneNames(names), nil
	}

	// The shared delegation outlives any single caller; each caller only
	// waits on it for as long as its own context allows.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another caller may have populated the key while we waited for the group.
		if names, ok := c.cache.FetchFromCache(flightCtx, key); ok {
			return names, nil
		}

		c.logger.Debug().Str("key", key).Msg("Cache miss. Delegating to underlying fetcher.")
		names, err := c.delegate(flightCtx, breed)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Underlying fetcher failed, result not cached.")
			return nil, err
		}

		snapshot := cloneNames(names)
		c.cache.WriteToCache(flightCtx, key, snapshot)
		return snapshot, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug().Str("key", key).Msg("Shared result of an in-flight lookup.")
		}
		return cloneNames(res.Val.([]string)), nil
	case <-ctx.Done():
		c.logger.Debug().Err(ctx.Err()).Str("key", key).Msg("Caller stopped waiting for lookup.")
		return nil, NewNotFoundError(breed, fmt.Sprintf("lookup abandoned for '%s'", breed), ctx.Err())
	}
}

// CallsMade reports how many times the underlying fetcher has been called,
// including calls that failed.
func (c *CachingFetcher) CallsMade() int64 {
	return c.callsMade.Load()
}

// Len reports the number of breeds currently cached.
func (c *CachingFetcher) Len() int {
	return c.cache.Len()
}

func (c *CachingFetcher) delegate(ctx context.Context, breed string) ([]string, error) {
	c.callsMade.Add(1)
	return c.fetcher.GetSubBreeds(ctx, breed)
}
