// Package breeds defines the sub-breed lookup capability and a memoizing
// decorator for it.
package breeds

import (
	"context"
	"strings"
)

// Fetcher looks up the sub-breeds of a breed. Implementations report every
// failure as an error satisfying errors.Is(err, ErrNotFound).
type Fetcher interface {
	GetSubBreeds(ctx context.Context, breed string) ([]string, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, breed string) ([]string, error)

// GetSubBreeds calls f.
func (f FetcherFunc) GetSubBreeds(ctx context.Context, breed string) ([]string, error) {
	return f(ctx, breed)
}

// NormalizeKey trims surrounding whitespace and lowercases a breed name.
// An empty result means the name cannot be used as a cache key.
func NormalizeKey(breed string) string {
	return strings.ToLower(strings.TrimSpace(breed))
}

func cloneNames(names []string) []string {
	if names == nil {
		return []string{}
	}
	clone := make([]string, len(names))
	copy(clone, names)
	return clone
}
