package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Prefetcher fetches several objects from a Store concurrently, for
// warming objects in parallel rather than serially. No other package in
// this module calls it.
type Prefetcher struct {
	store       Store
	concurrency int
}

// NewPrefetcher creates a Prefetcher bounded to concurrency simultaneous
// in-flight Gets against store.
func NewPrefetcher(store Store, concurrency int) *Prefetcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Prefetcher{store: store, concurrency: concurrency}
}

// FetchResult is the outcome of fetching one path.
type FetchResult struct {
	Path string
	Data []byte
	Err  error
}

// FetchAll fetches every path, respecting the Prefetcher's concurrency
// bound, and returns one FetchResult per requested path (order not
// guaranteed to match input order).
func (p *Prefetcher) FetchAll(ctx context.Context, paths []string) ([]FetchResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	sem := semaphore.NewWeighted(int64(p.concurrency))
	results := make([]FetchResult, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = FetchResult{Path: path, Err: fmt.Errorf("storage: prefetch cancelled: %w", err)}
			continue
		}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)
			data, err := p.store.Get(ctx, path)
			results[i] = FetchResult{Path: path, Data: data, Err: err}
		}(i, path)
	}
	wg.Wait()
	return results, nil
}
