// Package adapter provides the built-in CSV and JSON DataAdapter
// implementations (spec.md §4.5's "pluggable" contract, concretely
// filled in since a Go module with zero registered adapters could
// never actually attach a block). Both adapters share a small
// snappy-compressed byte cache so re-resolving the same source URL
// within a process (schema probe, then the real scan) reads storage
// once.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/snappy"

	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/storage"
)

// RegisterBuiltins binds ".csv" and ".json"/".ndjson" extensions on reg
// to the built-in adapters. A later registration for the same extension
// replaces an earlier one, so callers (internal/runtime) override these
// by registering their own adapter after RegisterBuiltins.
func RegisterBuiltins(reg *block.Registry) {
	reg.RegisterExtension(".csv", func(ctx context.Context, sourceURL, hint string) (block.DataAdapter, error) {
		return newCSVAdapter(loaderFor(sourceURL)), nil
	})
	reg.RegisterExtension(".json", func(ctx context.Context, sourceURL, hint string) (block.DataAdapter, error) {
		return newJSONAdapter(loaderFor(sourceURL)), nil
	})
	reg.RegisterExtension(".ndjson", func(ctx context.Context, sourceURL, hint string) (block.DataAdapter, error) {
		return newJSONAdapter(loaderFor(sourceURL)), nil
	})
}

var (
	byteCacheMu sync.Mutex
	byteCache   = map[string][]byte{} // sourceURL -> snappy-compressed bytes
)

// loaderFor returns the byte loader a csvAdapter/jsonAdapter calls
// lazily on first Schema/Scan. sourceURL is split into a storage root
// (everything before the final path segment) and the relative object
// name within it, so any registered storage.Store backend (local, S3,
// in-process memory) can serve a single attached file.
func loaderFor(sourceURL string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		byteCacheMu.Lock()
		if compressed, ok := byteCache[sourceURL]; ok {
			byteCacheMu.Unlock()
			return snappy.Decode(nil, compressed)
		}
		byteCacheMu.Unlock()

		root, rel, err := splitSourceURL(sourceURL)
		if err != nil {
			return nil, err
		}
		store, err := storage.Resolve(root)
		if err != nil {
			return nil, err
		}
		raw, err := store.Get(ctx, rel)
		if err != nil {
			return nil, err
		}

		byteCacheMu.Lock()
		byteCache[sourceURL] = snappy.Encode(nil, raw)
		byteCacheMu.Unlock()
		return raw, nil
	}
}

// splitSourceURL separates a single-file source URL into the storage
// root that resolves to a Store, and the relative path Store.Get takes.
func splitSourceURL(sourceURL string) (root, rel string, err error) {
	i := strings.LastIndex(sourceURL, "/")
	if i < 0 {
		return "", "", fmt.Errorf("adapter: source url %q has no path separator", sourceURL)
	}
	return sourceURL[:i], sourceURL[i+1:], nil
}
