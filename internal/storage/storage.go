// Package storage provides the byte-level get/put/list primitive that
// bundle roots and manifests are persisted through. The core only
// depends on the small Store capability below; it never reaches for a
// concrete backend directly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Common errors surfaced by Store implementations.
var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrAlreadyExists  = errors.New("storage: object already exists")
)

// Store abstracts byte-level access to a bundle root, whatever backs it
// (local disk, an in-process memory map, or an object store). Paths
// passed to Store methods are always relative to the root the Store was
// resolved for.
type Store interface {
	// Get reads the full contents of path. Returns ErrObjectNotFound if
	// it does not exist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put atomically writes data to path: implementations must not leave
	// a partially-written object visible under the final name (write to
	// a temp sibling, then rename/replace).
	Put(ctx context.Context, path string, data []byte) error

	// PutIfAbsent is like Put but fails with ErrAlreadyExists if path is
	// already present. Used by the manifest store to detect double-writes
	// of the same (version, hash).
	PutIfAbsent(ctx context.Context, path string, data []byte) error

	// List returns the paths of the objects directly under prefix;
	// objects in deeper subdirectories are not listed.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)

	// RootURL returns the canonical URL this Store was resolved from.
	RootURL() string
}

// Resolve opens a Store for the given bundle root URL. Supported
// schemes: "memory" (ephemeral, process-local), "file" (local disk),
// and "s3" (passthrough to an object store).
func Resolve(rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid root url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "memory":
		return openMemoryStore(u), nil
	case "file", "":
		return newLocalStore(u)
	case "s3":
		return newS3Store(u)
	default:
		return nil, fmt.Errorf("storage: unsupported scheme %q in url %q", u.Scheme, rawURL)
	}
}

// JoinRelative resolves a possibly-relative reference against a base
// bundle root URL, the way spec.md's manifest "from" field is resolved.
func JoinRelative(base, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("storage: empty relative url")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("storage: invalid base url %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("storage: invalid relative url %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return ref, nil
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// NormalizeRoot strips a trailing slash so path-joining is consistent.
func NormalizeRoot(root string) string {
	return strings.TrimSuffix(root, "/")
}
