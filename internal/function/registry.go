// Package function implements C11: the process-wide registry of named,
// paginated synthetic data sources exposed to the rest of the engine via
// function://name URLs. A function's signature (name, output schema)
// travels with the manifest as a DefineFunction operation; its
// implementation is registered locally and never serialized, so opening
// a bundle elsewhere that references an unregistered function fails at
// first scan, not at load (spec.md §4.11).
package function

import (
	"context"
	"fmt"
	"sync"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Impl is a paginated generator: Next returns the batch for page, or a
// nil batch once exhausted. Implementations must be safe for concurrent
// calls with distinct page numbers, matching DataAdapter.Scan's general
// concurrency contract.
type Impl interface {
	Next(ctx context.Context, page int) (*types.Schema, [][]any, error)
}

// registration pairs a function's declared output schema with its
// locally installed implementation.
type registration struct {
	schema types.Schema
	impl   Impl
}

// Registry is the shared name -> (schema, impl) table. The zero value is
// not usable; construct with NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns an empty function registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// SetImpl installs impl as the implementation of name, taking a short
// exclusive lock (spec.md §4.12 "function registry ... mutations take a
// short exclusive lock"). Replacing an existing implementation is
// allowed, matching a function being reconfigured between bundle opens.
func (r *Registry) SetImpl(name string, schema types.Schema, impl Impl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registration{schema: schema, impl: impl}
}

// Lookup returns the registered implementation for name, if any.
func (r *Registry) Lookup(name string) (types.Schema, Impl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return types.Schema{}, nil, false
	}
	return e.schema, e.impl, true
}

// ErrUnknownImpl reports that name has no registered implementation.
// It is a struct type carrying Name, so callers match it after wrapping
// with errors.As(err, &ErrUnknownImpl{}).
type ErrUnknownImpl struct{ Name string }

func (e ErrUnknownImpl) Error() string {
	return fmt.Sprintf("function: %q has no registered implementation", e.Name)
}

// Require looks up name, returning a bberrors-wrapped ErrUnknownImpl if
// it has never been registered locally.
func (r *Registry) Require(name string) (types.Schema, Impl, error) {
	schema, impl, ok := r.Lookup(name)
	if !ok {
		return types.Schema{}, nil, bberrors.Wrap(bberrors.DataSource, "function.Require",
			"function implementation missing", ErrUnknownImpl{Name: name}).
			WithDetails(map[string]string{"name": name})
	}
	return schema, impl, nil
}
