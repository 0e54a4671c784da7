// Package stream defines the columnar batch and pull-based stream contract
// that the streaming query façade (C10) produces and every table provider
// consumes. The real columnar batch format and SQL engine are external
// collaborators (spec.md §1); this package is the minimal concrete shape
// that lets an opaque "batch stream" actually move through this repo.
package stream

import (
	"context"

	"github.com/bundlebase/bundlebase/pkg/types"
)

// Batch is one columnar chunk of query results: a fixed schema and, for
// each column, a slice of exactly NumRows values (nil entries mean SQL
// NULL). Values are driven by the schema's LogicalKind: int64, float64,
// string, bool, int64 (millis) for Timestamp, or nil for Null.
type Batch struct {
	Schema  types.Schema
	NumRows int
	Columns map[string][]any
}

// NewBatch allocates an empty batch over schema, one nil column slice per
// schema column, ready to be filled to n rows.
func NewBatch(schema types.Schema, n int) Batch {
	cols := make(map[string][]any, schema.Len())
	for _, name := range schema.Names() {
		cols[name] = make([]any, n)
	}
	return Batch{Schema: schema, NumRows: n, Columns: cols}
}

// Project returns a new batch containing only the named columns, in the
// given order. Missing columns are skipped (callers validate presence
// earlier, during check()).
func (b Batch) Project(names []string) Batch {
	schema := types.NewSchema()
	cols := make(map[string][]any, len(names))
	for _, n := range names {
		typ, ok := b.Schema.TypeOf(n)
		if !ok {
			continue
		}
		schema = schema.WithColumn(n, typ, b.Schema.Nullable(n))
		cols[n] = b.Columns[n]
	}
	return Batch{Schema: schema, NumRows: b.NumRows, Columns: cols}
}

// BatchStream is a pull-based source of Batches. Next returns
// (nil, nil) to signal clean end of stream — never a sentinel batch.
// Dropping a stream without draining it must still release resources;
// callers achieve that by always calling Close, typically via defer.
type BatchStream interface {
	Next(ctx context.Context) (*Batch, error)
	Close() error
}

// sliceStream adapts a pre-built slice of batches into a BatchStream. Used
// by table providers and tests that already hold materialized batches
// (e.g. one block's index-narrowed scan result).
type sliceStream struct {
	batches []Batch
	pos     int
	closed  bool
}

// FromSlice returns a BatchStream that yields batches in order, then ends.
func FromSlice(batches []Batch) BatchStream {
	return &sliceStream{batches: batches}
}

func (s *sliceStream) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.pos >= len(s.batches) {
		return nil, nil
	}
	b := s.batches[s.pos]
	s.pos++
	return &b, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// ConcatStream plays each child stream to completion in order before
// advancing to the next, so at most one child's current batch is ever
// resident — the shape a `UNION ALL` of attached blocks needs to honor I7.
type ConcatStream struct {
	children []BatchStream
	idx      int
}

func NewConcatStream(children ...BatchStream) *ConcatStream {
	return &ConcatStream{children: children}
}

func (c *ConcatStream) Next(ctx context.Context) (*Batch, error) {
	for c.idx < len(c.children) {
		b, err := c.children[c.idx].Next(ctx)
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
		if err := c.children[c.idx].Close(); err != nil {
			return nil, err
		}
		c.idx++
	}
	return nil, nil
}

func (c *ConcatStream) Close() error {
	var firstErr error
	for ; c.idx < len(c.children); c.idx++ {
		if err := c.children[c.idx].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Drain pulls every batch from s until it ends, invoking fn per batch. It
// exists for callers (tests, the CLI demo) that intentionally want the
// full result in memory; production query paths must not call it on an
// unbounded stream.
func Drain(ctx context.Context, s BatchStream, fn func(Batch) error) error {
	defer s.Close()
	for {
		b, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		if err := fn(*b); err != nil {
			return err
		}
	}
}
