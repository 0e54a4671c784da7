package types

import (
	"fmt"
	"math"
)

// IndexedValueKind tags the variant carried by an IndexedValue.
type IndexedValueKind uint8

// Tag values match the on-disk dtype byte in spec.md §4.7 so decoding
// never needs a translation table between the in-memory and wire forms.
const (
	IndexedInt64     IndexedValueKind = 1
	IndexedFloat64   IndexedValueKind = 2
	IndexedUtf8      IndexedValueKind = 3
	IndexedBoolean   IndexedValueKind = 4
	IndexedTimestamp IndexedValueKind = 5
	IndexedNull      IndexedValueKind = 6
)

// IndexedValue is the canonical, totally ordered representation of a
// column value used by the index engine (spec.md §3). Cross-variant
// comparison never matches; within a variant, Float64 uses total order
// (NaN sorts last, -0 == +0).
type IndexedValue struct {
	Kind    IndexedValueKind
	Int     int64
	Float   float64
	Str     string
	Bool    bool
	Millis  int64 // Timestamp: ms since epoch
}

func IndexedFromInt64(v int64) IndexedValue     { return IndexedValue{Kind: IndexedInt64, Int: v} }
func IndexedFromFloat64(v float64) IndexedValue { return IndexedValue{Kind: IndexedFloat64, Float: v} }
func IndexedFromUtf8(v string) IndexedValue     { return IndexedValue{Kind: IndexedUtf8, Str: v} }
func IndexedFromBoolean(v bool) IndexedValue    { return IndexedValue{Kind: IndexedBoolean, Bool: v} }
func IndexedFromTimestamp(ms int64) IndexedValue {
	return IndexedValue{Kind: IndexedTimestamp, Millis: ms}
}
func IndexedFromNull() IndexedValue { return IndexedValue{Kind: IndexedNull} }

// Compare orders a relative to b. Returns (-1|0|1, true) when the two
// values are comparable (same Kind); (0, false) when they are not —
// callers must treat an incomparable pair as "does not match" per
// spec.md §3, never as equal.
func (a IndexedValue) Compare(b IndexedValue) (int, bool) {
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case IndexedInt64:
		return cmpInt64(a.Int, b.Int), true
	case IndexedFloat64:
		return cmpFloat64Total(a.Float, b.Float), true
	case IndexedUtf8:
		return cmpString(a.Str, b.Str), true
	case IndexedBoolean:
		return cmpBool(a.Bool, b.Bool), true
	case IndexedTimestamp:
		return cmpInt64(a.Millis, b.Millis), true
	case IndexedNull:
		return 0, true
	default:
		return 0, false
	}
}

// Equal reports whether a and b are the same variant and value.
func (a IndexedValue) Equal(b IndexedValue) bool {
	cmp, ok := a.Compare(b)
	return ok && cmp == 0
}

// Less reports whether a sorts strictly before b under total order,
// treating incomparable (cross-variant) pairs as not-less.
func (a IndexedValue) Less(b IndexedValue) bool {
	cmp, ok := a.Compare(b)
	return ok && cmp < 0
}

func (a IndexedValue) String() string {
	switch a.Kind {
	case IndexedInt64:
		return fmt.Sprintf("%d", a.Int)
	case IndexedFloat64:
		return fmt.Sprintf("%v", a.Float)
	case IndexedUtf8:
		return a.Str
	case IndexedBoolean:
		return fmt.Sprintf("%v", a.Bool)
	case IndexedTimestamp:
		return fmt.Sprintf("ts:%d", a.Millis)
	case IndexedNull:
		return "null"
	default:
		return "invalid"
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// cmpFloat64Total orders floats so that NaN sorts last and -0.0 == 0.0,
// matching spec.md §3's "Float64 uses total order" requirement, which
// plain IEEE-754 comparison operators do not provide on their own.
func cmpFloat64Total(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	// normalize -0 to +0 so it compares equal to +0
	if a == 0 {
		a = 0
	}
	if b == 0 {
		b = 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IndexPredicateKind tags an IndexPredicate variant.
type IndexPredicateKind int

const (
	PredicateExact IndexPredicateKind = iota
	PredicateIn
	PredicateRange
)

// IndexPredicate is the fixed set of predicates the column index engine
// can accelerate: equality, membership, and (possibly one-sided) range
// (spec.md §4.6).
type IndexPredicate struct {
	Kind IndexPredicateKind

	Exact  IndexedValue   // PredicateExact
	Values []IndexedValue // PredicateIn

	// PredicateRange
	Min          *IndexedValue
	Max          *IndexedValue
	MinInclusive bool
	MaxInclusive bool
}

func ExactPredicate(v IndexedValue) IndexPredicate {
	return IndexPredicate{Kind: PredicateExact, Exact: v}
}

func InPredicate(values ...IndexedValue) IndexPredicate {
	return IndexPredicate{Kind: PredicateIn, Values: values}
}

// RangePredicate builds a (possibly one-sided) range predicate. Pass
// nil for min or max to leave that side unbounded.
func RangePredicate(min, max *IndexedValue, minInclusive, maxInclusive bool) IndexPredicate {
	return IndexPredicate{
		Kind: PredicateRange, Min: min, Max: max,
		MinInclusive: minInclusive, MaxInclusive: maxInclusive,
	}
}

// Matches reports whether v satisfies the predicate.
func (p IndexPredicate) Matches(v IndexedValue) bool {
	switch p.Kind {
	case PredicateExact:
		return p.Exact.Equal(v)
	case PredicateIn:
		for _, candidate := range p.Values {
			if candidate.Equal(v) {
				return true
			}
		}
		return false
	case PredicateRange:
		if p.Min != nil {
			cmp, ok := v.Compare(*p.Min)
			if !ok {
				return false
			}
			if cmp < 0 || (cmp == 0 && !p.MinInclusive) {
				return false
			}
		}
		if p.Max != nil {
			cmp, ok := v.Compare(*p.Max)
			if !ok {
				return false
			}
			if cmp > 0 || (cmp == 0 && !p.MaxInclusive) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
