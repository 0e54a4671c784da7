// Package indexadvisor recommends CreateIndex/DropIndex actions from
// observed predicate frequency against bundlebase's manifest-driven
// index definitions.
package indexadvisor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bundlebase/bundlebase/internal/observability"
)

// ActionKind is the recommendation an evaluation produces for one column.
type ActionKind string

const (
	ActionCreate ActionKind = "CREATE"
	ActionDrop   ActionKind = "DROP"
)

// Action is one recommended CreateIndex/DropIndex for column.
type Action struct {
	Kind   ActionKind
	Column string
}

// ExistingIndexes is supplied by the caller (the bundle state's
// IndexDefinition list) so the advisor never needs to know about
// manifests directly.
type ExistingIndexes func() []string

// Apply executes a recommended Action — typically by recording a
// CreateIndex/IndexBlocks or DropIndex operation against a builder.
type Apply func(ctx context.Context, action Action) error

// Advisor evaluates observability.ScanStats against configured
// thresholds to decide which columns deserve an index.
type Advisor struct {
	stats           *observability.ScanStats
	existing        ExistingIndexes
	createThreshold int64
	dropThreshold   int64
	maxIndexes      int
	checkInterval   time.Duration
	mu              sync.Mutex
}

// New creates an Advisor. createThreshold/dropThreshold are scan
// frequencies (spec.md's ambient "scans per hour" knob, bbconfig's
// IndexAdvisorThreshold); maxIndexes bounds how many columns can be
// indexed at once.
func New(stats *observability.ScanStats, existing ExistingIndexes, createThreshold, dropThreshold int64, maxIndexes int, checkInterval time.Duration) *Advisor {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Minute
	}
	return &Advisor{
		stats:           stats,
		existing:        existing,
		createThreshold: createThreshold,
		dropThreshold:   dropThreshold,
		maxIndexes:      maxIndexes,
		checkInterval:   checkInterval,
	}
}

// SetExisting replaces the advisor's existing-index feed, letting one
// Advisor instance be reused across whichever bundle a caller last
// opened rather than requiring a fresh Advisor per bundle root.
func (a *Advisor) SetExisting(existing ExistingIndexes) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.existing = existing
}

// Evaluate computes the current set of recommended actions without
// side effects.
func (a *Advisor) Evaluate() []Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	top := a.stats.TopPredicates(a.maxIndexes + 10)
	existing := a.existing()
	existingSet := make(map[string]bool, len(existing))
	for _, col := range existing {
		existingSet[col] = true
	}

	var actions []Action
	indexCount := len(existing)
	for _, s := range top {
		if s.Frequency >= a.createThreshold && !existingSet[s.Column] {
			if indexCount < a.maxIndexes {
				actions = append(actions, Action{Kind: ActionCreate, Column: s.Column})
				existingSet[s.Column] = true
				indexCount++
			}
		}
	}

	freqByColumn := make(map[string]int64, len(top))
	for _, s := range top {
		freqByColumn[s.Column] = s.Frequency
	}
	for _, col := range existing {
		if freqByColumn[col] < a.dropThreshold {
			actions = append(actions, Action{Kind: ActionDrop, Column: col})
		}
	}
	return actions
}

// Run evaluates on a ticker until ctx is cancelled, calling apply for
// each recommended action. Apply errors are logged and do not stop the
// loop.
func (a *Advisor) Run(ctx context.Context, apply Apply) {
	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, action := range a.Evaluate() {
				if err := apply(ctx, action); err != nil {
					log.Printf("indexadvisor: applying %s for column %s: %v", action.Kind, action.Column, err)
				}
			}
		}
	}
}
