// Package source implements DefineSource, the pending-file discovery
// supplement to the core attach pipeline: a source names a root URL and a
// set of glob patterns, and can report which matching files under that
// root have not yet been attached to the bundle.
package source

import (
	"context"
	"sort"
	"strings"

	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Source is a declared pack-level data source: a directory to watch plus
// glob patterns selecting which files within it belong to the pack.
type Source struct {
	ID       types.ObjectId
	URL      string
	Patterns []string
}

// ListMatching lists the objects directly under s.URL whose relative path
// matches at least one of s.Patterns. store.List is non-recursive, so
// files in subdirectories are never listed, whatever the patterns.
func (s Source) ListMatching(ctx context.Context, store storage.Store) ([]string, error) {
	all, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, key := range all {
		if s.matches(key) {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// PendingFiles returns files under the source that are not present in
// attached (the paths, relative to the source root, of files already
// attached by AttachBlock operations), so a caller can attach exactly
// the new arrivals.
func (s Source) PendingFiles(ctx context.Context, store storage.Store, attached map[string]bool) ([]string, error) {
	all, err := s.ListMatching(ctx, store)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, f := range all {
		if !attached[f] {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

func (s Source) matches(relPath string) bool {
	for _, p := range s.Patterns {
		if globMatch(p, relPath) {
			return true
		}
	}
	return false
}

// globMatch implements the small subset of shell-glob syntax DefineSource
// needs: "*" matches within one path segment, "**" matches across segment
// boundaries (including zero segments), everything else is literal. No
// third-party glob matcher appears anywhere in the retrieved corpus, so
// this stays hand-rolled rather than reaching for the standard library's
// path.Match, which cannot express "**".
func globMatch(pattern, name string) bool {
	return globMatchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func globMatchSegments(pat, seg []string) bool {
	if len(pat) == 0 {
		return len(seg) == 0
	}
	if pat[0] == "**" {
		if globMatchSegments(pat[1:], seg) {
			return true
		}
		if len(seg) == 0 {
			return false
		}
		return globMatchSegments(pat, seg[1:])
	}
	if len(seg) == 0 {
		return false
	}
	if !segmentMatch(pat[0], seg[0]) {
		return false
	}
	return globMatchSegments(pat[1:], seg[1:])
}

// segmentMatch matches one path segment against a pattern segment
// containing only the single-segment wildcard "*".
func segmentMatch(pat, seg string) bool {
	parts := strings.Split(pat, "*")
	if len(parts) == 1 {
		return pat == seg
	}
	if !strings.HasPrefix(seg, parts[0]) {
		return false
	}
	seg = seg[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(seg, parts[i])
		if idx < 0 {
			return false
		}
		seg = seg[idx+len(parts[i]):]
	}
	return strings.HasSuffix(seg, parts[len(parts)-1])
}
