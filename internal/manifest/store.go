package manifest

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/storage"
)

const manifestDir = "_manifest"

var commitFileRe = regexp.MustCompile(`^(\d{5})([0-9a-f]{12})\.yaml$`)

// Store mediates commit read/write for one bundle root.
type Store struct {
	store   storage.Store
	rootURL string
}

// NewStore wraps an already-resolved storage.Store for rootURL.
func NewStore(store storage.Store, rootURL string) *Store {
	return &Store{store: store, rootURL: rootURL}
}

// Open resolves rootURL to a Store via internal/storage.
func Open(rootURL string) (*Store, error) {
	st, err := storage.Resolve(rootURL)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "manifest.Open", "resolving bundle root", err)
	}
	return NewStore(st, rootURL), nil
}

func (s *Store) RootURL() string { return s.rootURL }

// WriteCommit computes c's hash, serializes it, and writes it
// atomically to "{root}/_manifest/{version:05d}{hash}.yaml", failing
// with a fatal error if that exact (version, hash) already exists
// (spec.md §4.1 "indicates double-write").
func (s *Store) WriteCommit(ctx context.Context, c Commit) (string, error) {
	hash, err := c.ComputeHash()
	if err != nil {
		return "", err
	}
	c.Hash = hash
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", bberrors.Wrap(bberrors.IO, "manifest.WriteCommit", "serializing commit", err)
	}
	path := manifestDir + "/" + c.FileName()
	if err := s.store.PutIfAbsent(ctx, path, data); err != nil {
		if err == storage.ErrAlreadyExists {
			return "", bberrors.New(bberrors.IO, "manifest.WriteCommit", "duplicate (version, hash) manifest file").
				WithDetails(map[string]string{"path": path})
		}
		return "", bberrors.Wrap(bberrors.IO, "manifest.WriteCommit", "writing commit file", err)
	}
	return path, nil
}

// readCommitAt fetches and decodes the commit at path, verifying its
// recorded hash against a fresh computation.
func (s *Store) readCommitAt(ctx context.Context, path string) (Commit, error) {
	data, err := s.store.Get(ctx, path)
	if err != nil {
		return Commit{}, bberrors.Wrap(bberrors.IO, "manifest.readCommitAt", "reading commit file", err)
	}
	var c Commit
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Commit{}, bberrors.Wrap(bberrors.IO, "manifest.readCommitAt", "parsing commit YAML", err)
	}
	want, err := c.ComputeHash()
	if err != nil {
		return Commit{}, err
	}
	if want != c.Hash {
		return Commit{}, bberrors.New(bberrors.IO, "manifest.readCommitAt", "commit hash does not match its serialized body").
			WithDetails(map[string]string{"path": path, "recorded": c.Hash, "computed": want})
	}
	return c, nil
}

// localCommitsSorted lists this bundle's own commits — never descending
// into view_* subtrees, because storage.Store.List is itself
// non-recursive over its prefix — and returns them version-ascending,
// failing if versions are non-contiguous (I2).
func (s *Store) localCommitsSorted(ctx context.Context) ([]Commit, error) {
	paths, err := s.store.List(ctx, manifestDir)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "manifest.localCommitsSorted", "listing manifest directory", err)
	}

	type versioned struct {
		version int
		path    string
	}
	var found []versioned
	for _, p := range paths {
		base := p
		if i := strings.LastIndex(p, "/"); i >= 0 {
			base = p[i+1:]
		}
		m := commitFileRe.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		v, _ := strconv.Atoi(m[1])
		found = append(found, versioned{version: v, path: p})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].version < found[j].version })

	commits := make([]Commit, 0, len(found))
	for i, v := range found {
		if i > 0 && v.version != found[i-1].version+1 {
			return nil, bberrors.New(bberrors.IO, "manifest.localCommitsSorted", "commit version sequence has a gap").
				WithDetails(map[string]string{"root": s.rootURL})
		}
		c, err := s.readCommitAt(ctx, v.path)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// LoadChain walks the `from` chain back to the earliest ancestor and
// returns every commit to replay, base-first. visited tracks root URLs
// already on the current path, for cycle detection; pass nil on the
// initial call.
func (s *Store) LoadChain(ctx context.Context, visited map[string]bool) ([]Commit, error) {
	if visited == nil {
		visited = map[string]bool{}
	}
	if visited[s.rootURL] {
		return nil, bberrors.New(bberrors.Cycle, "manifest.LoadChain", "from chain revisits a bundle root").
			WithDetails(map[string]string{"root": s.rootURL})
	}
	visited[s.rootURL] = true

	locals, err := s.localCommitsSorted(ctx)
	if err != nil {
		return nil, err
	}
	if len(locals) == 0 {
		return nil, nil
	}

	origin := locals[0]
	if origin.From == "" {
		return locals, nil
	}

	parentURL, err := resolveRelative(s.rootURL, origin.From)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "manifest.LoadChain", "resolving from URL", err)
	}
	parent, err := Open(parentURL)
	if err != nil {
		return nil, err
	}
	base, err := parent.LoadChain(ctx, visited)
	if err != nil {
		return nil, err
	}
	return append(base, locals...), nil
}

// History returns {version, hash, created_at, author, message} across
// the from chain: newest-first within this bundle, then the parent's
// own History appended (spec.md §4.1).
func (s *Store) History(ctx context.Context) ([]CommitHeader, error) {
	locals, err := s.localCommitsSorted(ctx)
	if err != nil {
		return nil, err
	}
	headers := make([]CommitHeader, len(locals))
	for i, c := range locals {
		headers[len(locals)-1-i] = CommitHeader{
			Version: c.Version, Hash: c.Hash, CreatedAt: c.CreatedAt, Author: c.Author, Message: c.Message,
		}
	}
	if len(locals) == 0 || locals[0].From == "" {
		return headers, nil
	}
	parentURL, err := resolveRelative(s.rootURL, locals[0].From)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "manifest.History", "resolving from URL", err)
	}
	parent, err := Open(parentURL)
	if err != nil {
		return nil, err
	}
	parentHistory, err := parent.History(ctx)
	if err != nil {
		return nil, err
	}
	return append(headers, parentHistory...), nil
}

// NextVersion returns the version a new commit on this bundle should
// carry: 1 if the bundle has no commits yet, else the highest existing
// version plus one.
func (s *Store) NextVersion(ctx context.Context) (uint64, error) {
	locals, err := s.localCommitsSorted(ctx)
	if err != nil {
		return 0, err
	}
	if len(locals) == 0 {
		return 1, nil
	}
	return locals[len(locals)-1].Version + 1, nil
}

// ViewSubtreeURL renders the "{root}/_manifest/view_{view_id}/" layout
// for attach_view (spec.md §4.9).
func ViewSubtreeURL(rootURL, viewID string) string {
	return strings.TrimRight(rootURL, "/") + "/" + manifestDir + "/view_" + viewID
}

func resolveRelative(rootURL, from string) (string, error) {
	base, err := url.Parse(rootURL)
	if err != nil {
		return "", fmt.Errorf("manifest: invalid root url %q: %w", rootURL, err)
	}
	ref, err := url.Parse(from)
	if err != nil {
		return "", fmt.Errorf("manifest: invalid from url %q: %w", from, err)
	}
	return base.ResolveReference(ref).String(), nil
}
