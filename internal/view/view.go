// Package view implements C9: a view is a bundle rooted at
// "{parent_root}/_manifest/view_{view_id}/" whose origin commit carries
// `from` pointing at the parent, giving it the parent's full data for
// free and its own linear commit history thereafter (spec.md §4.9).
package view

import (
	"context"
	"strings"
	"time"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/bundle"
	"github.com/bundlebase/bundlebase/internal/manifest"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// subtreeMarker identifies a bundle root as a view subtree, so a second
// Attach on top of it can be rejected (spec.md §4.9 "a view of a view
// is not supported").
const subtreeMarker = "/_manifest/view_"

// IsView reports whether rootURL names a view subtree rather than a
// top-level bundle root.
func IsView(rootURL string) bool {
	return strings.Contains(rootURL, subtreeMarker)
}

// Attach captures source's pending operations, allocates a view_id,
// creates the "{parent_root}/_manifest/view_{view_id}/" subtree, writes
// its origin commit (from: parent root) followed by a commit carrying
// the captured operations, and returns the registered view_id plus the
// resulting read-only view Bundle. The caller is responsible for then
// recording the name -> view_id mapping in the parent builder via
// BundleBuilder.AttachView, to be persisted by the parent's next
// commit.
func Attach(ctx context.Context, parent *bundle.BundleBuilder, source *bundle.BundleBuilder, message string, rc *operation.Context) (types.ObjectId, *bundle.Bundle, error) {
	if IsView(parent.RootURL()) {
		return "", nil, bberrors.New(bberrors.Validation, "view.Attach", "cannot attach a view of a view").
			WithDetails(map[string]string{"root": parent.RootURL()})
	}

	viewID := types.NewObjectId()
	subtreeURL := manifest.ViewSubtreeURL(parent.RootURL(), string(viewID))

	subStore, err := manifest.Open(subtreeURL)
	if err != nil {
		return "", nil, err
	}

	origin := manifest.Commit{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Message:   "view origin",
		From:      parent.RootURL(),
	}
	if _, err := subStore.WriteCommit(ctx, origin); err != nil {
		return "", nil, err
	}

	pending := source.Status()
	if len(pending) > 0 {
		envs, err := operation.EncodeAll(pending)
		if err != nil {
			return "", nil, err
		}
		first := manifest.Commit{
			Version:   2,
			CreatedAt: time.Now().UTC(),
			Message:   message,
			Changes: []manifest.Change{{
				ID:          viewID.String(),
				Description: message,
				Operations:  envs,
			}},
		}
		if _, err := subStore.WriteCommit(ctx, first); err != nil {
			return "", nil, err
		}
	}

	v, err := bundle.Load(ctx, subtreeURL, rc)
	if err != nil {
		return "", nil, err
	}
	return viewID, v, nil
}

// Open loads an already-attached view by its parent root and view_id.
func Open(ctx context.Context, parentRootURL string, viewID types.ObjectId, rc *operation.Context) (*bundle.Bundle, error) {
	return bundle.Load(ctx, manifest.ViewSubtreeURL(parentRootURL, string(viewID)), rc)
}
