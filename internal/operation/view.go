package operation

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

const TypeAttachView = "attachView"

// AttachView registers a name → view_id mapping in the parent bundle's
// view table (spec.md §4.9). The view subtree itself — its origin
// commit with `from` set to the parent root, and its first commit of
// captured operations — is written directly by internal/view's
// attach_view dynamic; this operation only persists the resulting
// mapping so it survives a reload of the parent.
type AttachView struct {
	Type_  string `yaml:"type"`
	Name   string `yaml:"name"`
	ViewID string `yaml:"viewId"`
}

func (o *AttachView) Type() string { return TypeAttachView }

func (o *AttachView) Check(s *state.State) error {
	if o.Name == "" {
		return bberrors.New(bberrors.Validation, "AttachView.Check", "name must not be empty")
	}
	if o.ViewID == "" {
		return bberrors.New(bberrors.Validation, "AttachView.Check", "viewId must not be empty")
	}
	if _, exists := s.Views[o.Name]; exists {
		return bberrors.New(bberrors.Validation, "AttachView.Check", "view name already attached").
			WithDetails(map[string]string{"name": o.Name})
	}
	return nil
}

func (o *AttachView) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	next := s.Clone()
	next.Views[o.Name] = types.ObjectId(o.ViewID)
	return next, nil
}

func (o *AttachView) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}
