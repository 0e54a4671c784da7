package operation

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/state"
)

const (
	TypeDefinePack     = "definePack"
	TypeSetName        = "setName"
	TypeSetDescription = "setDescription"
)

// DefinePack marks the origin of a fresh bundle. It carries no fields;
// its sole effect is to exist as the first recorded operation of an
// origin bundle, an explicit no-op marker for the lifecycle boundary.
type DefinePack struct {
	Type_ string `yaml:"type"`
}

func (o *DefinePack) Type() string { return TypeDefinePack }

func (o *DefinePack) Check(s *state.State) error { return nil }

func (o *DefinePack) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	return s.Clone(), nil
}

func (o *DefinePack) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}

// SetName sets the bundle's display name.
type SetName struct {
	Type_ string `yaml:"type"`
	S     string `yaml:"s"`
}

func (o *SetName) Type() string { return TypeSetName }

func (o *SetName) Check(s *state.State) error {
	if o.S == "" {
		return bberrors.New(bberrors.Validation, "SetName.Check", "name must not be empty")
	}
	return nil
}

func (o *SetName) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	next := s.Clone()
	next.Name = o.S
	return next, nil
}

func (o *SetName) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}

// SetDescription sets the bundle's free-text description.
type SetDescription struct {
	Type_ string `yaml:"type"`
	S     string `yaml:"s"`
}

func (o *SetDescription) Type() string { return TypeSetDescription }

func (o *SetDescription) Check(s *state.State) error { return nil }

func (o *SetDescription) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	next := s.Clone()
	next.Description = o.S
	return next, nil
}

func (o *SetDescription) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}
