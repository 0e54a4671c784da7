package operation

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

const TypeDefineFunction = "defineFunction"

// DefineFunction records a named function's output schema in the
// manifest. The implementation itself never travels with it — a bundle
// that references a function://name block without a registered impl
// fails at first scan with function.ErrUnknownImpl (spec.md §4.9).
type DefineFunction struct {
	Type_        string      `yaml:"type"`
	Name         string      `yaml:"name"`
	OutputSchema types.Schema `yaml:"outputSchema"`
}

func (o *DefineFunction) Type() string { return TypeDefineFunction }

func (o *DefineFunction) Check(s *state.State) error {
	if o.Name == "" {
		return bberrors.New(bberrors.Validation, "DefineFunction.Check", "name must not be empty")
	}
	if o.OutputSchema.Len() == 0 {
		return bberrors.New(bberrors.Validation, "DefineFunction.Check", "outputSchema must not be empty")
	}
	return nil
}

func (o *DefineFunction) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	return s.Clone(), nil
}

func (o *DefineFunction) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan, nil
}
