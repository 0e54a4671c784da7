package operation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func schemaWith(names ...string) types.Schema {
	s := types.NewSchema()
	for _, n := range names {
		s = s.WithColumn(n, types.Utf8Type(), false)
	}
	return s
}

func TestRemoveColumns_Check(t *testing.T) {
	cases := []struct {
		name    string
		op      *operation.RemoveColumns
		wantErr bool
	}{
		{"rejects empty names", &operation.RemoveColumns{Names: nil}, true},
		{"rejects unknown column", &operation.RemoveColumns{Names: []string{"missing"}}, true},
		{"accepts known column", &operation.RemoveColumns{Names: []string{"region"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := state.New()
			s.Schema = schemaWith("region", "amount")
			err := tc.op.Check(s)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRenameColumn_Check(t *testing.T) {
	cases := []struct {
		name    string
		op      *operation.RenameColumn
		wantErr bool
	}{
		{"rejects unknown source column", &operation.RenameColumn{From: "missing", To: "x"}, true},
		{"rejects empty target name", &operation.RenameColumn{From: "region", To: ""}, true},
		{"accepts valid rename", &operation.RenameColumn{From: "region", To: "loc"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := state.New()
			s.Schema = schemaWith("region")
			err := tc.op.Check(s)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRenameColumn_ReconfigurePreservesTypeAndPosition(t *testing.T) {
	s := state.New()
	s.Schema = schemaWith("region", "amount")

	op := &operation.RenameColumn{Type_: operation.TypeRenameColumn, From: "region", To: "loc"}
	next, err := op.Reconfigure(nil, nil, s)
	require.NoError(t, err)
	require.Equal(t, []string{"loc", "amount"}, next.Schema.Names())
}

func TestDefineSource_CheckRejectsSecondDeclaration(t *testing.T) {
	s := state.New()
	op := &operation.DefineSource{URL: "memory:///src", Patterns: []string{"**/*"}}
	require.NoError(t, op.Check(s))

	s.SourceDefined = true
	require.Error(t, op.Check(s), "a bundle may only declare one source")
}

func TestDefineSource_CheckRequiresURLAndPatterns(t *testing.T) {
	s := state.New()
	require.Error(t, (&operation.DefineSource{Patterns: []string{"**/*"}}).Check(s))
	require.Error(t, (&operation.DefineSource{URL: "memory:///src"}).Check(s))
}
