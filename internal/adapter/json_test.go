package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func TestJSONAdapter_ArrayOfObjects(t *testing.T) {
	raw := `[{"region":"west","amount":12.5},{"region":"east","amount":4,"flag":true}]`
	a := newJSONAdapter(loaderOf(raw))
	ctx := context.Background()

	schema, err := a.Schema(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"region", "amount", "flag"}, schema.Names())

	require.True(t, schema.Nullable("flag"), "flag is missing from the first row so must widen to nullable")
	require.False(t, schema.Nullable("region"))

	rows, err := a.ApproxRowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), rows)
}

func TestJSONAdapter_NewlineDelimited(t *testing.T) {
	raw := "{\"region\":\"west\",\"amount\":1}\n{\"region\":\"east\",\"amount\":2}\n"
	a := newJSONAdapter(loaderOf(raw))
	ctx := context.Background()

	rows, err := a.ApproxRowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), rows)

	typ, ok := a.schema.TypeOf("amount")
	require.True(t, ok)
	require.Equal(t, types.KindFloat64, typ.Kind)
}

func TestJSONAdapter_ScanCoercesJSONNumbers(t *testing.T) {
	raw := `[{"amount":7}]`
	a := newJSONAdapter(loaderOf(raw))
	ctx := context.Background()

	stream, err := a.Scan(ctx, block.ScanOptions{})
	require.NoError(t, err)
	defer stream.Close()

	batch, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(7), batch.Columns["amount"][0])
}
