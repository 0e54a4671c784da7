package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/pkg/types"
)

func loaderOf(raw string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return []byte(raw), nil
	}
}

func TestCSVAdapter_InfersWidenedTypes(t *testing.T) {
	raw := "region,amount,active,label\n" +
		"west,12.5,true,ok\n" +
		"east,4,false,ok\n" +
		"north,,true,\n"

	a := newCSVAdapter(loaderOf(raw))
	ctx := context.Background()

	schema, err := a.Schema(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"region", "amount", "active", "label"}, schema.Names())

	typ, ok := schema.TypeOf("amount")
	require.True(t, ok)
	require.Equal(t, types.KindFloat64, typ.Kind)

	typ, ok = schema.TypeOf("active")
	require.True(t, ok)
	require.Equal(t, types.KindBoolean, typ.Kind)

	require.True(t, schema.Nullable("amount"))
	require.True(t, schema.Nullable("label"))
	require.False(t, schema.Nullable("region"))

	rows, err := a.ApproxRowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), rows)
}

func TestCSVAdapter_ScanProjection(t *testing.T) {
	raw := "region,amount\nwest,12.5\neast,4\n"
	a := newCSVAdapter(loaderOf(raw))
	ctx := context.Background()

	stream, err := a.Scan(ctx, block.ScanOptions{Projection: []string{"region"}})
	require.NoError(t, err)
	defer stream.Close()

	batch, err := stream.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, []string{"region"}, batch.Schema.Names())
	require.Equal(t, []any{"west", "east"}, batch.Columns["region"])

	next, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestCSVAdapter_ScanRejectsRowIDProjection(t *testing.T) {
	a := newCSVAdapter(loaderOf("region\nwest\n"))
	_, err := a.Scan(context.Background(), block.ScanOptions{RowIDs: []uint64{0}})
	require.ErrorIs(t, err, block.ErrRowIDProjectionUnsupported)
}
