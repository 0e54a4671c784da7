package index_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bundlebase/bundlebase/internal/adapter"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// TestProperty_IndexLookupMatchesLinearScan builds a column index over a
// CSV-backed block with a random set of region values, encodes and
// reloads it, and checks that an exact-match lookup returns precisely
// the row offsets a linear scan of the same data would.
func TestProperty_IndexLookupMatchesLinearScan(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	regions := []string{"west", "east", "north", "south"}

	properties.Property("index lookup agrees with linear scan for every region value", prop.ForAll(
		func(picks []int) bool {
			values := make([]string, len(picks))
			for i, p := range picks {
				values[i] = regions[p%len(regions)]
			}
			return checkIndexMatchesLinearScan(t, values)
		},
		gen.SliceOfN(30, gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

func checkIndexMatchesLinearScan(t *testing.T, regionValues []string) bool {
	t.Helper()
	ctx := context.Background()

	var csvBody string
	for _, v := range regionValues {
		csvBody += fmt.Sprintf("%s\n", v)
	}
	raw := "region\n" + csvBody

	reg := block.NewRegistry()
	adapter.RegisterBuiltins(reg)
	storage.ResetMemoryStores()
	rootURL := "memory:///index-property"
	store, err := storage.Resolve(rootURL)
	if err != nil {
		t.Fatalf("resolving store: %v", err)
	}
	name := fmt.Sprintf("data-%s.csv", types.NewObjectId())
	if err := store.Put(ctx, name, []byte(raw)); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	da, err := reg.Resolve(ctx, rootURL+"/"+name, "")
	if err != nil {
		t.Fatalf("resolving adapter: %v", err)
	}
	schema, err := da.Schema(ctx)
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}

	blk := &block.Block{ID: types.NewObjectId(), Version: "v1", Schema: schema, Adapter: da}

	f, err := index.Build(ctx, "region", []*block.Block{blk})
	if err != nil {
		t.Fatalf("building index: %v", err)
	}
	encoded, err := f.Encode()
	if err != nil {
		t.Fatalf("encoding index: %v", err)
	}
	loaded, err := index.Load(encoded, []types.VersionedBlockId{blk.VersionedID()})
	if err != nil {
		t.Fatalf("loading index: %v", err)
	}

	for _, want := range []string{"west", "east", "north", "south"} {
		var expected []types.RowId
		for offset, v := range regionValues {
			if v == want {
				expected = append(expected, types.RowId{BlockID: blk.ID, Offset: uint64(offset)})
			}
		}
		got, err := loaded.Lookup(types.ExactPredicate(types.IndexedFromUtf8(want)))
		if err != nil {
			t.Fatalf("lookup %q: %v", want, err)
		}
		if len(got) != len(expected) {
			return false
		}
		for i := range expected {
			if got[i] != expected[i] {
				return false
			}
		}
	}
	return true
}
