package manifest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/manifest"
	"github.com/bundlebase/bundlebase/internal/storage"
)

func openStore(t *testing.T, rootURL string) *manifest.Store {
	t.Helper()
	s, err := manifest.Open(rootURL)
	require.NoError(t, err)
	return s
}

func TestStore_WriteCommitAssignsHashAndRejectsDuplicates(t *testing.T) {
	storage.ResetMemoryStores()
	s := openStore(t, "memory:///manifest-test")
	ctx := context.Background()

	c := manifest.Commit{
		Version:   1,
		CreatedAt: time.Unix(0, 0).UTC(),
		Message:   "first",
		Changes: []manifest.Change{
			{ID: "c1", Description: "attach", Operations: nil},
		},
	}

	path, err := s.WriteCommit(ctx, c)
	require.NoError(t, err)
	require.Contains(t, path, "00001")

	_, err = s.WriteCommit(ctx, c)
	require.Error(t, err, "writing the identical (version, hash) pair twice must fail")
}

func TestStore_LoadChainReplaysFromParent(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()

	parent := openStore(t, "memory:///manifest-parent")
	_, err := parent.WriteCommit(ctx, manifest.Commit{
		Version: 1, CreatedAt: time.Unix(0, 0).UTC(), Message: "origin",
	})
	require.NoError(t, err)

	child := openStore(t, "memory:///manifest-child")
	_, err = child.WriteCommit(ctx, manifest.Commit{
		Version: 1, CreatedAt: time.Unix(0, 0).UTC(), Message: "forked",
		From: "memory:///manifest-parent",
	})
	require.NoError(t, err)

	chain, err := child.LoadChain(ctx, nil)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "origin", chain[0].Message)
	require.Equal(t, "forked", chain[1].Message)
}

func TestStore_NextVersionIncrementsPastExisting(t *testing.T) {
	storage.ResetMemoryStores()
	ctx := context.Background()
	s := openStore(t, "memory:///manifest-version")

	v, err := s.NextVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)

	_, err = s.WriteCommit(ctx, manifest.Commit{Version: 1, CreatedAt: time.Unix(0, 0).UTC(), Message: "m1"})
	require.NoError(t, err)

	v, err = s.NextVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v)
}

func TestCommit_ComputeHashIsStableAndTamperEvident(t *testing.T) {
	c := manifest.Commit{Version: 1, CreatedAt: time.Unix(0, 0).UTC(), Message: "hello"}
	h1, err := c.ComputeHash()
	require.NoError(t, err)
	require.Len(t, h1, 12)

	c.Message = "hello, world"
	h2, err := c.ComputeHash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
