package index_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/index"
)

func TestSelectCandidate_TieBreaksOnSmallerFileSizeBeforeColumnName(t *testing.T) {
	candidates := []index.Candidate{
		{Column: "zip", IndexPath: "idx_zip.idx", Selectivity: 0.05, FileSize: 4096},
		{Column: "region", IndexPath: "idx_region.idx", Selectivity: 0.05, FileSize: 1024},
	}

	winner, ok := index.SelectCandidate(candidates)
	require.True(t, ok)
	require.Equal(t, "region", winner.Column, "equal selectivity must be broken by the smaller index file")
}

func TestSelectCandidate_FallsBackToColumnNameWhenFileSizesAlsoTie(t *testing.T) {
	candidates := []index.Candidate{
		{Column: "zip", IndexPath: "idx_zip.idx", Selectivity: 0.05, FileSize: 2048},
		{Column: "region", IndexPath: "idx_region.idx", Selectivity: 0.05, FileSize: 2048},
	}

	winner, ok := index.SelectCandidate(candidates)
	require.True(t, ok)
	require.Equal(t, "region", winner.Column)
}

func TestSelectCandidate_LowerSelectivityWinsRegardlessOfFileSize(t *testing.T) {
	candidates := []index.Candidate{
		{Column: "region", IndexPath: "idx_region.idx", Selectivity: 0.10, FileSize: 512},
		{Column: "zip", IndexPath: "idx_zip.idx", Selectivity: 0.02, FileSize: 8192},
	}

	winner, ok := index.SelectCandidate(candidates)
	require.True(t, ok)
	require.Equal(t, "zip", winner.Column)
}
