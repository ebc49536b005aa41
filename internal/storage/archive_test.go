package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRecordAndQueryRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	r := &types.ScanResult{
		Scanner: "design-tokens",
		Status:  types.StatusWarn,
		Warnings: []types.Violation{
			{ID: "design-tokens/raw-literal", Severity: types.SeverityWarning, Message: "raw literal"},
		},
		Metrics:    map[string]float64{"usage": 61.5},
		DurationMS: 42,
		Timestamp:  time.Now().Round(time.Second),
		Summary:    "61.5% token usage",
	}
	require.NoError(t, a.RecordResult(ctx, r, 61.5))

	rows, err := a.RecentResults(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, "design-tokens", got.Scanner)
	assert.Equal(t, types.StatusWarn, got.Status)
	assert.Equal(t, 0, got.Violations)
	assert.Equal(t, 1, got.Warnings)
	assert.Equal(t, 61.5, got.Score)
	assert.Equal(t, 61.5, got.Metrics["usage"])
	assert.Equal(t, int64(42), got.DurationMS)
	assert.Equal(t, "61.5% token usage", got.Summary)
}

func TestRecentResultsFiltersAndOrders(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "a"} {
		require.NoError(t, a.RecordResult(ctx, &types.ScanResult{
			Scanner:    id,
			Status:     types.StatusPass,
			DurationMS: int64(i),
			Timestamp:  time.Now(),
		}, 100))
	}

	all, err := a.RecentResults(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first
	assert.Equal(t, int64(2), all[0].DurationMS)

	onlyA, err := a.RecentResults(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	limited, err := a.RecentResults(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPrune(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.RecordResult(ctx, &types.ScanResult{
		Scanner:   "old",
		Status:    types.StatusPass,
		Timestamp: time.Now().Add(-100 * 24 * time.Hour),
	}, 100))
	require.NoError(t, a.RecordResult(ctx, &types.ScanResult{
		Scanner:   "new",
		Status:    types.StatusPass,
		Timestamp: time.Now(),
	}, 100))

	removed, err := a.Prune(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err := a.RecentResults(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].Scanner)
}
