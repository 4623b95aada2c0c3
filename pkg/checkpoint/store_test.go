package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/model"
)

func TestStoreRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "progress.json"), nil)
	assert.Nil(t, s.Load())

	cp := &model.SweepCheckpoint{
		Mode:              model.ModeLevel1,
		Level1:            "0051",
		TotalChildren:     2,
		CompletedChildren: []string{"09"},
		Results:           []model.StationScanResult{{PFID: "0051-09-01-01", Verdict: model.Conforming}},
		StartedAt:         time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(cp))

	got := s.Load()
	require.NotNil(t, got)
	assert.Equal(t, cp.CompletedChildren, got.CompletedChildren)
	assert.Equal(t, 2, got.TotalChildren)
	assert.True(t, got.StartedAt.Equal(cp.StartedAt))
	assert.True(t, got.Matches(model.ScopeKey{Level1: "0051"}))
	assert.False(t, got.Matches(model.ScopeKey{Level1: "0051", Level2: "09"}))
	assert.True(t, got.Completed("09"))
	assert.False(t, got.Completed("12"))

	require.NoError(t, s.Delete())
	assert.Nil(t, s.Load())
	require.NoError(t, s.Delete(), "deleting twice is fine")
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.Nil(t, New(path, nil).Load())
}
