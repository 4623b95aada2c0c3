package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/model"
)

func TestSQLiteRecordAndList(t *testing.T) {
	j, err := Open("sqlite", filepath.Join(t.TempDir(), "attempts.db"), nil)
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record(ctx, Attempt{RunID: "r1", Scope: "0051-09", PFID: "p1", Status: model.StatusRejected, Detail: "busy", At: base}))
	require.NoError(t, j.Record(ctx, Attempt{RunID: "r2", Scope: "0051-09", PFID: "p1", Status: model.StatusAccepted, At: base.Add(time.Hour)}))
	require.NoError(t, j.Record(ctx, Attempt{Scope: "0051-09", PFID: "p2", Status: model.StatusError}))

	got, err := j.List(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.StatusAccepted, got[0].Status)
	assert.Equal(t, "r2", got[0].RunID)
	assert.Equal(t, "busy", got[1].Detail)
	assert.True(t, got[1].At.Equal(base))
	assert.NotEmpty(t, got[0].ID)

	got, err = j.List(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = j.List(ctx, "nope", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenDrivers(t *testing.T) {
	j, err := Open("", "", nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, j)
	assert.NoError(t, j.Record(context.Background(), Attempt{}))

	_, err = Open("postgres", "x", nil)
	assert.Error(t, err)
}
