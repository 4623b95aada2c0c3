package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/device/devicetest"
	"pricecheck/pkg/ledger"
	"pricecheck/pkg/model"
	"pricecheck/pkg/remediate"
	"pricecheck/pkg/scan"
)

func seed(t *testing.T, l *ledger.Ledger, key model.ScopeKey, pfids ...string) {
	t.Helper()
	var results []model.StationScanResult
	for _, p := range pfids {
		results = append(results, model.StationScanResult{PFID: p, ScopeKey: key, Verdict: model.Deviating})
	}
	require.NoError(t, l.Upsert(key, remediate.BuildEntry(key, results, model.DefaultSchedule(), time.Now().UTC())))
}

func TestRetryOnlyOutstanding(t *testing.T) {
	key := model.ScopeKey{Level1: "0051", Level2: "09"}
	l := ledger.New(ledger.NewMemoryBackend(), nil)
	seed(t, l, key, "p1", "p2")
	require.NoError(t, l.UpdateStatus("p1", model.StatusAccepted, "", key))
	require.NoError(t, l.UpdateStatus("p2", model.StatusRejected, "busy", key))

	dev := devicetest.New()
	o := &Orchestrator{Ledger: l, Driver: &remediate.Driver{Writer: dev, Ledger: l}}

	outstanding := o.ListOutstanding()
	require.Len(t, outstanding, 1)
	assert.Equal(t, 1, outstanding[0].Rejected)

	res, err := o.RetryScope(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Outcome.Accepted)
	assert.True(t, res.Removed)

	writes := dev.WritesFor(scan.KeySchedule)
	require.Len(t, writes, 1)
	assert.Equal(t, "p2", writes[0].PFID)
	assert.Empty(t, o.ListOutstanding())
	assert.Empty(t, dev.Reads, "retry never reads device state")
}

func TestRetryStillRejectedKeepsScope(t *testing.T) {
	key := model.ScopeKey{Level1: "0051"}
	l := ledger.New(ledger.NewMemoryBackend(), nil)
	seed(t, l, key, "p1")
	dev := devicetest.New()
	dev.WriteStatus["p1"] = "Rejected"

	o := &Orchestrator{Ledger: l, Driver: &remediate.Driver{Writer: dev, Ledger: l}}
	res, err := o.RetryScope(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.Equal(t, 1, res.Outcome.Rejected)
	require.Len(t, o.ListOutstanding(), 1)
}

func TestListOutstandingOrder(t *testing.T) {
	l := ledger.New(ledger.NewMemoryBackend(), nil)
	a := model.ScopeKey{Level1: "A"}
	b := model.ScopeKey{Level1: "B"}
	seed(t, l, a, "a1")
	seed(t, l, b, "b1")
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, l.UpdateStatus("a1", model.StatusError, "x", a))

	o := &Orchestrator{Ledger: l}
	got := o.ListOutstanding()
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Key)
	assert.Equal(t, "B", got[1].Key)
}

func TestRetryUnknownScope(t *testing.T) {
	o := &Orchestrator{Ledger: ledger.New(ledger.NewMemoryBackend(), nil)}
	_, err := o.RetryScope(context.Background(), model.ScopeKey{Level1: "nope"})
	assert.ErrorIs(t, err, ledger.ErrScopeNotFound)
}
