package remediate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/device"
	"pricecheck/pkg/device/devicetest"
	"pricecheck/pkg/journal"
	"pricecheck/pkg/ledger"
	"pricecheck/pkg/model"
	"pricecheck/pkg/scan"
)

func reply(t *testing.T, body string) device.Reply {
	t.Helper()
	r, err := device.ParseReply([]byte(body))
	require.NoError(t, err)
	return r
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		reply  device.Reply
		err    error
		status model.RemediationStatus
		detail string
	}{
		{"accepted", reply(t, `{"natsResponse":{"status":"Accepted"}}`), nil, model.StatusAccepted, ""},
		{"rejected error field", reply(t, `{"natsResponse":{"status":"Rejected","error":"locked","message":"m"}}`), nil, model.StatusRejected, "locked"},
		{"rejected message", reply(t, `{"natsResponse":{"status":"Rejected","message":"busy"}}`), nil, model.StatusRejected, "busy"},
		{"rejected reason", reply(t, `{"natsResponse":{"status":"NotSupported","reason":"fw"}}`), nil, model.StatusRejected, "fw"},
		{"rejected bare", reply(t, `{"natsResponse":{"status":"Rejected"}}`), nil, model.StatusRejected, `{"status":"Rejected"}`},
		{"case matters", reply(t, `{"natsResponse":{"status":"accepted"}}`), nil, model.StatusRejected, `{"status":"accepted"}`},
		{"call failure", device.Reply{}, errors.New("connection reset"), model.StatusError, "connection reset"},
		{"top-level error", reply(t, `{"error":"station offline"}`), nil, model.StatusError, "station offline"},
		{"no nats", reply(t, `{}`), nil, model.StatusError, "Unknown error"},
		{"nats string", reply(t, `{"natsResponse":"timeout"}`), nil, model.StatusError, "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, detail := Classify(tc.reply, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.detail, detail)
		})
	}
}

func TestCorrectiveSchedule(t *testing.T) {
	assert.True(t, CorrectiveSchedule(nil).Equal(model.DefaultSchedule()))

	own := model.Schedule{model.Entry(0, 0.5), model.Entry(12, 0.5)}
	results := []model.StationScanResult{
		{PFID: "a", Verdict: model.Deviating, Schedule: model.Schedule{model.Entry(0, 0.3)}},
		{PFID: "b", Verdict: model.Conforming, Schedule: own},
		{PFID: "c", Verdict: model.Conforming, Schedule: model.DefaultSchedule()},
	}
	assert.True(t, CorrectiveSchedule(results).Equal(own))
	assert.Len(t, Deviating(results), 1)
}

func setup(t *testing.T, statuses map[string]string, reasons map[string]string) (*devicetest.Fake, *ledger.Ledger, journal.Journal, model.ScopeKey, []model.StationRecord) {
	t.Helper()
	key := model.ScopeKey{Level1: "0051", Level2: "09"}
	dev := devicetest.New()
	for pfid, s := range statuses {
		dev.WriteStatus[pfid] = s
	}
	for pfid, r := range reasons {
		dev.WriteReason[pfid] = r
	}
	results := []model.StationScanResult{
		{PFID: "0051-09-01-01", ScopeKey: key, Verdict: model.Deviating, Mismatches: []model.ScheduleEntry{model.Entry(0, 0.3)}},
		{PFID: "0051-09-01-02", ScopeKey: key, Verdict: model.Deviating, Mismatches: []model.ScheduleEntry{model.Entry(4, 1)}},
	}
	entry := BuildEntry(key, results, model.DefaultSchedule(), time.Now().UTC())
	l := ledger.New(ledger.NewMemoryBackend(), nil)
	require.NoError(t, l.Upsert(key, entry))
	j, err := journal.OpenSQLite(filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return dev, l, j, key, entry.Stations
}

func TestRemediateAcceptedAndRejected(t *testing.T) {
	dev, l, j, key, recs := setup(t, map[string]string{"0051-09-01-02": "Rejected"}, map[string]string{"0051-09-01-02": "busy"})
	d := &Driver{Writer: dev, Ledger: l, Journal: j, RunID: "run-1"}

	out, err := d.Remediate(context.Background(), key, recs, model.DefaultSchedule())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Accepted: 1, Rejected: 1}, out)

	writes := dev.WritesFor(scan.KeySchedule)
	require.Len(t, writes, 2)
	want, _ := scan.EncodeSchedule(model.DefaultSchedule())
	assert.Equal(t, want, writes[0].Value)

	e, ok := l.Entry(key)
	require.True(t, ok)
	assert.Equal(t, model.StatusAccepted, e.Stations[0].Status)
	assert.Equal(t, model.StatusRejected, e.Stations[1].Status)
	assert.Equal(t, "busy", e.Stations[1].Detail)

	attempts, err := j.List(context.Background(), "0051-09-01-02", 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "run-1", attempts[0].RunID)
	assert.Equal(t, "busy", attempts[0].Detail)
}

func TestRemediateSkipsAccepted(t *testing.T) {
	dev, l, _, key, recs := setup(t, nil, nil)
	d := &Driver{Writer: dev, Ledger: l}

	_, err := d.Remediate(context.Background(), key, recs, model.DefaultSchedule())
	require.NoError(t, err)
	e, _ := l.Entry(key)

	out, err := d.Remediate(context.Background(), key, e.Stations, model.DefaultSchedule())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Skipped: 2}, out)
	assert.Len(t, dev.WritesFor(scan.KeySchedule), 2, "no further writes")
}

func TestRemediateContinuesOnError(t *testing.T) {
	dev, l, _, key, recs := setup(t, nil, nil)
	dev.WriteErr["0051-09-01-01"] = errors.New("connection reset")
	d := &Driver{Writer: dev, Ledger: l}

	out, err := d.Remediate(context.Background(), key, recs, model.DefaultSchedule())
	require.NoError(t, err)
	assert.Equal(t, Outcome{Accepted: 1, Rejected: 1, Errored: 1}, out)
	_, rec, _ := l.FindStation("0051-09-01-01")
	assert.Equal(t, model.StatusError, rec.Status)
	assert.Equal(t, "connection reset", rec.Detail)
}

func TestRemediateStopsOnCancel(t *testing.T) {
	dev, l, _, key, recs := setup(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Driver{Writer: dev, Ledger: l}).Remediate(ctx, key, recs, model.DefaultSchedule())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dev.Writes)
}
