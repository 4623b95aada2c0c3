package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/pkg/model"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Station(model.Conforming)
	r.Station(model.Deviating)
	r.Station(model.Deviating)
	r.Attempt(model.StatusAccepted)
	r.Skipped(3)
	r.Skipped(0)
	r.Child()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.StationsScanned.WithLabelValues("deviating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RemediationAttempts.WithLabelValues("accepted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.StationsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ChildrenCompleted))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Station(model.Conforming)
		r.Attempt(model.StatusError)
		r.Child()
		r.EnableForced()
	})
	assert.NoError(t, r.WriteTextfile("/nonexistent/x.prom"))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Station(model.Indeterminate)
	path := filepath.Join(t.TempDir(), "pricecheck.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `pricecheck_stations_scanned_total{verdict="indeterminate"} 1`)
}
