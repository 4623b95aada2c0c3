// Package metrics counts scan and remediation activity and exports it as a
// node-exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pricecheck/pkg/model"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	reg *prometheus.Registry

	StationsScanned     *prometheus.CounterVec
	StationsSkipped     prometheus.Counter
	EnableWrites        prometheus.Counter
	RemediationAttempts *prometheus.CounterVec
	ChildrenCompleted   prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		StationsScanned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricecheck",
			Name:      "stations_scanned_total",
			Help:      "Stations classified, by verdict.",
		}, []string{"verdict"}),
		StationsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pricecheck",
			Name:      "stations_skipped_total",
			Help:      "Stations of unsupported models.",
		}),
		EnableWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pricecheck",
			Name:      "enable_writes_total",
			Help:      "Times the schedule enable flag was forced on.",
		}),
		RemediationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricecheck",
			Name:      "remediation_attempts_total",
			Help:      "Corrective writes, by outcome.",
		}, []string{"status"}),
		ChildrenCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pricecheck",
			Name:      "sweep_children_completed_total",
			Help:      "Level-2 scopes fully scanned during a sweep.",
		}),
	}
}

func (r *Recorder) Station(v model.Verdict) {
	if r == nil {
		return
	}
	r.StationsScanned.WithLabelValues(string(v)).Inc()
}

func (r *Recorder) Skipped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.StationsSkipped.Add(float64(n))
}

func (r *Recorder) EnableForced() {
	if r == nil {
		return
	}
	r.EnableWrites.Inc()
}

func (r *Recorder) Attempt(s model.RemediationStatus) {
	if r == nil {
		return
	}
	r.RemediationAttempts.WithLabelValues(string(s)).Inc()
}

func (r *Recorder) Child() {
	if r == nil {
		return
	}
	r.ChildrenCompleted.Inc()
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
