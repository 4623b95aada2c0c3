// Package progress publishes per-station scan and remediation events.
package progress

import (
	"log/slog"
	"time"

	"pricecheck/pkg/model"
)

type Kind string

const (
	KindScan        Kind = "scan"
	KindChild       Kind = "child"
	KindRemediation Kind = "remediation"
)

type Event struct {
	Kind    Kind                    `json:"kind"`
	RunID   string                  `json:"run_id,omitempty"`
	Scope   string                  `json:"scope"`
	PFID    string                  `json:"pfid,omitempty"`
	Verdict model.Verdict           `json:"verdict,omitempty"`
	Status  model.RemediationStatus `json:"status,omitempty"`
	Detail  string                  `json:"detail,omitempty"`
	Index   int                     `json:"index,omitempty"`
	Total   int                     `json:"total,omitempty"`
	At      time.Time               `json:"at"`
}

// Sink receives events. Emit must not block the caller for long.
type Sink interface {
	Emit(Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(Event) {}

// LogSink writes events at debug level.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Emit(e Event) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{"kind", e.Kind, "scope", e.Scope}
	if e.PFID != "" {
		attrs = append(attrs, "pfid", e.PFID)
	}
	if e.Verdict != "" {
		attrs = append(attrs, "verdict", e.Verdict)
	}
	if e.Status != "" {
		attrs = append(attrs, "status", e.Status)
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}
	if e.Total > 0 {
		attrs = append(attrs, "index", e.Index, "total", e.Total)
	}
	log.Debug("progress", attrs...)
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Stamp fills At when unset and forwards to sink, which may be nil.
func Stamp(sink Sink, e Event) {
	if sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	sink.Emit(e)
}
