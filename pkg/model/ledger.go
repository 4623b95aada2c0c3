package model

import "time"

// RemediationStatus tracks one station through remediation.
type RemediationStatus string

const (
	StatusPending  RemediationStatus = "pending"
	StatusAccepted RemediationStatus = "accepted"
	StatusRejected RemediationStatus = "rejected"
	StatusError    RemediationStatus = "error"
)

// Outstanding reports whether the station still needs a write.
func (s RemediationStatus) Outstanding() bool {
	return s == StatusPending || s == StatusRejected || s == StatusError
}

// CanTransition reports whether an attempt outcome may move s to next.
// Accepted is terminal; pending is only entered by a fresh detection.
func (s RemediationStatus) CanTransition(next RemediationStatus) bool {
	if !s.Outstanding() {
		return false
	}
	switch next {
	case StatusAccepted, StatusRejected, StatusError:
		return true
	}
	return false
}

// StationRecord is the ledger's view of one deviating station.
type StationRecord struct {
	PFID string `json:"pfid"`
	ScopeKey
	CurrentSchedule Schedule          `json:"current_schedule"`
	Mismatches      []ScheduleEntry   `json:"mismatches"`
	Status          RemediationStatus `json:"update_status"`
	Detail          string            `json:"rejection_reason,omitempty"`
	LastAttempt     *time.Time        `json:"last_attempt,omitempty"`
}

// LedgerEntry holds every deviating station found for one scope.
type LedgerEntry struct {
	Mode Mode `json:"mode"`
	ScopeKey
	SavedAt         time.Time       `json:"saved_at"`
	LastUpdated     time.Time       `json:"last_updated"`
	CorrectSchedule Schedule        `json:"correct_schedule"`
	Stations        []StationRecord `json:"stations"`
}

// Complete reports whether every station has been accepted.
func (e LedgerEntry) Complete() bool {
	for _, s := range e.Stations {
		if s.Status != StatusAccepted {
			return false
		}
	}
	return true
}

// Outstanding returns the records that still need a write, in ledger order.
func (e LedgerEntry) Outstanding() []StationRecord {
	var out []StationRecord
	for _, s := range e.Stations {
		if s.Status.Outstanding() {
			out = append(out, s)
		}
	}
	return out
}

// Summary counts the entry's stations by status.
func (e LedgerEntry) Summary(key string) ScopeSummary {
	sum := ScopeSummary{
		Key:         key,
		Mode:        e.Mode,
		ScopeKey:    e.ScopeKey,
		SavedAt:     e.SavedAt,
		LastUpdated: e.LastUpdated,
		Total:       len(e.Stations),
	}
	for _, s := range e.Stations {
		switch s.Status {
		case StatusPending:
			sum.Pending++
		case StatusRejected:
			sum.Rejected++
		case StatusError:
			sum.Errored++
		case StatusAccepted:
			sum.Accepted++
		}
	}
	return sum
}

// LedgerDocument is the persisted form of the whole ledger.
type LedgerDocument struct {
	Sites map[string]LedgerEntry `json:"sites"`
}

// ScopeSummary describes a ledger scope for retry selection.
type ScopeSummary struct {
	Key  string
	Mode Mode
	ScopeKey
	SavedAt     time.Time
	LastUpdated time.Time
	Pending     int
	Rejected    int
	Errored     int
	Accepted    int
	Total       int
}

// Outstanding is the number of stations still needing a write.
func (s ScopeSummary) Outstanding() int {
	return s.Pending + s.Rejected + s.Errored
}
