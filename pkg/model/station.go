package model

// SiteDirectoryEntry is one row of the cached site directory.
type SiteDirectoryEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Level1 string `json:"acn_id"`
	Level2 string `json:"acc_id"`
}

// Verdict is the outcome of classifying an observed schedule.
type Verdict string

const (
	Conforming    Verdict = "conforming"
	Deviating     Verdict = "deviating"
	Indeterminate Verdict = "indeterminate"
)

// StationScanResult is the per-station outcome of one scan.
type StationScanResult struct {
	PFID     string `json:"pfid"`
	ScopeKey        // decomposition of PFID: scanned level1/level2 plus 3rd/4th id segments
	Model    string `json:"evse_type,omitempty"`
	// Enabled is the feature flag as used for classification; nil when unknown.
	Enabled *bool `json:"enabled"`
	// EnableForced records that the flag was written because it was not exactly true.
	EnableForced bool            `json:"enable_forced,omitempty"`
	Schedule     Schedule        `json:"schedule"`
	Verdict      Verdict         `json:"verdict"`
	Mismatches   []ScheduleEntry `json:"mismatches"`
	Detail       string          `json:"detail,omitempty"`
}
