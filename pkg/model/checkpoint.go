package model

import "time"

// SweepCheckpoint records progress of a level-1 sweep across its level-2 children.
type SweepCheckpoint struct {
	RunID             string              `json:"run_id,omitempty"`
	Mode              Mode                `json:"mode"`
	Level1            string              `json:"level1_id"`
	TotalChildren     int                 `json:"total_children"`
	CompletedChildren []string            `json:"completed_children"`
	Results           []StationScanResult `json:"results"`
	StartedAt         time.Time           `json:"started_at"`
}

// Matches reports whether the checkpoint belongs to a sweep over key.
func (c SweepCheckpoint) Matches(key ScopeKey) bool {
	return c.Level1 == key.Level1 && c.Mode == key.Mode()
}

// Completed reports whether child has already been scanned.
func (c SweepCheckpoint) Completed(child string) bool {
	for _, done := range c.CompletedChildren {
		if done == child {
			return true
		}
	}
	return false
}
