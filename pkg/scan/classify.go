package scan

import (
	"encoding/json"
	"fmt"
	"strings"

	"pricecheck/pkg/model"
)

// Classify compares every entry against the expected factor. An absent or
// empty schedule is indeterminate.
func Classify(s model.Schedule) (model.Verdict, []model.ScheduleEntry) {
	if len(s) == 0 {
		return model.Indeterminate, nil
	}
	mismatches := []model.ScheduleEntry{}
	for _, e := range s {
		if !e.Conforms() {
			mismatches = append(mismatches, e)
		}
	}
	if len(mismatches) == 0 {
		return model.Conforming, mismatches
	}
	return model.Deviating, mismatches
}

// ParseSchedule decodes the string value stored under the schedule key.
// Entries are decoded one field at a time: a factor that is not a JSON
// number is kept as a missing factor, so the entry counts as a mismatch
// instead of invalidating the whole schedule.
func ParseSchedule(value string) (model.Schedule, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	s := make(model.Schedule, 0, len(raw))
	for _, fields := range raw {
		var e model.ScheduleEntry
		if t, ok := number(fields["t"]); ok {
			e.T = t
		}
		if f, ok := number(fields["f"]); ok {
			e.F = &f
		}
		s = append(s, e)
	}
	return s, nil
}

func number(raw json.RawMessage) (float64, bool) {
	var v float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0, false
	}
	return v, true
}

// EncodeSchedule renders a schedule as the configuration value string.
func EncodeSchedule(s model.Schedule) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
