package model

// ExpectedFactor is the factor every schedule entry must carry.
const ExpectedFactor = 0.5

// ScheduleEntry is one time-offset/factor pair. F is nil when the station
// reported an entry without a numeric factor.
type ScheduleEntry struct {
	T float64  `json:"t"`
	F *float64 `json:"f"`
}

// Entry builds a ScheduleEntry with a factor.
func Entry(t, f float64) ScheduleEntry {
	return ScheduleEntry{T: t, F: &f}
}

// Conforms reports whether the entry carries the expected factor.
func (e ScheduleEntry) Conforms() bool {
	return e.F != nil && *e.F == ExpectedFactor
}

// Equal compares offset and factor.
func (e ScheduleEntry) Equal(o ScheduleEntry) bool {
	if e.T != o.T {
		return false
	}
	if e.F == nil || o.F == nil {
		return e.F == nil && o.F == nil
	}
	return *e.F == *o.F
}

// Schedule is an ordered list of entries.
type Schedule []ScheduleEntry

// Equal reports same length and entrywise equality.
func (s Schedule) Equal(o Schedule) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// DefaultSchedule is applied when no conforming station is available to copy from.
func DefaultSchedule() Schedule {
	return Schedule{
		Entry(0, ExpectedFactor),
		Entry(4, ExpectedFactor),
		Entry(8, ExpectedFactor),
		Entry(16, ExpectedFactor),
		Entry(20, ExpectedFactor),
	}
}
