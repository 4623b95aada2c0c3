package remediate

import (
	"encoding/json"
	"fmt"
	"time"

	"pricecheck/pkg/device"
	"pricecheck/pkg/model"
)

// Classify maps a write reply to a remediation status and detail. Call
// failures and replies without a natsResponse object are errors; any status
// other than Accepted is a rejection.
func Classify(reply device.Reply, err error) (model.RemediationStatus, string) {
	switch {
	case err != nil:
		return model.StatusError, err.Error()
	case reply.Error != "":
		return model.StatusError, reply.Error
	case reply.Nats != nil:
		if reply.Status() == "Accepted" {
			return model.StatusAccepted, ""
		}
		return model.StatusRejected, reply.Reason()
	case reply.NatsRaw == nil:
		return model.StatusError, "Unknown error"
	}
	if s, ok := reply.NatsRaw.(string); ok {
		return model.StatusError, s
	}
	b, merr := json.Marshal(reply.NatsRaw)
	if merr != nil {
		return model.StatusError, fmt.Sprint(reply.NatsRaw)
	}
	return model.StatusError, string(b)
}

// CorrectiveSchedule is the schedule of the first conforming station, or
// the default schedule when none conforms.
func CorrectiveSchedule(results []model.StationScanResult) model.Schedule {
	for _, r := range results {
		if r.Verdict == model.Conforming && len(r.Schedule) > 0 {
			return append(model.Schedule(nil), r.Schedule...)
		}
	}
	return model.DefaultSchedule()
}

// Deviating filters results down to deviating stations, keeping order.
func Deviating(results []model.StationScanResult) []model.StationScanResult {
	var out []model.StationScanResult
	for _, r := range results {
		if r.Verdict == model.Deviating {
			out = append(out, r)
		}
	}
	return out
}

// BuildEntry turns freshly detected deviations into a ledger entry with every
// station pending.
func BuildEntry(key model.ScopeKey, deviating []model.StationScanResult, schedule model.Schedule, now time.Time) model.LedgerEntry {
	e := model.LedgerEntry{
		Mode:            key.Mode(),
		ScopeKey:        key,
		SavedAt:         now,
		LastUpdated:     now,
		CorrectSchedule: schedule,
		Stations:        make([]model.StationRecord, 0, len(deviating)),
	}
	for _, r := range deviating {
		e.Stations = append(e.Stations, model.StationRecord{
			PFID:            r.PFID,
			ScopeKey:        r.ScopeKey,
			CurrentSchedule: r.Schedule,
			Mismatches:      r.Mismatches,
			Status:          model.StatusPending,
		})
	}
	return e
}
