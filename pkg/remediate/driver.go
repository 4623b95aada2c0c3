// Package remediate writes the corrective schedule to deviating stations and
// records each outcome in the ledger.
package remediate

import (
	"context"
	"fmt"
	"log/slog"

	"pricecheck/pkg/device"
	"pricecheck/pkg/journal"
	"pricecheck/pkg/metrics"
	"pricecheck/pkg/model"
	"pricecheck/pkg/progress"
	"pricecheck/pkg/scan"
)

type Writer interface {
	WriteConfig(ctx context.Context, pfid, key, value string) (device.Reply, error)
}

type Ledger interface {
	UpdateStatus(pfid string, status model.RemediationStatus, detail string, key model.ScopeKey) error
}

// Outcome counts a remediation pass. Rejected includes errors; Errored is
// the error share of it. Skipped counts records already accepted.
type Outcome struct {
	Accepted int
	Rejected int
	Errored  int
	Skipped  int
}

type Driver struct {
	Writer  Writer
	Ledger  Ledger
	Journal journal.Journal
	Events  progress.Sink
	Metrics *metrics.Recorder
	Log     *slog.Logger
	RunID   string
}

func (d *Driver) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

// Remediate writes schedule to every record in order. Individual failures
// are recorded and never stop the pass; cancellation stops it between
// stations.
func (d *Driver) Remediate(ctx context.Context, key model.ScopeKey, records []model.StationRecord, schedule model.Schedule) (Outcome, error) {
	var out Outcome
	value, err := scan.EncodeSchedule(schedule)
	if err != nil {
		return out, fmt.Errorf("encode schedule: %w", err)
	}
	log := d.logger().With("scope", key.String())
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if rec.Status == model.StatusAccepted {
			out.Skipped++
			continue
		}
		reply, werr := d.Writer.WriteConfig(ctx, rec.PFID, scan.KeySchedule, value)
		if werr != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}
		status, detail := Classify(reply, werr)
		if err := d.Ledger.UpdateStatus(rec.PFID, status, detail, key); err != nil {
			log.Warn("ledger update failed", "pfid", rec.PFID, "error", err)
		}
		if d.Journal != nil {
			a := journal.Attempt{RunID: d.RunID, Scope: key.String(), PFID: rec.PFID, Status: status, Detail: detail}
			if err := d.Journal.Record(ctx, a); err != nil {
				log.Warn("journal record failed", "pfid", rec.PFID, "error", err)
			}
		}
		d.Metrics.Attempt(status)
		progress.Stamp(d.Events, progress.Event{
			Kind: progress.KindRemediation, RunID: d.RunID, Scope: key.String(), PFID: rec.PFID,
			Status: status, Detail: detail, Index: i + 1, Total: len(records),
		})
		switch status {
		case model.StatusAccepted:
			out.Accepted++
			log.Info("schedule updated", "pfid", rec.PFID)
		case model.StatusRejected:
			out.Rejected++
			log.Warn("schedule update rejected", "pfid", rec.PFID, "reason", detail)
		default:
			out.Rejected++
			out.Errored++
			log.Warn("schedule update failed", "pfid", rec.PFID, "error", detail)
		}
	}
	return out, nil
}
