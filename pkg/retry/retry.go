// Package retry re-drives remediation from the ledger alone, without
// re-reading device state.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"pricecheck/pkg/ledger"
	"pricecheck/pkg/model"
	"pricecheck/pkg/remediate"
)

type Remediator interface {
	Remediate(ctx context.Context, key model.ScopeKey, records []model.StationRecord, schedule model.Schedule) (remediate.Outcome, error)
}

type Orchestrator struct {
	Ledger *ledger.Ledger
	Driver Remediator
	Log    *slog.Logger
}

// Result reports one scope retry.
type Result struct {
	Key       model.ScopeKey
	Attempted int
	Outcome   remediate.Outcome
	Removed   bool
}

// ListOutstanding returns scopes with at least one non-accepted station,
// most recently updated first.
func (o *Orchestrator) ListOutstanding() []model.ScopeSummary {
	var out []model.ScopeSummary
	for _, s := range o.Ledger.Summaries() {
		if s.Outstanding() > 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.After(out[j].LastUpdated)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Pending returns the stored entry for key and its outstanding records.
func (o *Orchestrator) Pending(key model.ScopeKey) (model.LedgerEntry, []model.StationRecord, error) {
	e, ok := o.Ledger.Entry(key)
	if !ok {
		return model.LedgerEntry{}, nil, fmt.Errorf("%s: %w", key, ledger.ErrScopeNotFound)
	}
	return e, e.Outstanding(), nil
}

// RetryScope re-attempts every pending, rejected or errored station of key
// with the stored corrective schedule, then removes the scope if complete.
func (o *Orchestrator) RetryScope(ctx context.Context, key model.ScopeKey) (Result, error) {
	res := Result{Key: key}
	e, recs, err := o.Pending(key)
	if err != nil {
		return res, err
	}
	res.Attempted = len(recs)
	schedule := e.CorrectSchedule
	if len(schedule) == 0 {
		schedule = model.DefaultSchedule()
	}
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("retrying scope", "scope", key.String(), "stations", len(recs))
	if len(recs) > 0 {
		res.Outcome, err = o.Driver.Remediate(ctx, key, recs, schedule)
		if err != nil {
			return res, err
		}
	}
	res.Removed, err = o.Ledger.RemoveIfComplete(key)
	return res, err
}

// RetryAll retries every outstanding scope in ListOutstanding order.
func (o *Orchestrator) RetryAll(ctx context.Context) ([]Result, error) {
	var out []Result
	for _, s := range o.ListOutstanding() {
		r, err := o.RetryScope(ctx, s.ScopeKey)
		out = append(out, r)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
