// Package scan enumerates the stations of a scope, reads their pricing
// configuration and classifies each schedule.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pricecheck/pkg/device"
	"pricecheck/pkg/metrics"
	"pricecheck/pkg/model"
	"pricecheck/pkg/progress"
	"pricecheck/pkg/scope"
)

const (
	KeyEnable   = "PricingScheduleEnable"
	KeySchedule = "PricingSchedule"

	DefaultModel = "liteon"
)

// Device is the subset of the device-manager API the engine needs.
type Device interface {
	ListStations(ctx context.Context, level1, level2 string) ([]device.Station, error)
	ReadConfig(ctx context.Context, pfid, key string) (device.Reply, error)
	WriteConfig(ctx context.Context, pfid, key, value string) (device.Reply, error)
}

type Engine struct {
	Device         Device
	SupportedModel string
	Log            *slog.Logger
	Events         progress.Sink
	Metrics        *metrics.Recorder
	RunID          string
}

// Report is the outcome of scanning one scope.
type Report struct {
	Results []model.StationScanResult
	// Filtered counts stations outside a level-3/4 scope.
	Filtered int
	// OtherModels counts skipped stations by model.
	OtherModels map[string]int
}

func (e *Engine) logger() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

func (e *Engine) supported(m string) bool {
	want := e.SupportedModel
	if want == "" {
		want = DefaultModel
	}
	return strings.Contains(strings.ToLower(m), strings.ToLower(want))
}

// Scan lists the stations under key's level1/level2, applies the level-3/4
// filter and classifies every supported station in listing order. Only a
// listing failure or cancellation is returned as an error.
func (e *Engine) Scan(ctx context.Context, key model.ScopeKey) (Report, error) {
	rep := Report{OtherModels: map[string]int{}}
	log := e.logger().With("scope", key.String())

	stations, err := e.Device.ListStations(ctx, key.Level1, key.Level2)
	if err != nil {
		return rep, fmt.Errorf("scan %s: %w", key, err)
	}
	var candidates []device.Station
	for _, st := range stations {
		if st.PFID == "" {
			continue
		}
		if !key.Matches(st.PFID) {
			rep.Filtered++
			continue
		}
		if !e.supported(st.Model) {
			m := st.Model
			if m == "" {
				m = "Unknown"
			}
			rep.OtherModels[m]++
			continue
		}
		candidates = append(candidates, st)
	}
	skipped := 0
	for _, n := range rep.OtherModels {
		skipped += n
	}
	e.Metrics.Skipped(skipped)
	log.Info("stations listed", "total", len(stations), "candidates", len(candidates),
		"filtered", rep.Filtered, "other_models", skipped)

	for i, st := range candidates {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := e.station(ctx, key, st)
		rep.Results = append(rep.Results, res)
		e.Metrics.Station(res.Verdict)
		progress.Stamp(e.Events, progress.Event{
			Kind: progress.KindScan, RunID: e.RunID, Scope: key.String(), PFID: res.PFID,
			Verdict: res.Verdict, Detail: res.Detail, Index: i + 1, Total: len(candidates),
		})
		log.Debug("station classified", "pfid", res.PFID, "verdict", res.Verdict, "mismatches", len(res.Mismatches))
	}
	return rep, nil
}

func (e *Engine) station(ctx context.Context, key model.ScopeKey, st device.Station) model.StationScanResult {
	l3, l4 := scope.Decompose(st.PFID)
	res := model.StationScanResult{
		PFID:     st.PFID,
		ScopeKey: model.ScopeKey{Level1: key.Level1, Level2: key.Level2, Level3: l3, Level4: l4},
		Model:    st.Model,
		Verdict:  model.Indeterminate,
	}

	reply, err := e.Device.ReadConfig(ctx, st.PFID, KeyEnable)
	if err == nil && reply.Error != "" {
		err = errors.New(reply.Error)
	}
	if err != nil {
		res.Detail = fmt.Sprintf("read %s: %v", KeyEnable, err)
		e.logger().Warn("enable flag read failed", "pfid", st.PFID, "error", err)
		return res
	}
	if v, ok := reply.ConfigValue(KeyEnable); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		res.Enabled = boolPtr(true)
	} else {
		// outcome ignored: the station is treated as enabled either way
		if _, werr := e.Device.WriteConfig(ctx, st.PFID, KeyEnable, "true"); werr != nil {
			e.logger().Warn("enable flag write failed", "pfid", st.PFID, "error", werr)
		}
		res.Enabled = boolPtr(true)
		res.EnableForced = true
		e.Metrics.EnableForced()
	}

	reply, err = e.Device.ReadConfig(ctx, st.PFID, KeySchedule)
	if err == nil && reply.Error != "" {
		err = errors.New(reply.Error)
	}
	if err != nil {
		res.Detail = fmt.Sprintf("read %s: %v", KeySchedule, err)
		e.logger().Warn("schedule read failed", "pfid", st.PFID, "error", err)
		return res
	}
	raw, ok := reply.ConfigValue(KeySchedule)
	if !ok {
		res.Detail = "schedule not reported"
		return res
	}
	sched, err := ParseSchedule(raw)
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	res.Schedule = sched
	res.Verdict, res.Mismatches = Classify(sched)
	return res
}

func boolPtr(b bool) *bool { return &b }
