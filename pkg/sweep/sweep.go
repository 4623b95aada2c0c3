// Package sweep drives a scan over a resolved scope. A level-1 scope is
// expanded into its level-2 children through the site catalog and
// checkpointed after each child.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"pricecheck/pkg/catalog"
	"pricecheck/pkg/metrics"
	"pricecheck/pkg/model"
	"pricecheck/pkg/progress"
	"pricecheck/pkg/scan"
)

type Scanner interface {
	Scan(ctx context.Context, key model.ScopeKey) (scan.Report, error)
}

type Directory interface {
	Directory(ctx context.Context, forceRefresh bool) ([]model.SiteDirectoryEntry, error)
}

type Checkpoints interface {
	Load() *model.SweepCheckpoint
	Save(cp *model.SweepCheckpoint) error
	Delete() error
}

// ResumeFunc decides whether a checkpoint matching the sweep is resumed.
type ResumeFunc func(ctx context.Context, cp *model.SweepCheckpoint) bool

type Sweeper struct {
	Scanner        Scanner
	Catalog        Directory
	Checkpoints    Checkpoints
	Resume         ResumeFunc
	RefreshCatalog bool
	RunID          string
	Log            *slog.Logger
	Events         progress.Sink
	Metrics        *metrics.Recorder

	now func() time.Time
}

// Result is the combined outcome of a sweep.
type Result struct {
	Key         model.ScopeKey
	Results     []model.StationScanResult
	Children    []string
	Resumed     bool
	Filtered    int
	OtherModels map[string]int
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Sweeper) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Run scans key. On cancellation the partial Result is returned with the
// context error; the checkpoint then reflects the last completed child.
func (s *Sweeper) Run(ctx context.Context, key model.ScopeKey) (Result, error) {
	res := Result{Key: key, OtherModels: map[string]int{}}
	if key.Depth() > 1 {
		rep, err := s.Scanner.Scan(ctx, key)
		res.add(rep)
		return res, err
	}
	return s.level1(ctx, key, res)
}

func (r *Result) add(rep scan.Report) {
	r.Results = append(r.Results, rep.Results...)
	r.Filtered += rep.Filtered
	for m, n := range rep.OtherModels {
		r.OtherModels[m] += n
	}
}

func (s *Sweeper) level1(ctx context.Context, key model.ScopeKey, res Result) (Result, error) {
	log := s.logger().With("scope", key.String())

	dir, err := s.Catalog.Directory(ctx, s.RefreshCatalog)
	if err != nil {
		return res, err
	}
	children := catalog.ExpandLevel1(dir, key.Level1)
	res.Children = children
	if len(children) == 0 {
		log.Warn("no level-2 scopes found in site directory")
		return res, nil
	}
	log.Info("level-2 scopes found", "count", len(children))

	cp, err := s.checkpoint(ctx, key)
	if err != nil {
		return res, err
	}
	if cp != nil {
		res.Resumed = true
		res.Results = append(res.Results, cp.Results...)
		cp.TotalChildren = len(children)
		log.Info("resuming sweep", "completed", len(cp.CompletedChildren), "total", len(children))
	} else {
		cp = &model.SweepCheckpoint{
			RunID:             s.RunID,
			Mode:              key.Mode(),
			Level1:            key.Level1,
			TotalChildren:     len(children),
			CompletedChildren: []string{},
			Results:           []model.StationScanResult{},
			StartedAt:         s.clock(),
		}
	}

	for i, child := range children {
		if cp.Completed(child) {
			log.Info("skipping completed scope", "child", child, "index", i+1, "total", len(children))
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ckey := key.Child(child)
		log.Info("scanning scope", "child", child, "index", i+1, "total", len(children))
		rep, err := s.Scanner.Scan(ctx, ckey)
		if err != nil {
			return res, err
		}
		res.add(rep)
		cp.Results = append(cp.Results, rep.Results...)
		cp.CompletedChildren = append(cp.CompletedChildren, child)
		if err := s.Checkpoints.Save(cp); err != nil {
			log.Warn("checkpoint save failed", "error", err)
		}
		s.Metrics.Child()
		progress.Stamp(s.Events, progress.Event{
			Kind: progress.KindChild, RunID: s.RunID, Scope: ckey.String(),
			Index: len(cp.CompletedChildren), Total: len(children),
		})
	}

	if err := s.Checkpoints.Delete(); err != nil {
		log.Warn("checkpoint delete failed", "error", err)
	}
	return res, nil
}

// checkpoint returns a checkpoint to resume from, discarding one that does
// not match key or that the operator declines. A cancellation while asking
// leaves the checkpoint on disk.
func (s *Sweeper) checkpoint(ctx context.Context, key model.ScopeKey) (*model.SweepCheckpoint, error) {
	cp := s.Checkpoints.Load()
	if cp == nil {
		return nil, nil
	}
	log := s.logger()
	if !cp.Matches(key) {
		log.Warn("discarding checkpoint for a different sweep", "checkpoint_level1", cp.Level1, "checkpoint_mode", cp.Mode)
		s.discard()
		return nil, nil
	}
	if s.Resume == nil {
		return cp, nil
	}
	resume := s.Resume(ctx, cp)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !resume {
		log.Info("starting fresh sweep")
		s.discard()
		return nil, nil
	}
	return cp, nil
}

func (s *Sweeper) discard() {
	if err := s.Checkpoints.Delete(); err != nil {
		s.logger().Warn("checkpoint delete failed", "error", err)
	}
}
