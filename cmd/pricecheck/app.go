package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pricecheck/pkg/auth"
	"pricecheck/pkg/catalog"
	"pricecheck/pkg/checkpoint"
	"pricecheck/pkg/config"
	"pricecheck/pkg/device"
	"pricecheck/pkg/journal"
	"pricecheck/pkg/ledger"
	"pricecheck/pkg/metrics"
	"pricecheck/pkg/model"
	"pricecheck/pkg/progress"
	"pricecheck/pkg/remediate"
	"pricecheck/pkg/retry"
	"pricecheck/pkg/scan"
	"pricecheck/pkg/scope"
	"pricecheck/pkg/sweep"
)

// App wires the components for one invocation. Constructing it makes no
// network calls; the credential is acquired on first use.
type App struct {
	cfg    config.Config
	log    *slog.Logger
	out    io.Writer
	prompt *Prompter
	runID  string

	cred    *auth.Credential
	renewer *auth.Renewer
	client  *device.Client
	ledger  *ledger.Ledger
	journal journal.Journal
	events  progress.Sink
	ws      *progress.WSSink
	metrics *metrics.Recorder

	stopRenew func()
}

func NewApp(cfg config.Config, in io.Reader, out io.Writer, assumeYes bool) (*App, error) {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	a := &App{
		cfg:     cfg,
		log:     log,
		out:     out,
		prompt:  NewPrompter(in, out, assumeYes),
		runID:   uuid.NewString(),
		cred:    &auth.Credential{},
		metrics: metrics.New(),
	}

	var provider auth.Provider = auth.CommandProvider{Command: cfg.CredentialCommand, Timeout: cfg.CredentialTimeout}
	if cfg.Token != "" {
		provider = auth.StaticProvider(cfg.Token)
	}
	a.renewer = auth.NewRenewer(provider, a.cred, cfg.RenewInterval, log)

	a.client = device.NewClient(cfg.BaseURL, a.cred, cfg.RequestsPerSecond, cfg.HTTPTimeout)
	a.client.Log = log
	a.client.OnUnauthorized = a.renewer.Renew

	backend, err := ledger.OpenBackend(cfg.LedgerBackend, cfg.Path(config.LedgerFile), cfg.ConsulAddr, cfg.ConsulKey, log)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger.New(backend, log)

	driver, dsn := cfg.JournalTarget()
	a.journal, err = journal.Open(driver, dsn, log)
	if err != nil {
		log.Warn("attempt journal unavailable", "driver", driver, "error", err)
		a.journal = journal.Nop{}
	}

	sinks := progress.Multi{progress.LogSink{Log: log}}
	if cfg.ProgressURL != "" {
		ws, err := progress.NewWSSink(cfg.ProgressURL, cfg.Token, log)
		if err != nil {
			log.Warn("progress stream disabled", "error", err)
		} else {
			a.ws = ws
			sinks = append(sinks, ws)
		}
	}
	a.events = sinks
	return a, nil
}

// Close stops background work and flushes metrics and progress.
func (a *App) Close() {
	if a.stopRenew != nil {
		a.stopRenew()
	}
	if a.ws != nil {
		a.ws.Close()
	}
	if err := a.journal.Close(); err != nil {
		a.log.Warn("journal close failed", "error", err)
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.Warn("metrics textfile write failed", "path", a.cfg.MetricsFile, "error", err)
	}
}

// authenticate acquires the first token and starts periodic renewal.
func (a *App) authenticate(ctx context.Context) error {
	if a.stopRenew != nil {
		return nil
	}
	a.log.Info("obtaining credential")
	if err := a.renewer.Renew(ctx); err != nil {
		var ce *auth.CredentialError
		if errors.As(err, &ce) {
			return err
		}
		return &auth.CredentialError{Op: "acquire", Err: err}
	}
	a.stopRenew = a.renewer.Start(ctx)
	if a.ws != nil {
		a.ws.Start(ctx)
	}
	return nil
}

func (a *App) driver() *remediate.Driver {
	return &remediate.Driver{
		Writer:  a.client,
		Ledger:  a.ledger,
		Journal: a.journal,
		Events:  a.events,
		Metrics: a.metrics,
		Log:     a.log,
		RunID:   a.runID,
	}
}

func (a *App) interrupted() error {
	fmt.Fprintln(a.out, "\nInterrupted. Progress has been saved; run the same command again to resume.")
	return nil
}

// Scan sweeps key, records deviations in the ledger and, after confirmation,
// writes the corrective schedule.
func (a *App) Scan(ctx context.Context, key model.ScopeKey, refreshSites bool) error {
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Checking pricing schedules for %s (%s)\n", scope.Describe(key), key.Mode())

	engine := &scan.Engine{
		Device:         a.client,
		SupportedModel: a.cfg.SupportedModel,
		Log:            a.log,
		Events:         a.events,
		Metrics:        a.metrics,
		RunID:          a.runID,
	}
	sw := &sweep.Sweeper{
		Scanner:        engine,
		Catalog:        catalog.New(a.cfg.Path(config.SitesCacheFile), a.cfg.CatalogMaxAge, a.client, a.log),
		Checkpoints:    checkpoint.New(a.cfg.Path(config.ProgressFile), a.log),
		Resume:         a.offerResume,
		RefreshCatalog: refreshSites,
		RunID:          a.runID,
		Log:            a.log,
		Events:         a.events,
		Metrics:        a.metrics,
	}
	res, err := sw.Run(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return a.interrupted()
		}
		return err
	}
	printScan(a.out, res)

	deviating := remediate.Deviating(res.Results)
	if len(deviating) == 0 {
		fmt.Fprintln(a.out, "\nNo stations need updating.")
		return nil
	}
	schedule := remediate.CorrectiveSchedule(res.Results)
	entry := remediate.BuildEntry(key, deviating, schedule, time.Now().UTC())
	if err := a.ledger.Upsert(key, entry); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\n%d deviating station(s) recorded under %s.\n", len(deviating), key)
	fmt.Fprintf(a.out, "Corrective schedule: %s\n", formatSchedule(schedule))
	for _, r := range deviating {
		fmt.Fprintf(a.out, "  - %s\n", r.PFID)
	}
	if !a.prompt.Confirm(ctx, fmt.Sprintf("Update %d station(s)?", len(deviating))) {
		if ctx.Err() != nil {
			return a.interrupted()
		}
		fmt.Fprintln(a.out, "Skipped. Run with --retry later to apply the updates.")
		return nil
	}
	out, err := a.driver().Remediate(ctx, key, entry.Stations, schedule)
	if err != nil {
		if ctx.Err() != nil {
			return a.interrupted()
		}
		return err
	}
	printOutcome(a.out, out)
	a.finish(key, out)
	return nil
}

func (a *App) finish(key model.ScopeKey, out remediate.Outcome) {
	removed, err := a.ledger.RemoveIfComplete(key)
	if err != nil {
		a.log.Warn("ledger cleanup failed", "scope", key.String(), "error", err)
		return
	}
	switch {
	case removed:
		fmt.Fprintf(a.out, "All stations in %s updated; scope removed from the ledger.\n", key)
	case out.Rejected > 0:
		fmt.Fprintf(a.out, "Some updates failed. Run `pricecheck --retry %s` to try again.\n", key)
	}
}

func (a *App) offerResume(ctx context.Context, cp *model.SweepCheckpoint) bool {
	fmt.Fprintf(a.out, "Found saved progress for ACN %s: %d/%d ACCs completed, started %s.\n",
		cp.Level1, len(cp.CompletedChildren), cp.TotalChildren, cp.StartedAt.Local().Format(time.DateTime))
	return a.prompt.Confirm(ctx, "Resume from saved progress?")
}

// Retry re-drives outstanding ledger scopes. With tokens the named scope is
// retried; otherwise a menu is offered.
func (a *App) Retry(ctx context.Context, tokens []string) error {
	orch := &retry.Orchestrator{Ledger: a.ledger, Driver: a.driver(), Log: a.log}
	if len(tokens) > 0 {
		key, err := scope.Resolve(tokens)
		if err != nil {
			return err
		}
		return a.retryScope(ctx, orch, key)
	}

	pending := orch.ListOutstanding()
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "No scopes with outstanding updates.")
		return nil
	}
	printOutstanding(a.out, pending)
	ans, ok := a.prompt.Ask(ctx, "\nSelect a scope number, 'all', or 'q' to quit: ")
	if !ok {
		return nil
	}
	switch strings.ToLower(ans) {
	case "q", "quit", "":
		return nil
	case "all":
		for _, s := range pending {
			if err := a.retryScope(ctx, orch, s.ScopeKey); err != nil {
				return err
			}
		}
		return nil
	}
	n, err := strconv.Atoi(ans)
	if err != nil || n < 1 || n > len(pending) {
		fmt.Fprintf(a.out, "Invalid selection %q.\n", ans)
		return nil
	}
	return a.retryScope(ctx, orch, pending[n-1].ScopeKey)
}

func (a *App) retryScope(ctx context.Context, orch *retry.Orchestrator, key model.ScopeKey) error {
	entry, recs, err := orch.Pending(key)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		a.finish(key, remediate.Outcome{})
		return nil
	}
	fmt.Fprintf(a.out, "\n%s: %d station(s) to retry, schedule %s\n", key, len(recs), formatSchedule(entry.CorrectSchedule))
	for _, r := range recs {
		line := fmt.Sprintf("  - %s [%s]", r.PFID, r.Status)
		if r.Detail != "" {
			line += " " + r.Detail
		}
		fmt.Fprintln(a.out, line)
	}
	if !a.prompt.Confirm(ctx, "Retry these updates?") {
		return nil
	}
	if err := a.authenticate(ctx); err != nil {
		return err
	}
	res, err := orch.RetryScope(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return a.interrupted()
		}
		return err
	}
	printOutcome(a.out, res.Outcome)
	if res.Removed {
		fmt.Fprintf(a.out, "All stations in %s updated; scope removed from the ledger.\n", key)
	}
	return nil
}

// Status prints outstanding ledger scopes without contacting the device API.
func (a *App) Status() {
	pending := (&retry.Orchestrator{Ledger: a.ledger}).ListOutstanding()
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "No scopes with outstanding updates.")
		return
	}
	printOutstanding(a.out, pending)
}

func (a *App) History(ctx context.Context, pfid string, limit int) error {
	attempts, err := a.journal.List(ctx, pfid, limit)
	if err != nil {
		return err
	}
	printHistory(a.out, pfid, attempts)
	return nil
}
