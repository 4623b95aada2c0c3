package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pricecheck/pkg/auth"
	"pricecheck/pkg/catalog"
	"pricecheck/pkg/config"
	"pricecheck/pkg/device"
	"pricecheck/pkg/scope"
	"pricecheck/pkg/version"
)

// retryMenu is the --retry value when no scope follows the flag.
const retryMenu = "menu"

type options struct {
	configPath   string
	cacheDir     string
	logLevel     string
	retry        string
	yes          bool
	refreshSites bool
	historyLimit int
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "pricecheck [ACN [ACC [ACG [ACS]]]]",
		Short: "Audit and correct the PricingSchedule of LiteON stations",
		Long: `pricecheck scans every LiteON station under a scope (ACN, ACN-ACC,
ACN-ACC-ACG or a single station), flags schedules whose factor is not 0.5 and,
after confirmation, writes the corrective schedule. Deviations are kept in a
ledger so failed updates can be retried with --retry.`,
		Example: `  pricecheck 0051
  pricecheck 0051-09
  pricecheck 0051 09 01
  pricecheck --retry
  pricecheck --retry 0051-09`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.retry == "" && len(args) == 0 {
				return scope.ErrInvalidScope
			}
			app, err := opts.open(in, out)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()
			if opts.retry != "" {
				if opts.retry != retryMenu {
					args = append([]string{opts.retry}, args...)
				}
				return app.Retry(ctx, args)
			}
			key, err := scope.Resolve(args)
			if err != nil {
				return err
			}
			return app.Scan(ctx, key, opts.refreshSites)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/pricecheck/config.toml or ./pricecheck.toml)")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "directory for the site cache, checkpoint and ledger")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error")
	pf.BoolVarP(&opts.yes, "yes", "y", false, "answer yes to every confirmation")

	f := root.Flags()
	f.StringVar(&opts.retry, "retry", "", "retry outstanding updates from the ledger; optionally name the scope")
	f.Lookup("retry").NoOptDefVal = retryMenu
	f.BoolVar(&opts.refreshSites, "refresh-sites", false, "refetch the site directory even if the cache is fresh")

	status := &cobra.Command{
		Use:   "status",
		Short: "List ledger scopes with outstanding updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.open(in, out)
			if err != nil {
				return err
			}
			defer app.Close()
			app.Status()
			return nil
		},
	}
	history := &cobra.Command{
		Use:   "history PFID",
		Short: "Show recorded update attempts for a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(in, out)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.History(cmd.Context(), args[0], opts.historyLimit)
		},
	}
	history.Flags().IntVarP(&opts.historyLimit, "limit", "n", 20, "maximum attempts to show (0 for all)")
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build identifier",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(out, version.String())
		},
	}
	root.AddCommand(status, history, versionCmd)
	root.SetIn(in)
	root.SetOut(out)
	return root
}

func (o *options) open(in io.Reader, out io.Writer) (*App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.cacheDir != "" {
		cfg.CacheDir = o.cacheDir
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return NewApp(cfg, in, out, o.yes)
}

// hint returns remedial advice for a terminal error. Every error gets one.
func hint(err error) string {
	var ce *auth.CredentialError
	switch {
	case errors.As(err, &ce):
		if ce.Hint != "" {
			return ce.Hint
		}
		return "check the credential command or PRICECHECK_TOKEN"
	case errors.Is(err, scope.ErrInvalidScope):
		return "usage: pricecheck ACN [ACC [ACG [ACS]]]  or  pricecheck --retry"
	case errors.Is(err, device.ErrUnauthorized):
		return "the credential was rejected; refresh it and run again"
	case errors.Is(err, catalog.ErrDirectoryFetch):
		return "the site directory could not be fetched; check connectivity or run again later"
	}
	return "run the same command again; an interrupted ACN sweep resumes from its last completed ACC"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		fmt.Fprintln(os.Stderr, "hint:", hint(err))
		stop()
		os.Exit(1)
	}
}
