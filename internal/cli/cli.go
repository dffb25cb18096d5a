package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/vrecan/death.v3"

	"github.com/pfrederiksen/avl-events/internal/admin"
	"github.com/pfrederiksen/avl-events/internal/config"
	"github.com/pfrederiksen/avl-events/internal/logger"
	"github.com/pfrederiksen/avl-events/internal/pipeline"
	"github.com/pfrederiksen/avl-events/internal/scheduler"
	"github.com/pfrederiksen/avl-events/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitPartial = 2 // the run finished but some venues or cleanup updates failed
)

// shutdownTimeout bounds how long serve waits for a running cycle and open requests
const shutdownTimeout = 30 * time.Second

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configPath string
	format     string
	sortOrder  string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
}

// exitError carries a non-default exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// NewRootCmd creates the root command writing to stdout and stderr
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "avl-events",
		Short: "Scrape Asheville venue calendars into an event database",
		Long: `A service that scrapes event listings from Asheville music venues,
normalizes their dates and stores new events without duplicates.
Run "serve" for the scheduled service or "scrape" for a single cycle.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().StringVar(&opts.sortOrder, "sort", "", "Sort venue results: venue, inserted or failed")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newScrapeCmd(opts),
		newCleanupCmd(opts),
		newSeedCmd(opts),
		newExportCmd(opts),
	)

	return cmd
}

// setup loads the configuration and installs the logger on stderr
func (o *rootOptions) setup() (*config.Config, *logger.Logger, OutputFormat, error) {
	format, err := ParseFormat(strings.ToLower(o.format))
	if err != nil {
		return nil, nil, "", err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, "", err
	}

	level := logger.ParseLevel(cfg.Logging.Level)
	if o.verbose {
		level = logger.LevelDebug
	}
	l := logger.New(level, o.stderr)
	logger.SetDefault(l)

	l.Debug("Configuration loaded", logger.Fields{"config": cfg.String()})

	return cfg, l, format, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and admin HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, l, _, err := opts.setup()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, l, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv := admin.New(cfg.Admin.Addr, a.scheduler, a.metrics, admin.Options{
		AllowedOrigins: cfg.Admin.AllowedOrigins,
		Token:          cfg.Admin.Token,
		Logger:         l,
	})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	stopped := make(chan struct{})
	go death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt).WaitForDeathWithFunc(func() {
		close(stopped)
	})

	l.Info("Service started", logger.Fields{
		"schedule": a.scheduler.Status().Schedule,
		"admin":    cfg.Admin.Addr,
	})

	var runErr error
	select {
	case <-stopped:
		l.Info("Shutdown signal received", nil)
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("admin server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Admin server shutdown failed", nil, err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		l.Error("Scheduler did not stop cleanly", nil, err)
	}
	l.Info("Service stopped", nil)

	return runErr
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var (
		venues []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape cycle and print the report",
		Long: `Run one full cycle: retire stale events, then scrape every enabled venue.
Exits 0 when every venue succeeded, 2 when some failed and 1 on error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context(), opts, venues, dryRun)
		},
	}

	cmd.Flags().StringSliceVar(&venues, "venue", nil, "Only scrape this venue (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use an in-memory database and skip Redis")

	return cmd
}

func runScrape(ctx context.Context, opts *rootOptions, venues []string, dryRun bool) error {
	cfg, l, format, err := opts.setup()
	if err != nil {
		return err
	}
	order, err := ParseSortOrder(opts.sortOrder)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, l, appOptions{DryRun: dryRun, Venues: venues})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.scheduler.TriggerUpdate(ctx)
	if err != nil {
		return err
	}

	if err := WriteReport(opts.stdout, report, format, order, opts.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if !report.OK() || cleanupFailed(report.Cleanup) {
		return &exitError{code: ExitPartial}
	}
	return nil
}

// cleanupFailed reports whether the cycle's retirement pass left work undone
func cleanupFailed(c *pipeline.CleanupReport) bool {
	return c != nil && (c.Err != nil || len(c.Failures) > 0)
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	var maxAgeDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Mark upcoming events older than the retention window as past",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd.Context(), opts, maxAgeDays)
		},
	}

	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Retention window in days (default from config)")

	return cmd
}

func runCleanup(ctx context.Context, opts *rootOptions, maxAgeDays int) error {
	cfg, l, format, err := opts.setup()
	if err != nil {
		return err
	}
	if maxAgeDays < 0 {
		return fmt.Errorf("--max-age-days must not be negative")
	}

	maxAge := cfg.MaxAge()
	if maxAgeDays > 0 {
		maxAge = time.Duration(maxAgeDays) * 24 * time.Hour
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	report := scheduler.RetireStale(ctx, store, time.Now(), maxAge)
	if report.Err != nil {
		return report.Err
	}
	l.Info("Cleanup finished", logger.Fields{"checked": report.Checked, "retired": report.Retired})

	if err := WriteCleanup(opts.stdout, report, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if len(report.Failures) > 0 {
		return &exitError{code: ExitPartial}
	}
	return nil
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the configured venues that are not yet stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), opts)
		},
	}
}

func runSeed(ctx context.Context, opts *rootOptions) error {
	cfg, l, format, err := opts.setup()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	created, err := storage.Seed(ctx, store, cfg.SeedVenues())
	if err != nil {
		return fmt.Errorf("seeding venues: %w", err)
	}
	l.Info("Seed finished", logger.Fields{"created": len(created)})

	return WriteSeed(opts.stdout, created, format)
}

// Run executes the CLI with args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitError
}

// Execute runs the CLI
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
