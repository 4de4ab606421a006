package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"library-lending/library"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	driver      string
	dbPath      string
	dsn         string
	logLevel    string
	jsonOutput  bool
	metricsFile string

	out      io.Writer
	errOut   io.Writer
	registry *prometheus.Registry
	mgr      *library.LibraryManager
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// run executes one command line and always releases the store afterwards.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCmd(out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "library",
		Short:         "Track a library's catalog, members and loans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.driver, "driver", "", "storage driver: sqlite|postgres (env LIBRARY_STORAGE_DRIVER)")
	flags.StringVar(&a.dbPath, "db", "", "sqlite database path (env LIBRARY_SQLITE_PATH)")
	flags.StringVar(&a.dsn, "dsn", "", "postgres DSN (env LIBRARY_POSTGRES_DSN)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	flags.BoolVar(&a.jsonOutput, "json", false, "print results as JSON")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newAddBookCmd(a),
		newAddMemberCmd(a),
		newBooksCmd(a),
		newMembersCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newLoanCmd(a),
		newHistoryCmd(a),
		newOverdueCmd(a),
		newCheckCmd(a),
		newStatsCmd(a),
		newDemoCmd(a),
	)
	return root, a
}

func (a *app) config() (library.Config, error) {
	cfg, err := library.ConfigFromEnv()
	if err != nil {
		return library.Config{}, err
	}
	if a.driver != "" {
		cfg.Driver = library.StorageDriver(a.driver)
	}
	if a.dbPath != "" {
		cfg.SQLitePath = a.dbPath
	}
	if a.dsn != "" {
		cfg.PostgresDSN = a.dsn
	}
	return cfg, nil
}

func (a *app) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", library.ErrInvalidInput, a.logLevel)
	}
	return slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level})), nil
}

// manager opens the store on first use.
func (a *app) manager(ctx context.Context) (*library.LibraryManager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	logger, err := a.logger()
	if err != nil {
		return nil, err
	}
	a.registry = prometheus.NewRegistry()
	metrics, err := library.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}

	mgr, err := library.NewLibraryManager(ctx, cfg,
		library.WithLogger(logger),
		library.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.mgr = mgr
	return mgr, nil
}

func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	var errs []error
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	errs = append(errs, a.mgr.Close())
	a.mgr = nil
	return errors.Join(errs...)
}

// exitCode maps failure classes onto distinct process exit codes.
func exitCode(err error) int {
	switch library.Classify(err) {
	case library.ClassValidation:
		return 2
	case library.ClassCapacity:
		return 3
	case library.ClassConflict:
		return 4
	case library.ClassTransient:
		return 75 // EX_TEMPFAIL
	default:
		return 1
	}
}
