package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/finder/internal/catalog"
	"github.com/jward/finder/internal/config"
	"github.com/jward/finder/internal/metrics"
	"github.com/jward/finder/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.finish()
	if err != nil {
		if !a.errorHandled {
			errorColor.Fprint(stderr, "Error: ")
			fmt.Fprintln(stderr, err)
		}
		return exitCode(err)
	}
	return exitOK
}

// app holds flag values and the state shared by every command.
type app struct {
	stdout, stderr io.Writer

	flagDB      string
	flagConfig  string
	flagFormat  string
	flagVerbose bool
	flagMetrics bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	observer *metrics.Observer

	// errorHandled is set by outputError so run doesn't double-print.
	errorHandled bool
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "finder",
		Short: "Locate catalog nodes with locator queries",
		Long: "Finder resolves textual locators such as kind:service,tag:prod against a SQLite catalog " +
			"of packages, modules and services, and walks the dependency graph between them.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagDB, "db", "", "database path (default from config: finder.db)")
	pf.StringVar(&a.flagConfig, "config", "", "config file (default: ./finder.yaml if present)")
	pf.StringVar(&a.flagFormat, "format", config.FormatText, "output format: json|text")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "debug logging to stderr")
	pf.BoolVar(&a.flagMetrics, "metrics", false, "write query metrics to stderr after the command")

	root.AddCommand(a.indexCmd())
	root.AddCommand(a.loadCmd())
	root.AddCommand(a.queryCmd())
	root.AddCommand(a.graphCmd())
	root.SetHelpCommand(a.helpCmd())
	return root
}

// setup loads configuration, applies flag overrides and builds the logger
// and metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = a.flagDB
	}
	if flags.Changed("format") {
		cfg.Format = a.flagFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg, a.flagVerbose)

	a.registry = prometheus.NewRegistry()
	a.observer, err = metrics.NewObserver(a.registry)
	if err != nil {
		return err
	}
	return nil
}

// finish dumps metrics when requested and flushes the logger.
func (a *app) finish() {
	if a.flagMetrics && a.registry != nil {
		if err := metrics.WriteText(a.stderr, a.registry); err != nil {
			a.logger.Warn("writing metrics", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newLogger builds a development logger for --verbose or debug level and a
// production logger otherwise. It never returns nil.
func newLogger(cfg *config.Config, verbose bool) *zap.Logger {
	lvl, err := cfg.Level()
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	var logger *zap.Logger
	if verbose || lvl == zapcore.DebugLevel {
		logger, err = zap.NewDevelopment()
	} else {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		logger, err = zc.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openStore opens the configured database. Unless create is set the file
// must already exist.
func (a *app) openStore(create bool) (*store.Store, error) {
	path := a.cfg.DB
	if create {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("database not found: %s (run 'finder index' or 'finder load' first)", path)
	}

	s, err := store.NewStore(path, store.WithCacheSize(a.cfg.CacheSize))
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (a *app) newCatalog(s *store.Store) (*catalog.Catalog, error) {
	return catalog.New(s,
		catalog.WithLogger(a.logger),
		catalog.WithObserver(a.observer),
		catalog.WithLookupLimit(a.cfg.LookupLimit),
		catalog.WithGraphLookupLimit(a.cfg.GraphLookupLimit),
	)
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
