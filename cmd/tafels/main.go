// Package main provides the CLI entrypoint for tafels.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tafels/internal/config"
	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/model"
	"github.com/verte-zerg/tafels/internal/persist"
	"github.com/verte-zerg/tafels/internal/session"
	"github.com/verte-zerg/tafels/internal/store"
)

const (
	defaultBackend      = "file"
	defaultSelectCount  = session.DefaultTestSize
	defaultStatsWeak    = 10
	defaultStatsTop     = 5
	defaultStatsLast    = 20
	defaultTrendWindow  = 5
	defaultExportFormat = "yaml"
)

var (
	drillTables   []int
	drillOps      []string
	drillSize     int
	drillDuration time.Duration
	drillBackend  string
	drillStateDir string
	verbose       bool

	selectCount  int
	statsWeak    int
	statsTop     int
	statsLast    int
	exportFormat string
	importFormat string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tafels",
		Short:         "Multiplication and division drill trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogger(os.Stderr, verbose)
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
			}
		},
		RunE: runTestCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.IntSliceVar(&drillTables, "tables", nil, "tables to drill (default: last used, else 1-10)")
	flags.StringSliceVar(&drillOps, "ops", []string{fact.Mul.String(), fact.Div.String()}, "operators to drill (x, :)")
	flags.IntVar(&drillSize, "size", session.DefaultTestSize, "facts per test")
	flags.DurationVar(&drillDuration, "duration", session.DefaultTestDuration, "test time limit")
	flags.StringVar(&drillBackend, "backend", defaultBackend, "state backend (file, sqlite)")
	flags.StringVar(&drillStateDir, "state-dir", "", "state directory (default: $XDG_STATE_HOME/tafels)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newSelectCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newTablesCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func setupLogger(w io.Writer, debugMode bool) {
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// resolveConfig merges the config file under the command line flags. The
// returned flag reports whether tables were chosen explicitly.
func resolveConfig(cmd *cobra.Command) (model.Config, bool, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, false, fmt.Errorf("failed to load config: %w", err)
	}
	drill := fileCfg.Drill
	tables := drillTables
	ops := drillOps
	size := drillSize
	duration := drillDuration
	backend := drillBackend
	stateDir := drillStateDir

	applySliceConfig(cmd, "tables", &tables, drill.Tables)
	applySliceConfig(cmd, "ops", &ops, drill.Ops)
	applyConfig(cmd, "size", &size, drill.Size)
	applyConfig(cmd, "backend", &backend, drill.Backend)
	applyConfig(cmd, "state-dir", &stateDir, drill.StateDir)
	if drill.Duration != nil && !cmd.Flags().Changed("duration") {
		parsed, err := time.ParseDuration(*drill.Duration)
		if err != nil {
			return model.Config{}, false, fmt.Errorf("invalid duration %q in config: %w", *drill.Duration, err)
		}
		duration = parsed
	}
	if stateDir == "" {
		stateDir = config.DefaultStateDir()
	}

	cfg := model.Config{
		Tables:       tables,
		Operators:    ops,
		TestSize:     size,
		TestDuration: duration,
		Backend:      backend,
		StateDir:     stateDir,
	}
	if err := config.Validate(cfg); err != nil {
		return model.Config{}, false, err
	}
	explicit := cmd.Flags().Changed("tables") || drill.Tables != nil
	return cfg, explicit, nil
}

func parseOperators(names []string) ([]fact.Operator, error) {
	ops := make([]fact.Operator, 0, len(names))
	for _, name := range names {
		op, err := fact.ParseOperator(name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func openBackend(cfg model.Config) (persist.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		st, err := store.Open(filepath.Join(cfg.StateDir, store.DBFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	case "file":
		return persist.NewFileBackend(cfg.StateDir), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func closeBackend(backend persist.Backend) {
	if cerr := backend.Close(); cerr != nil {
		// Best-effort close on exit.
		slog.Warn("failed to close backend", slog.Any("error", cerr))
	}
}

func applyConfig[T any](cmd *cobra.Command, name string, target, value *T) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applySliceConfig[T any](cmd *cobra.Command, name string, target *[]T, value *[]T) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]T(nil), (*value)...)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tafels configuration
# Uncomment a value to enable it. CLI flags override config values.

[drill]
# tables = [2, 3, 4]      # Tables to drill (default: last used, else 1-10)
# ops = ["x", ":"]        # Operators to drill
# size = %d               # Facts per test
# duration = %q           # Test time limit
# backend = %q            # State backend: file or sqlite
# state-dir = %q

[stats]
# weak = %d               # Number of weakest facts to list
# top = %d                # Number of most practiced facts to list
# last = %d               # Number of recent tests to list (sqlite backend)
`,
		session.DefaultTestSize,
		session.DefaultTestDuration.String(),
		defaultBackend,
		config.DefaultStateDir(),
		defaultStatsWeak,
		defaultStatsTop,
		defaultStatsLast,
	)
}
