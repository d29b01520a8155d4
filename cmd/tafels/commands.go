package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/tafels/internal/codec"
	"github.com/verte-zerg/tafels/internal/config"
	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
	"github.com/verte-zerg/tafels/internal/model"
	"github.com/verte-zerg/tafels/internal/persist"
	"github.com/verte-zerg/tafels/internal/selector"
	"github.com/verte-zerg/tafels/internal/session"
	"github.com/verte-zerg/tafels/internal/stats"
)

// env is the state shared by commands that touch the ledger.
type env struct {
	cfg     model.Config
	ops     []fact.Operator
	tables  []int
	backend persist.Backend
	ledger  *ledger.Ledger
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, explicit, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	ops, err := parseOperators(cfg.Operators)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	l, err := backend.LoadLedger(ctx)
	if err != nil {
		closeBackend(backend)
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	tables := cfg.Tables
	if !explicit {
		if tables, err = backend.LoadTables(ctx); err != nil {
			closeBackend(backend)
			return nil, fmt.Errorf("failed to load tables: %w", err)
		}
	}
	return &env{cfg: cfg, ops: ops, tables: tables, backend: backend, ledger: l}, nil
}

func (e *env) newSession() *session.Session {
	return session.New(e.ledger, e.backend, selector.New(), session.Options{
		TestSize:     e.cfg.TestSize,
		TestDuration: e.cfg.TestDuration,
		Operators:    e.ops,
	})
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run a timed test on the selected tables",
		Args:  cobra.NoArgs,
		RunE:  runTestCmd,
	}
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	sess := e.newSession()
	if err := sess.StartTest(ctx, e.tables); err != nil {
		return fmt.Errorf("failed to start test: %w", err)
	}
	return runDrill(ctx, sess, os.Stdin, cmd.OutOrStdout())
}

func newPracticeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "practice",
		Short: "Practice every fact of the selected tables",
		Args:  cobra.NoArgs,
		RunE:  runPracticeCmd,
	}
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	sess := e.newSession()
	if err := sess.StartPractice(ctx, e.tables); err != nil {
		return fmt.Errorf("failed to start practice: %w", err)
	}
	return runDrill(ctx, sess, os.Stdin, cmd.OutOrStdout())
}

func newSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Print a weighted selection of facts",
		Args:  cobra.NoArgs,
		RunE:  runSelectCmd,
	}
	cmd.Flags().IntVar(&selectCount, "count", defaultSelectCount, "number of facts")
	return cmd
}

func runSelectCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	facts, err := selector.New().SelectForTest(e.ledger, selectCount, e.tables, e.ops...)
	if err != nil {
		return fmt.Errorf("failed to select facts: %w", err)
	}
	return writeFacts(cmd.OutOrStdout(), facts)
}

func writeFacts(w io.Writer, facts []fact.Fact) error {
	for _, f := range facts {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsWeak, "weak", defaultStatsWeak, "number of weakest facts to list")
	cmd.Flags().IntVar(&statsTop, "top", defaultStatsTop, "number of most practiced facts to list")
	cmd.Flags().IntVar(&statsLast, "last", defaultStatsLast, "number of recent tests to list (0 for all)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	weak, top, last := statsWeak, statsTop, statsLast
	applyConfig(cmd, "weak", &weak, fileCfg.Stats.Weak)
	applyConfig(cmd, "top", &top, fileCfg.Stats.Top)
	applyConfig(cmd, "last", &last, fileCfg.Stats.Last)
	statsCfg := model.StatsConfig{Weak: weak, Top: top, Last: last}
	if err := config.Validate(statsCfg); err != nil {
		return err
	}

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	var history stats.HistorySource
	if h, ok := e.backend.(stats.HistorySource); ok {
		history = h
	}
	report, err := stats.BuildReport(ctx, e.ledger, history, stats.ReportOptions{
		Tables:    e.tables,
		Operators: e.ops,
		Weak:      statsCfg.Weak,
		Top:       statsCfg.Top,
		Last:      statsCfg.Last,
	})
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	return renderReport(cmd.OutOrStdout(), report)
}

func renderReport(w io.Writer, report stats.Report) error {
	if err := stats.RenderSummary(w, report.Rows); err != nil {
		return err
	}
	if len(report.Weakest) > 0 {
		if err := stats.RenderFactTable(w, "Weakest", report.Weakest); err != nil {
			return err
		}
	}
	if len(report.Top) > 0 {
		if err := stats.RenderFactTable(w, "Most Practiced", report.Top); err != nil {
			return err
		}
	}
	if err := stats.RenderTableSummary(w, report.Tables); err != nil {
		return err
	}
	if err := stats.RenderFactTable(w, "Per-Fact", report.Rows); err != nil {
		return err
	}
	if report.HasHistory {
		return stats.RenderTestHistory(w, report.History, defaultTrendWindow)
	}
	return nil
}

// tableArgs validates tables given on the command line.
type tableArgs struct {
	Tables []int `flag:"tables" validate:"unique,dive,min=1,max=10"`
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables [N...]",
		Short: "Show or set the tables to drill",
		RunE:  runTablesCmd,
	}
}

func runTablesCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	if len(args) == 0 {
		return writeTables(cmd.OutOrStdout(), e.tables)
	}
	tables := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid table %q: %w", arg, err)
		}
		tables = append(tables, n)
	}
	if err := config.Validate(tableArgs{Tables: tables}); err != nil {
		return err
	}
	if err := e.backend.SaveTables(ctx, tables); err != nil {
		return fmt.Errorf("failed to save tables: %w", err)
	}
	return writeTables(cmd.OutOrStdout(), tables)
}

func writeTables(w io.Writer, tables []int) error {
	if len(tables) == 0 {
		_, err := fmt.Fprintln(w, "No tables selected.")
		return err
	}
	for i, t := range tables {
		sep := " "
		if i == len(tables)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%d%s", t, sep); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger to stdout",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", defaultExportFormat, "output format (yaml, binary)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	data, err := encodeLedger(e.ledger, exportFormat)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the ledger with an exported one",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().StringVar(&importFormat, "format", defaultExportFormat, "input format (yaml, binary)")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	l, err := decodeLedger(data, importFormat)
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeBackend(e.backend)

	if err := e.backend.SaveLedger(ctx, l); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d facts.\n", l.Len())
	return err
}

func encodeLedger(l *ledger.Ledger, format string) ([]byte, error) {
	switch format {
	case "yaml":
		data, err := codec.MarshalLedgerYAML(l)
		if err != nil {
			return nil, fmt.Errorf("failed to encode ledger: %w", err)
		}
		return data, nil
	case "binary":
		return codec.EncodeLedger(l), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want yaml or binary)", format)
	}
}

func decodeLedger(data []byte, format string) (*ledger.Ledger, error) {
	var (
		l   *ledger.Ledger
		err error
	)
	switch format {
	case "yaml":
		l, err = codec.UnmarshalLedgerYAML(data)
	case "binary":
		l, err = codec.DecodeLedger(data)
	default:
		return nil, fmt.Errorf("unknown format %q (want yaml or binary)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return l, nil
}
