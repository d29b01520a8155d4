package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tafels/internal/codec"
	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
	"github.com/verte-zerg/tafels/internal/persist"
	"github.com/verte-zerg/tafels/internal/selector"
	"github.com/verte-zerg/tafels/internal/session"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		debugMode bool
		wantDebug bool
	}{
		{name: "debug mode enabled", debugMode: true, wantDebug: true},
		{name: "debug mode disabled", debugMode: false, wantDebug: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLogger(io.Discard, tt.debugMode)
			logger := slog.Default()
			assert.Equal(t, tt.wantDebug, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestTablesCommandPersistsSelection(t *testing.T) {
	isolateConfig(t)
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			stateDir := t.TempDir()
			out, err := execute(t, "tables", "--backend", backend, "--state-dir", stateDir)
			require.NoError(t, err)
			assert.Equal(t, "1 2 3 4 5 6 7 8 9 10\n", out)

			out, err = execute(t, "tables", "3", "7", "--backend", backend, "--state-dir", stateDir)
			require.NoError(t, err)
			assert.Equal(t, "3 7\n", out)

			out, err = execute(t, "tables", "--backend", backend, "--state-dir", stateDir)
			require.NoError(t, err)
			assert.Equal(t, "3 7\n", out)
		})
	}
}

func TestTablesCommandRejectsOutOfRange(t *testing.T) {
	isolateConfig(t)
	_, err := execute(t, "tables", "12", "--state-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tables[0]")
}

func TestTablesCommandRejectsDuplicatesAndZero(t *testing.T) {
	isolateConfig(t)
	stateDir := t.TempDir()
	_, err := execute(t, "tables", "2", "2", "--state-dir", stateDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables")

	_, err = execute(t, "tables", "0", "--state-dir", stateDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tables[0]")

	out, err := execute(t, "tables", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Equal(t, "1 2 3 4 5 6 7 8 9 10\n", out, "rejected selections are not saved")
}

func TestSelectCommand(t *testing.T) {
	isolateConfig(t)
	out, err := execute(t, "select", "--count", "4", "--tables", "6", "--ops", "x", "--state-dir", t.TempDir())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	seen := map[string]bool{}
	for _, line := range lines {
		f, err := fact.Parse(line)
		require.NoError(t, err)
		assert.Equal(t, 6, f.Right)
		assert.Equal(t, fact.Mul, f.Op)
		seen[line] = true
	}
	assert.Len(t, seen, 4)

	_, err = execute(t, "select", "--count", "11", "--tables", "6", "--ops", "x", "--state-dir", t.TempDir())
	assert.ErrorIs(t, err, selector.ErrInsufficientCandidates)
}

func TestConfigFileAppliesUnderFlags(t *testing.T) {
	cfgHome := isolateConfig(t)
	path := filepath.Join(cfgHome, "tafels", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[drill]\ntables = [4]\nops = [\":\"]\n"), 0o644))

	out, err := execute(t, "select", "--count", "3", "--state-dir", t.TempDir())
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		f, err := fact.Parse(line)
		require.NoError(t, err)
		assert.Equal(t, fact.New(f.Left, fact.Div, 4), f)
	}

	out, err = execute(t, "select", "--count", "2", "--tables", "9", "--ops", "x", "--state-dir", t.TempDir())
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.True(t, strings.HasSuffix(line, "x 9"), line)
	}
}

func TestConfigFileInvalidDuration(t *testing.T) {
	cfgHome := isolateConfig(t)
	path := filepath.Join(cfgHome, "tafels", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[drill]\nduration = \"soon\"\n"), 0o644))

	_, err := execute(t, "tables", "--state-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestInvalidFlagsAreReported(t *testing.T) {
	isolateConfig(t)
	_, err := execute(t, "select", "--size", "0", "--backend", "redis", "--state-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--size")
	assert.Contains(t, err.Error(), "--backend")
}

func TestExportImportRoundTrip(t *testing.T) {
	isolateConfig(t)
	src := t.TempDir()
	l := ledger.New()
	l.RecordCorrect(fact.New(3, fact.Mul, 4), 1.5)
	l.RecordError(fact.New(21, fact.Div, 7))
	require.NoError(t, persist.NewFileBackend(src).SaveLedger(context.Background(), l))

	for _, format := range []string{"yaml", "binary"} {
		t.Run(format, func(t *testing.T) {
			out, err := execute(t, "export", "--format", format, "--state-dir", src)
			require.NoError(t, err)

			file := filepath.Join(t.TempDir(), "ledger."+format)
			require.NoError(t, os.WriteFile(file, []byte(out), 0o644))
			dst := t.TempDir()
			msg, err := execute(t, "import", file, "--format", format, "--backend", "sqlite", "--state-dir", dst)
			require.NoError(t, err)
			assert.Equal(t, "Imported 2 facts.\n", msg)

			again, err := execute(t, "export", "--format", format, "--backend", "sqlite", "--state-dir", dst)
			require.NoError(t, err)
			assert.Equal(t, out, again)
		})
	}

	_, err := execute(t, "export", "--format", "xml", "--state-dir", src)
	assert.ErrorContains(t, err, "unknown format")
}

func TestImportRejectsNegativeCounts(t *testing.T) {
	isolateConfig(t)
	stateDir := t.TempDir()
	file := filepath.Join(t.TempDir(), "ledger.yaml")
	doc := "schema_version: 1\nfacts:\n  - fact: 3 x 4\n    correct: -2\n    total_time: 1.5\n"
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o644))

	_, err := execute(t, "import", file, "--state-dir", stateDir)
	assert.ErrorIs(t, err, codec.ErrCorrupt)

	out, err := execute(t, "stats", "--tables", "3", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Facts seen: 0/20")
}

func TestStatsCommandListsMostPracticed(t *testing.T) {
	isolateConfig(t)
	stateDir := t.TempDir()
	l := ledger.New()
	l.RecordCorrect(fact.New(3, fact.Mul, 2), 1)
	l.RecordCorrect(fact.New(3, fact.Mul, 2), 1)
	l.RecordError(fact.New(5, fact.Mul, 2))
	require.NoError(t, persist.NewFileBackend(stateDir).SaveLedger(context.Background(), l))

	out, err := execute(t, "stats", "--tables", "2", "--ops", "x", "--state-dir", stateDir)
	require.NoError(t, err)
	idx := strings.Index(out, "Most Practiced")
	require.GreaterOrEqual(t, idx, 0, out)
	assert.True(t, strings.HasPrefix(strings.Split(out[idx:], "\n")[2], "3 x 2"), out)

	out, err = execute(t, "stats", "--tables", "2", "--top", "0", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.NotContains(t, out, "Most Practiced")
}

func TestStatsCommand(t *testing.T) {
	isolateConfig(t)
	stateDir := t.TempDir()
	out, err := execute(t, "stats", "--tables", "2", "--backend", "sqlite", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary")
	assert.Contains(t, out, "Facts seen: 0/20")
	assert.Contains(t, out, "Per-Table")
	assert.Contains(t, out, "No tests found.")

	out, err = execute(t, "stats", "--tables", "2", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.NotContains(t, out, "No tests found.")
}

func newDrillSession(t *testing.T, opts session.Options) *session.Session {
	t.Helper()
	color.NoColor = true
	opts.Operators = []fact.Operator{fact.Mul}
	backend := persist.NewFileBackend(t.TempDir())
	return session.New(ledger.New(), backend, selector.NewWithSource(rand.NewSource(3)), opts)
}

func TestRunDrillTestCorrect(t *testing.T) {
	ctx := context.Background()
	sess := newDrillSession(t, session.Options{TestSize: 1})
	require.NoError(t, sess.StartTest(ctx, []int{8}))
	f, ok := sess.Current()
	require.True(t, ok)

	var out bytes.Buffer
	in := strings.NewReader(fmt.Sprintf("eight\n%d\n", f.Answer()))
	require.NoError(t, runDrill(ctx, sess, in, &out))
	text := out.String()
	assert.Contains(t, text, "Please enter a whole number.")
	assert.Contains(t, text, "Correct (")
	assert.Contains(t, text, "1 of 1 correct (100%)")
	assert.Contains(t, text, "Grade: trophy")
	assert.False(t, sess.Running())
	assert.Equal(t, 1, sess.Ledger().CorrectCount(f))
}

func TestRunDrillTestWrongShowsExpected(t *testing.T) {
	ctx := context.Background()
	sess := newDrillSession(t, session.Options{TestSize: 1})
	require.NoError(t, sess.StartTest(ctx, []int{8}))
	f, _ := sess.Current()

	var out bytes.Buffer
	in := strings.NewReader(fmt.Sprintf("%d\n", f.Answer()+1))
	require.NoError(t, runDrill(ctx, sess, in, &out))
	text := out.String()
	assert.Contains(t, text, fmt.Sprintf("Wrong, %s = %d", f, f.Answer()))
	assert.Contains(t, text, fmt.Sprintf("(expected %d)", f.Answer()))
	assert.Contains(t, text, "Grade: poor")
}

func TestRunDrillPracticeRepeatsAndStops(t *testing.T) {
	ctx := context.Background()
	sess := newDrillSession(t, session.Options{})
	require.NoError(t, sess.StartPractice(ctx, []int{3}))
	f, _ := sess.Current()

	var out bytes.Buffer
	in := strings.NewReader(fmt.Sprintf("%d\nq\n", f.Answer()+1))
	require.NoError(t, runDrill(ctx, sess, in, &out))
	text := out.String()
	assert.Contains(t, text, "Wrong, try again.")
	assert.Equal(t, 2, strings.Count(text, f.String()+" = "))
	assert.Contains(t, text, "Stopped.")
	assert.Equal(t, session.Setup, sess.State())
}

func TestRunDrillStopsOnEOF(t *testing.T) {
	ctx := context.Background()
	sess := newDrillSession(t, session.Options{})
	require.NoError(t, sess.StartPractice(ctx, []int{3}))

	var out bytes.Buffer
	require.NoError(t, runDrill(ctx, sess, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Stopped.")
	assert.False(t, sess.Running())
}

func TestRunDrillTimesOut(t *testing.T) {
	ctx := context.Background()
	sess := newDrillSession(t, session.Options{TestSize: 3, TestDuration: 20 * time.Millisecond})
	require.NoError(t, sess.StartTest(ctx, []int{5}))

	in, w := io.Pipe()
	defer func() {
		_ = w.Close()
	}()
	var out bytes.Buffer
	require.NoError(t, runDrill(ctx, sess, in, &out))
	text := out.String()
	assert.Contains(t, text, "0 of 3 correct (0%), time is up")
	assert.Contains(t, text, "Grade: poor")
	assert.False(t, sess.Running())
}
