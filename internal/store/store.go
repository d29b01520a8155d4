// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
	"github.com/verte-zerg/tafels/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// DBFile is the default database file name inside the state directory.
const DBFile = "tafels.db"

const (
	metaLedgerVersion  = "ledger_schema_version"
	metaSelectionsSave = "selections_saved"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fact_stats (
			left_operand INTEGER NOT NULL,
			op INTEGER NOT NULL,
			right_operand INTEGER NOT NULL,
			correct INTEGER,
			total_time REAL,
			errors INTEGER,
			PRIMARY KEY (left_operand, op, right_operand)
		);`,
		`CREATE TABLE IF NOT EXISTS selections (
			position INTEGER PRIMARY KEY,
			table_number INTEGER NOT NULL
		);`,
	},
	{
		`CREATE TABLE IF NOT EXISTS test_results (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			tables TEXT NOT NULL,
			size INTEGER NOT NULL,
			answered INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			timed_out INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS test_answers (
			result_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			left_operand INTEGER NOT NULL,
			op INTEGER NOT NULL,
			right_operand INTEGER NOT NULL,
			given INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			PRIMARY KEY (result_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_test_results_ended_at ON test_results(ended_at);`,
	},
}

// Store wraps SQLite access for ledger and test data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the number of applied migrations.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) migrate() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported %d", current, len(migrations))
	}
	for v := current; v < len(migrations); v++ {
		for _, stmt := range migrations[v] {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
		}
		if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			return err
		}
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if rerr := tx.Rollback(); rerr != nil {
		// Best-effort rollback.
		_ = rerr
	}
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}

// LoadLedger reads all fact stats. An empty database yields an empty ledger.
func (s *Store) LoadLedger(ctx context.Context) (*ledger.Ledger, error) {
	snap := ledger.Snapshot{
		SchemaVersion: ledger.SchemaVersion,
		Correct:       map[fact.Fact]int{},
		TotalTime:     map[fact.Fact]float64{},
		Errors:        map[fact.Fact]int{},
	}
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = ?`, metaLedgerVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if version.Valid {
		snap.SchemaVersion = int(version.Int64)
	}
	if snap.SchemaVersion > ledger.SchemaVersion {
		return nil, fmt.Errorf("ledger schema version %d is newer than supported %d", snap.SchemaVersion, ledger.SchemaVersion)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT left_operand, op, right_operand, correct, total_time, errors FROM fact_stats`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	for rows.Next() {
		var f fact.Fact
		var correct, errs sql.NullInt64
		var total sql.NullFloat64
		if err := rows.Scan(&f.Left, &f.Op, &f.Right, &correct, &total, &errs); err != nil {
			return nil, err
		}
		if correct.Valid {
			snap.Correct[f] = int(correct.Int64)
			snap.TotalTime[f] = total.Float64
		}
		if errs.Valid {
			snap.Errors[f] = int(errs.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ledger.FromSnapshot(snap), nil
}

// SaveLedger replaces all stored fact stats with the state of l.
func (s *Store) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveLedgerTx(ctx, tx, l); err != nil {
		rollback(tx)
		return err
	}
	return tx.Commit()
}

func saveLedgerTx(ctx context.Context, tx *sql.Tx, l *ledger.Ledger) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM fact_stats`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fact_stats (left_operand, op, right_operand, correct, total_time, errors)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	snap := l.Snapshot()
	for _, f := range l.Facts() {
		var correct, errs sql.NullInt64
		var total sql.NullFloat64
		if n, ok := snap.Correct[f]; ok {
			correct = sql.NullInt64{Int64: int64(n), Valid: true}
			total = sql.NullFloat64{Float64: snap.TotalTime[f], Valid: true}
		}
		if n, ok := snap.Errors[f]; ok {
			errs = sql.NullInt64{Int64: int64(n), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, f.Left, int(f.Op), f.Right, correct, total, errs); err != nil {
			return err
		}
	}
	return setMeta(ctx, tx, metaLedgerVersion, int64(snap.SchemaVersion))
}

func setMeta(ctx context.Context, tx *sql.Tx, key string, value int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO schema_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// LoadTables returns the stored table preference, or 1..10 if none was saved.
func (s *Store) LoadTables(ctx context.Context) ([]int, error) {
	var saved int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = ?`, metaSelectionsSave).Scan(&saved)
	if err == sql.ErrNoRows {
		return fact.DefaultTables(), nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT table_number FROM selections ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	tables := []int{}
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

// SaveTables replaces the stored table preference.
func (s *Store) SaveTables(ctx context.Context, tables []int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveTablesTx(ctx, tx, tables); err != nil {
		rollback(tx)
		return err
	}
	return tx.Commit()
}

func saveTablesTx(ctx context.Context, tx *sql.Tx, tables []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM selections`); err != nil {
		return err
	}
	for i, t := range tables {
		if _, err := tx.ExecContext(ctx, `INSERT INTO selections (position, table_number) VALUES (?, ?)`, i, t); err != nil {
			return err
		}
	}
	return setMeta(ctx, tx, metaSelectionsSave, 1)
}

// InsertTestResult stores a finished test and its answers.
func (s *Store) InsertTestResult(ctx context.Context, result model.TestResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	id, err := insertTestResultTx(ctx, tx, result)
	if err != nil {
		rollback(tx)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func insertTestResultTx(ctx context.Context, tx *sql.Tx, result model.TestResult) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO test_results (started_at, ended_at, tables, size, answered, correct, timed_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.StartedAt.Format(time.RFC3339Nano),
		result.EndedAt.Format(time.RFC3339Nano),
		joinTables(result.Tables),
		result.Size,
		result.Answered,
		result.Correct,
		boolToInt(result.TimedOut),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, a := range result.Answers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO test_answers (result_id, position, left_operand, op, right_operand, given, correct)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, a.Fact.Left, int(a.Fact.Op), a.Fact.Right, a.Given, boolToInt(a.Correct)); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// ListTestResults returns stored tests in chronological order, limited to
// the most recent last results when last > 0. Answers are included.
func (s *Store) ListTestResults(ctx context.Context, last int) ([]model.TestResult, error) {
	query := `SELECT id, started_at, ended_at, tables, size, answered, correct, timed_out
		FROM test_results ORDER BY ended_at DESC, id DESC`
	args := []any{}
	if last > 0 {
		query += ` LIMIT ?`
		args = append(args, last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var results []model.TestResult
	for rows.Next() {
		var r model.TestResult
		var startedAt, endedAt, tables string
		if err := rows.Scan(&r.ID, &startedAt, &endedAt, &tables, &r.Size, &r.Answered, &r.Correct, &r.TimedOut); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if r.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		if r.Tables, err = splitTables(tables); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	closeRows(rows)

	// Reverse into chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	for i := range results {
		answers, err := s.listAnswers(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Answers = answers
	}
	return results, nil
}

func (s *Store) listAnswers(ctx context.Context, resultID int64) ([]model.TestAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT left_operand, op, right_operand, given, correct
		 FROM test_answers WHERE result_id = ? ORDER BY position ASC`, resultID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var answers []model.TestAnswer
	for rows.Next() {
		var a model.TestAnswer
		if err := rows.Scan(&a.Fact.Left, &a.Fact.Op, &a.Fact.Right, &a.Given, &a.Correct); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return answers, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinTables(tables []int) string {
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = strconv.Itoa(t)
	}
	return strings.Join(parts, ",")
}

func splitTables(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	tables := make([]int, 0, len(parts))
	for _, p := range parts {
		t, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid stored tables %q: %w", s, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
