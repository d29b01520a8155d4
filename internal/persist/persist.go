// Package persist stores ledgers and table preferences.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/tafels/internal/codec"
	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
)

// Default file names inside the state directory.
const (
	LedgerFile = "cardstate.dat"
	TablesFile = "selections.dat"
)

// Backend loads and stores the ledger and the table preference.
// Loading absent data yields an empty ledger or the default tables.
type Backend interface {
	LoadLedger(ctx context.Context) (*ledger.Ledger, error)
	SaveLedger(ctx context.Context, l *ledger.Ledger) error
	LoadTables(ctx context.Context) ([]int, error)
	SaveTables(ctx context.Context, tables []int) error
	Close() error
}

// FileBackend keeps each value in its own binary blob on disk.
type FileBackend struct {
	ledgerPath string
	tablesPath string
}

// NewFileBackend returns a backend storing blobs in dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{
		ledgerPath: filepath.Join(dir, LedgerFile),
		tablesPath: filepath.Join(dir, TablesFile),
	}
}

// LoadLedger reads the ledger blob, or returns an empty ledger if none exists.
func (b *FileBackend) LoadLedger(_ context.Context) (*ledger.Ledger, error) {
	data, err := readBlob(b.ledgerPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return ledger.New(), nil
	}
	l, err := codec.DecodeLedger(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.ledgerPath, err)
	}
	return l, nil
}

// SaveLedger overwrites the ledger blob.
func (b *FileBackend) SaveLedger(_ context.Context, l *ledger.Ledger) error {
	return writeBlob(b.ledgerPath, codec.EncodeLedger(l))
}

// LoadTables reads the tables blob, or returns 1..10 if none exists.
func (b *FileBackend) LoadTables(_ context.Context) ([]int, error) {
	data, err := readBlob(b.tablesPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return fact.DefaultTables(), nil
	}
	tables, err := codec.DecodeTables(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.tablesPath, err)
	}
	return tables, nil
}

// SaveTables overwrites the tables blob.
func (b *FileBackend) SaveTables(_ context.Context, tables []int) error {
	return writeBlob(b.tablesPath, codec.EncodeTables(tables))
}

// Close implements Backend. Files are opened per call, so there is nothing to release.
func (b *FileBackend) Close() error {
	return nil
}

// readBlob returns nil data and no error when path does not exist.
func readBlob(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// writeBlob replaces path atomically, creating its directory.
func writeBlob(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
