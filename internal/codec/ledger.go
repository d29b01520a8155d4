// Package codec encodes ledgers and table preferences as versioned binary blobs.
//
// Blobs use the protobuf wire format: a sequence of tagged, length-prefixed
// records decoded without generated code. Unknown fields are skipped so that
// older readers tolerate additions within a schema version.
package codec

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
)

var (
	// ErrUnsupportedVersion is returned for blobs written by a newer schema.
	ErrUnsupportedVersion = errors.New("codec: unsupported schema version")
	// ErrCorrupt is returned for blobs that cannot be parsed.
	ErrCorrupt = errors.New("codec: corrupt data")
)

const (
	fieldVersion protowire.Number = 1
	fieldEntry   protowire.Number = 2
)

const (
	entryLeft protowire.Number = iota + 1
	entryOp
	entryRight
	entryCorrect
	entryTotalTime
	entryErrors
)

// migration upgrades a snapshot decoded at version v to version v+1.
type migration func(*ledger.Snapshot) error

// migrations is keyed by the version being upgraded from.
var migrations = map[int]migration{}

// EncodeLedger serializes l. Entries are written in fact order.
func EncodeLedger(l *ledger.Ledger) []byte {
	snap := l.Snapshot()
	b := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(snap.SchemaVersion))
	for _, f := range l.Facts() {
		var e []byte
		e = appendVarintField(e, entryLeft, uint64(f.Left))
		e = appendVarintField(e, entryOp, uint64(f.Op))
		e = appendVarintField(e, entryRight, uint64(f.Right))
		if n, ok := snap.Correct[f]; ok {
			e = appendVarintField(e, entryCorrect, uint64(n))
			e = protowire.AppendTag(e, entryTotalTime, protowire.Fixed64Type)
			e = protowire.AppendFixed64(e, math.Float64bits(snap.TotalTime[f]))
		}
		if n, ok := snap.Errors[f]; ok {
			e = appendVarintField(e, entryErrors, uint64(n))
		}
		b = protowire.AppendTag(b, fieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

// DecodeLedger parses a blob written by EncodeLedger, migrating older
// schema versions to the current one.
func DecodeLedger(b []byte) (*ledger.Ledger, error) {
	snap := ledger.Snapshot{
		Correct:   map[fact.Fact]int{},
		TotalTime: map[fact.Fact]float64{},
		Errors:    map[fact.Fact]int{},
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			snap.SchemaVersion = int(v)
			b = b[n:]
		case num == fieldEntry && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			if err := decodeEntry(raw, &snap); err != nil {
				return nil, err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if err := migrate(&snap); err != nil {
		return nil, err
	}
	return ledger.FromSnapshot(snap), nil
}

func decodeEntry(b []byte, snap *ledger.Snapshot) error {
	var (
		f                    fact.Fact
		correct, errs        uint64
		total                float64
		hasCorrect, hasError bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return corrupt(protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == entryTotalTime && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return corrupt(protowire.ParseError(n))
			}
			total = math.Float64frombits(v)
			b = b[n:]
		case num >= entryLeft && num <= entryErrors && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return corrupt(protowire.ParseError(n))
			}
			if v > math.MaxInt {
				return fmt.Errorf("%w: field %d overflows int", ErrCorrupt, num)
			}
			b = b[n:]
			switch num {
			case entryLeft:
				f.Left = int(v)
			case entryOp:
				f.Op = fact.Operator(v)
			case entryRight:
				f.Right = int(v)
			case entryCorrect:
				correct, hasCorrect = v, true
			case entryErrors:
				errs, hasError = v, true
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return corrupt(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !f.Op.Valid() {
		return fmt.Errorf("%w: entry %v has unknown operator", ErrCorrupt, f)
	}
	var c, e *int
	if hasCorrect {
		n := int(correct)
		c = &n
	}
	if hasError {
		n := int(errs)
		e = &n
	}
	return addEntry(snap, f, c, &total, e)
}

// addEntry stores one decoded fact in snap. Nil counts are absent from the
// respective map; time is only kept alongside a correct count.
func addEntry(snap *ledger.Snapshot, f fact.Fact, correct *int, total *float64, errs *int) error {
	if !f.Valid() {
		return fmt.Errorf("%w: invalid fact %v", ErrCorrupt, f)
	}
	if correct != nil {
		if *correct < 0 {
			return fmt.Errorf("%w: entry %s has negative correct count %d", ErrCorrupt, f, *correct)
		}
		t := 0.0
		if total != nil {
			t = *total
		}
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: entry %s has invalid time %v", ErrCorrupt, f, t)
		}
		snap.Correct[f] = *correct
		snap.TotalTime[f] = t
	}
	if errs != nil {
		if *errs < 0 {
			return fmt.Errorf("%w: entry %s has negative error count %d", ErrCorrupt, f, *errs)
		}
		snap.Errors[f] = *errs
	}
	return nil
}

func migrate(snap *ledger.Snapshot) error {
	if snap.SchemaVersion < 1 {
		return fmt.Errorf("%w: missing schema version", ErrCorrupt)
	}
	if snap.SchemaVersion > ledger.SchemaVersion {
		return fmt.Errorf("%w: %d (newest known is %d)", ErrUnsupportedVersion, snap.SchemaVersion, ledger.SchemaVersion)
	}
	for snap.SchemaVersion < ledger.SchemaVersion {
		step, ok := migrations[snap.SchemaVersion]
		if !ok {
			return fmt.Errorf("%w: no migration from %d", ErrUnsupportedVersion, snap.SchemaVersion)
		}
		if err := step(snap); err != nil {
			return fmt.Errorf("migrate from version %d: %w", snap.SchemaVersion, err)
		}
		snap.SchemaVersion++
	}
	return nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}
