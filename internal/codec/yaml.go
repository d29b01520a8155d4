package codec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/tafels/internal/fact"
	"github.com/verte-zerg/tafels/internal/ledger"
)

type yamlLedger struct {
	SchemaVersion int        `yaml:"schema_version"`
	Facts         []yamlFact `yaml:"facts"`
}

type yamlFact struct {
	Fact      string   `yaml:"fact"`
	Correct   *int     `yaml:"correct,omitempty"`
	TotalTime *float64 `yaml:"total_time,omitempty"`
	Errors    *int     `yaml:"errors,omitempty"`
}

// MarshalLedgerYAML renders l as a human-readable YAML document.
func MarshalLedgerYAML(l *ledger.Ledger) ([]byte, error) {
	snap := l.Snapshot()
	doc := yamlLedger{SchemaVersion: snap.SchemaVersion, Facts: []yamlFact{}}
	for _, f := range l.Facts() {
		entry := yamlFact{Fact: f.String()}
		if n, ok := snap.Correct[f]; ok {
			total := snap.TotalTime[f]
			entry.Correct = &n
			entry.TotalTime = &total
		}
		if n, ok := snap.Errors[f]; ok {
			entry.Errors = &n
		}
		doc.Facts = append(doc.Facts, entry)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger: %w", err)
	}
	return out, nil
}

// UnmarshalLedgerYAML parses a document written by MarshalLedgerYAML.
func UnmarshalLedgerYAML(b []byte) (*ledger.Ledger, error) {
	var doc yamlLedger
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	snap := ledger.Snapshot{
		SchemaVersion: doc.SchemaVersion,
		Correct:       map[fact.Fact]int{},
		TotalTime:     map[fact.Fact]float64{},
		Errors:        map[fact.Fact]int{},
	}
	for _, entry := range doc.Facts {
		f, err := fact.Parse(entry.Fact)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if entry.Correct == nil && entry.TotalTime != nil {
			return nil, fmt.Errorf("%w: entry %s has a time without a correct count", ErrCorrupt, f)
		}
		if err := addEntry(&snap, f, entry.Correct, entry.TotalTime, entry.Errors); err != nil {
			return nil, err
		}
	}
	if err := migrate(&snap); err != nil {
		return nil, err
	}
	return ledger.FromSnapshot(snap), nil
}
