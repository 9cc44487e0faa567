// Package treatments holds the static table of organic, chemical and
// preventive treatments for common crop pests and diseases.
package treatments

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed treatments.yaml
var embeddedTable []byte

// Treatment is the per-problem treatment triple.
type Treatment struct {
	Organic    []string `json:"organic" yaml:"organic"`
	Chemical   []string `json:"chemical" yaml:"chemical"`
	Preventive []string `json:"preventive" yaml:"preventive"`
}

// Entry is one known problem.
type Entry struct {
	Key       string    `json:"key" yaml:"key"`
	Name      string    `json:"name" yaml:"name"`
	Type      string    `json:"type" yaml:"type"`
	Treatment Treatment `json:"treatment" yaml:"treatment"`
}

// Table is an ordered, read-only treatment table.
type Table struct {
	entries []Entry
}

// Parse decodes a YAML list of entries.
func Parse(data []byte) (*Table, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse treatments: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" || strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("parse treatments: entry %d needs key and name", i)
		}
		entries[i].Key = strings.ToLower(e.Key)
	}
	return &Table{entries: entries}, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(embeddedTable)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// Lookup returns the first entry whose key or name occurs in problem,
// compared case-insensitively.
func (t *Table) Lookup(problem string) (Entry, bool) {
	if strings.TrimSpace(problem) == "" {
		return Entry{}, false
	}
	lower := strings.ToLower(problem)
	for _, e := range t.entries {
		if strings.Contains(lower, e.Key) || strings.Contains(lower, strings.ToLower(e.Name)) {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Find returns the treatment for problem.
func (t *Table) Find(problem string) (Treatment, bool) {
	e, ok := t.Lookup(problem)
	return e.Treatment, ok
}

// Has reports whether problem has a treatment with organic options.
func (t *Table) Has(problem string) bool {
	tr, ok := t.Find(problem)
	return ok && len(tr.Organic) > 0
}

// Entries returns a copy of the table in match order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.clone())
	}
	return out
}

func FindTreatment(problem string) (Treatment, bool) { return Default().Find(problem) }

func ProblemInfo(problem string) (Entry, bool) { return Default().Lookup(problem) }

func HasTreatment(problem string) bool { return Default().Has(problem) }

func (e Entry) clone() Entry {
	e.Treatment = Treatment{
		Organic:    append([]string(nil), e.Treatment.Organic...),
		Chemical:   append([]string(nil), e.Treatment.Chemical...),
		Preventive: append([]string(nil), e.Treatment.Preventive...),
	}
	return e
}
