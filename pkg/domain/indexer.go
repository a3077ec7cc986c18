package domain

import (
	"errors"
	"sort"

	"github.com/sukryu/depdex/pkg/npmrange"
	"github.com/sukryu/depdex/pkg/rangekey"
)

// indexRecord is one dependency declaration ready to be written under the
// versioned and, when applicable, latest prefixes.
type indexRecord struct {
	Kind      Kind
	Dep       string
	Intervals rangekey.IntervalSet
}

// latestRecord is the value stored under !index-latest!.
type latestRecord struct {
	Version   string               `json:"version"`
	Intervals rangekey.IntervalSet `json:"intervals"`
}

// recordDependencies builds one record per parseable declaration in deps,
// sorted by dependency name. Malformed ranges are skipped and counted;
// encoding failures abort.
func (ix *Index) recordDependencies(id string, deps map[string]string, kind Kind) ([]indexRecord, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]indexRecord, 0, len(names))
	for _, name := range names {
		raw := deps[name]
		if name == "" {
			ix.skip(id, name, raw, kind, errors.New("empty dependency name"))
			continue
		}
		r, err := npmrange.Parse(raw)
		if err != nil {
			ix.skip(id, name, raw, kind, err)
			continue
		}
		set, err := rangekey.Encode(r)
		if err != nil {
			return nil, err
		}
		records = append(records, indexRecord{Kind: kind, Dep: name, Intervals: set})
	}
	return records, nil
}

func (ix *Index) skip(id, name, raw string, kind Kind, err error) {
	ix.metrics.IncSkipped()
	ix.logger.Warn("skipping dependency", "dependant", id, "dependency", name, "kind", kind, "range", raw, "reason", err)
}
