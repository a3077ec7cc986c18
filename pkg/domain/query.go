package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sukryu/depdex/pkg/npmrange"
	"github.com/sukryu/depdex/pkg/ports"
	"github.com/sukryu/depdex/pkg/rangekey"
	"github.com/sukryu/depdex/pkg/types"
)

// QueryOptions selects the index to scan and paginates the result.
type QueryOptions struct {
	DevDependencies bool   // scan devDependencies instead of dependencies
	Latest          bool   // scan the latest-only index
	Limit           int    // maximum number of results, 0 for no limit
	GT              string // resume strictly after this dependant (name@version, or name for Latest)
}

func (o QueryOptions) kind() Kind {
	if o.DevDependencies {
		return KindDev
	}
	return KindDep
}

// candidate is an index record that passed the overlap filter.
type candidate struct {
	key       string
	value     string
	dependant string // escaped key tail
	version   string // version a latest record was written for
}

type resolution struct {
	pkg   Package
	ok    bool
	stale bool
}

// Query returns the packages declaring a dependency on dep whose range
// overlaps rangeStr, in dependant order.
func (ix *Index) Query(ctx context.Context, dep, rangeStr string, opts QueryOptions) ([]Package, error) {
	ix.metrics.IncQueries()
	r, err := npmrange.Parse(rangeStr)
	if err != nil {
		return nil, err
	}
	if len(r.Set) != 1 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQueryRange, rangeStr)
	}

	match := func(rangekey.IntervalSet) bool { return true }
	if !r.IsWildcard() {
		lower, upper, err := rangekey.QueryBounds(r.Set[0])
		if err != nil {
			return nil, err
		}
		match = func(set rangekey.IntervalSet) bool { return set.Overlaps(lower, upper) }
	}

	prefix := indexPrefix(opts.kind(), opts.Latest, dep)
	kr := ports.KeyRange{Start: prefix, End: prefix + rangekey.MaxBound}
	if opts.GT != "" {
		kr = kr.After(prefix + escapeName(opts.GT))
	}

	var results []Package
	for {
		window := ix.config.ScanWindow
		if opts.Limit > 0 && opts.Limit-len(results) < window {
			window = opts.Limit - len(results)
		}
		candidates, exhausted, err := ix.scanWindow(ctx, prefix, kr, window, opts.Latest, match)
		if err != nil {
			return nil, err
		}
		resolved, err := ix.resolve(ctx, candidates, dep, opts)
		if err != nil {
			return nil, err
		}

		var stale []candidate
		for i, res := range resolved {
			switch {
			case res.stale:
				stale = append(stale, candidates[i])
			case res.ok && (opts.Limit <= 0 || len(results) < opts.Limit):
				results = append(results, res.pkg)
			}
		}
		if err := ix.prune(ctx, stale); err != nil {
			return nil, err
		}

		if exhausted || (opts.Limit > 0 && len(results) >= opts.Limit) {
			return results, nil
		}
		kr = kr.After(candidates[len(candidates)-1].key)
	}
}

// scanWindow collects up to n matching records from r. exhausted is set
// when the range ended before n matches were found.
func (ix *Index) scanWindow(ctx context.Context, prefix string, r ports.KeyRange, n int, latest bool, match func(rangekey.IntervalSet) bool) ([]candidate, bool, error) {
	var out []candidate
	exhausted := true
	err := ix.store.Scan(ctx, r, func(key, value string) error {
		set, version, err := decodeIndexValue(value, latest)
		if err != nil {
			return fmt.Errorf("decode index record %q: %w", key, err)
		}
		if !match(set) {
			return nil
		}
		out = append(out, candidate{key: key, value: value, dependant: strings.TrimPrefix(key, prefix), version: version})
		if len(out) == n {
			exhausted = false
			return ports.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, exhausted, nil
}

// decodeIndexValue returns the intervals of an index value and, for latest
// records, the version they were written for.
func decodeIndexValue(value string, latest bool) (rangekey.IntervalSet, string, error) {
	if latest {
		var rec latestRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return nil, "", err
		}
		return rec.Intervals, rec.Version, nil
	}
	var set rangekey.IntervalSet
	if err := json.Unmarshal([]byte(value), &set); err != nil {
		return nil, "", err
	}
	return set, "", nil
}

// resolve fetches the documents of a window concurrently. The result is
// indexed like candidates, so scan order survives out-of-order fetches.
func (ix *Index) resolve(ctx context.Context, candidates []candidate, dep string, opts QueryOptions) ([]resolution, error) {
	out := make([]resolution, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.ResolveConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if !opts.Latest {
				pkg, err := ix.fetch(gctx, prefixPackage+c.dependant)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", c.dependant, err)
				}
				out[i] = resolution{pkg: pkg, ok: true}
				return nil
			}

			pkg, err := ix.fetch(gctx, prefixLatestPackage+c.dependant)
			if errors.Is(err, ErrNotFound) {
				out[i] = resolution{stale: true}
				return nil
			}
			if err != nil {
				return fmt.Errorf("resolve latest %s: %w", c.dependant, err)
			}
			// 레코드가 다른 버전에서 쓰였거나 최신 버전이 더 이상 dep을
			// 선언하지 않으면 낡은 것이다. 최신 버전의 범위가 파싱되지 않으면
			// 이전 버전의 레코드가 덮어써지지 않고 남는다.
			if c.version != pkg.Version || !pkg.Declares(dep, opts.kind()) {
				out[i] = resolution{stale: true}
				return nil
			}
			out[i] = resolution{pkg: pkg, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// prune deletes stale latest records. A record rewritten by a concurrent
// Store since it was scanned is left alone.
func (ix *Index) prune(ctx context.Context, stale []candidate) error {
	if len(stale) == 0 {
		return nil
	}
	ix.storeMu.Lock()
	defer ix.storeMu.Unlock()

	var batch []types.Entry
	for _, c := range stale {
		current, err := ix.store.Get(ctx, c.key)
		if errors.Is(err, ports.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if current == c.value {
			batch = append(batch, types.Delete(c.key))
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := ix.store.Batch(ctx, batch); err != nil {
		return err
	}
	ix.metrics.IncPruned(len(batch))
	ix.logger.Debug("pruned stale latest records", "count", len(batch))
	return nil
}
