package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sukryu/depdex/pkg/adapters/cache"
	"github.com/sukryu/depdex/pkg/npmrange"
	"github.com/sukryu/depdex/pkg/ports"
	"github.com/sukryu/depdex/pkg/types"
	"github.com/sukryu/depdex/pkg/utils"
)

// IndexConfig defines the configuration for an Index.
type IndexConfig struct {
	LatestCacheSize    int // name -> latest version shortcuts kept in memory
	ResolveConcurrency int // parallel document fetches per query window
	ScanWindow         int // candidate records resolved per round
}

// DefaultIndexConfig returns the defaults used by the CLI.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		LatestCacheSize:    1024,
		ResolveConcurrency: 8,
		ScanWindow:         64,
	}
}

// Index is the aggregate root: it stores package documents together with
// their dependency index records and answers dependant queries.
type Index struct {
	config  IndexConfig
	store   ports.KVStore
	latest  types.CacheInterface[string, string]
	storeMu sync.Mutex // serialises Store and pruning
	metrics *Metrics
	logger  utils.Logger
}

// NewIndex creates an Index with its own latest-version LRU.
func NewIndex(config IndexConfig, store ports.KVStore, logger utils.Logger) (*Index, error) {
	return NewIndexWithCache(config, store, cache.NewLRU[string, string](config.LatestCacheSize), logger)
}

// NewIndexWithCache creates an Index that uses the given latest-version cache.
func NewIndexWithCache(config IndexConfig, store ports.KVStore, latest types.CacheInterface[string, string], logger utils.Logger) (*Index, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	defaults := DefaultIndexConfig()
	if config.ResolveConcurrency <= 0 {
		config.ResolveConcurrency = defaults.ResolveConcurrency
	}
	if config.ScanWindow <= 0 {
		config.ScanWindow = defaults.ScanWindow
	}
	if logger == nil {
		logger = &utils.SilentLogger{}
	}
	return &Index{
		config:  config,
		store:   store,
		latest:  latest,
		metrics: &Metrics{},
		logger:  logger,
	}, nil
}

// Store persists pkg, its index records and, when pkg is the newest version
// of its name, the latest document, pointer and latest records. Everything is
// committed in a single batch.
func (ix *Index) Store(ctx context.Context, pkg Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}
	ix.storeMu.Lock()
	defer ix.storeMu.Unlock()

	id := pkg.ID()
	records, err := ix.recordDependencies(id, pkg.Dependencies, KindDep)
	if err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	devRecords, err := ix.recordDependencies(id, pkg.DevDependencies, KindDev)
	if err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	records = append(records, devRecords...)

	doc, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	batch := []types.Entry{types.Put(packageKey(pkg.Name, pkg.Version), string(doc))}

	current, found, err := ix.latestVersion(ctx, pkg.Name)
	if err != nil {
		return err
	}
	isLatest := !found || npmrange.CompareVersions(pkg.Version, current) >= 0

	// 같은 버전을 다시 저장하면 더 이상 인덱싱되지 않는 레코드를 지운다.
	// 선언은 남았지만 범위가 파싱되지 않는 경우도 포함한다.
	prev, err := ix.Get(ctx, pkg.Name, pkg.Version)
	switch {
	case err == nil:
		type declaration struct {
			kind Kind
			dep  string
		}
		indexed := make(map[declaration]bool, len(records))
		for _, r := range records {
			indexed[declaration{r.Kind, r.Dep}] = true
		}
		for _, kind := range []Kind{KindDep, KindDev} {
			for dep := range prev.DependenciesOf(kind) {
				if indexed[declaration{kind, dep}] {
					continue
				}
				batch = append(batch, types.Delete(indexKey(kind, false, dep, id)))
				if found && current == pkg.Version {
					batch = append(batch, types.Delete(indexKey(kind, true, dep, pkg.Name)))
				}
			}
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	for _, r := range records {
		value, err := json.Marshal(r.Intervals)
		if err != nil {
			return err
		}
		batch = append(batch, types.Put(indexKey(r.Kind, false, r.Dep, id), string(value)))
	}

	if isLatest {
		batch = append(batch,
			types.Put(latestPackageKey(pkg.Name), string(doc)),
			types.Put(latestVersionKey(pkg.Name), pkg.Version),
		)
		for _, r := range records {
			value, err := json.Marshal(latestRecord{Version: pkg.Version, Intervals: r.Intervals})
			if err != nil {
				return err
			}
			batch = append(batch, types.Put(indexKey(r.Kind, true, r.Dep, pkg.Name), string(value)))
		}
	}

	if err := ix.store.Batch(ctx, batch); err != nil {
		return err
	}
	if isLatest {
		ix.latest.Put(pkg.Name, pkg.Version)
	}
	ix.metrics.IncStored()
	ix.logger.Debug("stored package", "id", id, "records", len(records), "latest", isLatest)
	return nil
}

// Get returns the document stored for name@version.
func (ix *Index) Get(ctx context.Context, name, version string) (Package, error) {
	return ix.fetch(ctx, packageKey(name, version))
}

// GetLatest returns the document of the latest stored version of name.
func (ix *Index) GetLatest(ctx context.Context, name string) (Package, error) {
	return ix.fetch(ctx, latestPackageKey(name))
}

// LatestVersion returns the highest stored version of name.
func (ix *Index) LatestVersion(ctx context.Context, name string) (string, error) {
	v, found, err := ix.latestVersion(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("latest version of %s: %w", name, ErrNotFound)
	}
	return v, nil
}

// latestVersion consults the LRU first and falls back to the persisted pointer.
func (ix *Index) latestVersion(ctx context.Context, name string) (string, bool, error) {
	if v, ok := ix.latest.Get(name); ok {
		ix.metrics.IncLatestCacheHit()
		return v, true, nil
	}
	v, err := ix.store.Get(ctx, latestVersionKey(name))
	if errors.Is(err, ports.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	ix.latest.Put(name, v)
	return v, true, nil
}

func (ix *Index) fetch(ctx context.Context, key string) (Package, error) {
	raw, err := ix.store.Get(ctx, key)
	if err != nil {
		return Package{}, err
	}
	var pkg Package
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return Package{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return pkg, nil
}

// Stats returns index counters merged with the store's, when it exposes any.
func (ix *Index) Stats() map[string]interface{} {
	stats := make(map[string]interface{})
	for k, v := range ix.metrics.Snapshot() {
		stats[k] = v
	}
	stats["latest_cache_entries"] = ix.latest.Length()
	if sp, ok := ix.store.(ports.StatsProvider); ok {
		for k, v := range sp.Stats() {
			stats["store_"+k] = v
		}
	}
	return stats
}
