// Package npmregistry는 npm 레지스트리에서 패키지 버전을 가져와 인덱스에 저장합니다.
package npmregistry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"

	"github.com/git-pkgs/registries"
	_ "github.com/git-pkgs/registries/all"
	"golang.org/x/sync/errgroup"

	"github.com/sukryu/depdex/pkg/domain"
	"github.com/sukryu/depdex/pkg/npmrange"
	"github.com/sukryu/depdex/pkg/utils"
)

const ecosystem = "npm"

// ErrPackageNotFound is returned when the registry has no such package.
var ErrPackageNotFound = errors.New("package not found in registry")

// Storer receives ingested documents. *domain.Index satisfies it.
type Storer interface {
	Store(ctx context.Context, pkg domain.Package) error
}

// Config configures an Ingester.
type Config struct {
	URL         string // registry base URL, empty for registry.npmjs.org
	Concurrency int    // parallel version fetches
}

// DefaultConfig returns the public registry with four parallel fetches.
func DefaultConfig() Config {
	return Config{
		URL:         registries.DefaultURL(ecosystem),
		Concurrency: 4,
	}
}

// Ingester copies registry metadata into a Storer.
type Ingester struct {
	registry    registries.Registry
	store       Storer
	concurrency int
	logger      utils.Logger
}

// New creates an Ingester backed by the default retrying HTTP client.
func New(config Config, store Storer, logger utils.Logger) (*Ingester, error) {
	reg, err := registries.New(ecosystem, config.URL, registries.DefaultClient())
	if err != nil {
		return nil, fmt.Errorf("create npm registry client: %w", err)
	}
	return NewWithRegistry(reg, config.Concurrency, store, logger), nil
}

// NewWithRegistry creates an Ingester around an existing registry client.
func NewWithRegistry(reg registries.Registry, concurrency int, store Storer, logger utils.Logger) *Ingester {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = &utils.SilentLogger{}
	}
	return &Ingester{
		registry:    reg,
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Ingest stores every semver version of name and returns how many were stored.
// Fetches run concurrently, so the Storer sees versions in no fixed order
// and picks the latest itself.
func (in *Ingester) Ingest(ctx context.Context, name string) (int, error) {
	versions, err := in.registry.FetchVersions(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
		}
		return 0, fmt.Errorf("fetch versions of %s: %w", name, err)
	}

	numbers := make([]string, 0, len(versions))
	for _, v := range versions {
		if !npmrange.ValidVersion(v.Number) {
			in.logger.Debug("skipping non-semver version", "package", name, "version", v.Number)
			continue
		}
		numbers = append(numbers, v.Number)
	}
	sort.Slice(numbers, func(i, j int) bool {
		return npmrange.CompareVersions(numbers[i], numbers[j]) < 0
	})

	var stored int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for _, number := range numbers {
		g.Go(func() error {
			pkg, err := in.fetchPackage(gctx, name, number)
			if err != nil {
				return err
			}
			if err := in.store.Store(gctx, pkg); err != nil {
				return fmt.Errorf("store %s: %w", pkg.ID(), err)
			}
			atomic.AddInt64(&stored, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt64(&stored)), err
	}

	in.logger.Info("ingested package", "package", name, "versions", stored, "skipped", len(versions)-len(numbers))
	return int(stored), nil
}

// IngestAll ingests each name in turn and stops at the first failure.
func (in *Ingester) IngestAll(ctx context.Context, names []string) (int, error) {
	total := 0
	for _, name := range names {
		n, err := in.Ingest(ctx, name)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, registries.ErrNotFound) {
		return true
	}
	var nf *registries.NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var he *registries.HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func (in *Ingester) fetchPackage(ctx context.Context, name, version string) (domain.Package, error) {
	deps, err := in.registry.FetchDependencies(ctx, name, version)
	if err != nil {
		return domain.Package{}, fmt.Errorf("fetch dependencies of %s@%s: %w", name, version, err)
	}
	pkg := domain.Package{Name: name, Version: version}
	for _, d := range deps {
		switch d.Scope {
		case registries.Runtime:
			if pkg.Dependencies == nil {
				pkg.Dependencies = make(map[string]string)
			}
			pkg.Dependencies[d.Name] = d.Requirements
		case registries.Development:
			if pkg.DevDependencies == nil {
				pkg.DevDependencies = make(map[string]string)
			}
			pkg.DevDependencies[d.Name] = d.Requirements
		}
	}
	return pkg, nil
}
