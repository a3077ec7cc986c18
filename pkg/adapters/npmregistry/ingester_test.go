package npmregistry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/git-pkgs/registries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukryu/depdex/pkg/adapters/memdb"
	"github.com/sukryu/depdex/pkg/domain"
)

// recordingStorer keeps every stored document.
type recordingStorer struct {
	mu   sync.Mutex
	pkgs []domain.Package
	fail error
}

func (s *recordingStorer) Store(ctx context.Context, pkg domain.Package) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pkgs = append(s.pkgs, pkg)
	return nil
}

func (s *recordingStorer) sorted() []domain.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Package(nil), s.pkgs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func newRegistryServer(t *testing.T) *httptest.Server {
	t.Helper()
	docs := map[string]interface{}{
		"/app": map[string]interface{}{
			"_id":       "app",
			"name":      "app",
			"dist-tags": map[string]string{"latest": "1.1.0"},
			"versions": map[string]interface{}{
				"1.0.0": map[string]interface{}{
					"name":         "app",
					"version":      "1.0.0",
					"dependencies": map[string]string{"lib": "^1.0.0"},
				},
				"1.1.0": map[string]interface{}{
					"name":                 "app",
					"version":              "1.1.0",
					"dependencies":         map[string]string{"lib": "^2.0.0"},
					"devDependencies":      map[string]string{"tap": "~16.0.0"},
					"optionalDependencies": map[string]string{"fsevents": "*"},
				},
				"nightly": map[string]interface{}{
					"name":    "app",
					"version": "nightly",
				},
			},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIngest_MapsScopes(t *testing.T) {
	server := newRegistryServer(t)
	store := &recordingStorer{}
	ingester, err := New(Config{URL: server.URL, Concurrency: 2}, store, nil)
	require.NoError(t, err)

	n, err := ingester.Ingest(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the non-semver version is skipped")

	pkgs := store.sorted()
	require.Len(t, pkgs, 2)
	assert.Equal(t, domain.Package{Name: "app", Version: "1.0.0", Dependencies: map[string]string{"lib": "^1.0.0"}}, pkgs[0])
	assert.Equal(t, map[string]string{"lib": "^2.0.0"}, pkgs[1].Dependencies)
	assert.Equal(t, map[string]string{"tap": "~16.0.0"}, pkgs[1].DevDependencies)
}

func TestIngest_IntoIndex(t *testing.T) {
	server := newRegistryServer(t)
	kv := memdb.New(memdb.Config{})
	t.Cleanup(func() { kv.Close() })
	index, err := domain.NewIndex(domain.DefaultIndexConfig(), kv, nil)
	require.NoError(t, err)

	ingester, err := New(Config{URL: server.URL, Concurrency: 4}, index, nil)
	require.NoError(t, err)
	_, err = ingester.Ingest(context.Background(), "app")
	require.NoError(t, err)

	ctx := context.Background()
	latest, err := index.LatestVersion(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", latest)

	pkgs, err := index.Query(ctx, "lib", "1.5.0", domain.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "1.0.0", pkgs[0].Version)

	pkgs, err = index.Query(ctx, "tap", "16.0.3", domain.QueryOptions{DevDependencies: true, Latest: true})
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "app", pkgs[0].Name)
}

func TestIngest_UnknownPackage(t *testing.T) {
	server := newRegistryServer(t)
	ingester, err := New(Config{URL: server.URL}, &recordingStorer{}, nil)
	require.NoError(t, err)

	n, err := ingester.Ingest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPackageNotFound)
	assert.Zero(t, n)
}

func TestIngest_StoreFailure(t *testing.T) {
	server := newRegistryServer(t)
	boom := errors.New("disk full")
	ingester, err := New(Config{URL: server.URL, Concurrency: 1}, &recordingStorer{fail: boom}, nil)
	require.NoError(t, err)

	n, err := ingester.IngestAll(context.Background(), []string{"app", "missing"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, registries.DefaultURL("npm"), config.URL)
	assert.Positive(t, config.Concurrency)
}
