package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukryu/depdex/pkg/adapters/memdb"
	"github.com/sukryu/depdex/pkg/domain"
)

// mockLogger는 테스트용 간단한 로거입니다.
type mockLogger struct {
	mu   sync.Mutex
	logs []string
}

func (m *mockLogger) add(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, level+": "+msg)
}

func (m *mockLogger) Debug(msg string, kv ...interface{}) { m.add("DEBUG", msg) }
func (m *mockLogger) Info(msg string, kv ...interface{})  { m.add("INFO", msg) }
func (m *mockLogger) Warn(msg string, kv ...interface{})  { m.add("WARN", msg) }
func (m *mockLogger) Error(err error, msg string, kv ...interface{}) {
	m.add("ERROR", fmt.Sprintf("%s: %v", msg, err))
}

func (m *mockLogger) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.logs {
		if len(l) > len(level) && l[:len(level)] == level {
			n++
		}
	}
	return n
}

func setupHandlers(t *testing.T) (*CommandHandler, *QueryHandler, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	store := memdb.New(memdb.Config{})
	t.Cleanup(func() { store.Close() })
	index, err := domain.NewIndex(domain.DefaultIndexConfig(), store, logger)
	require.NoError(t, err)
	return NewCommandHandler(index, logger), NewQueryHandler(index, logger), logger
}

func TestCommandHandler_StorePackage(t *testing.T) {
	commands, _, _ := setupHandlers(t)
	ctx := context.Background()

	cmd := &StorePackageCommand{Package: domain.Package{Name: "app", Version: "1.0.0", Dependencies: map[string]string{"lib": "^1.0.0"}}}
	require.NoError(t, commands.ExecuteCommand(ctx, cmd), "StorePackageCommand should succeed")

	pkg, err := commands.Index().Get(ctx, "app", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "^1.0.0", pkg.Dependencies["lib"])
}

func TestCommandHandler_InvalidPackageLogsError(t *testing.T) {
	commands, _, logger := setupHandlers(t)

	err := commands.ExecuteCommand(context.Background(), &StorePackageCommand{Package: domain.Package{Name: "app"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPackage)
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestCommandHandler_StorePackagesStopsAtFailure(t *testing.T) {
	commands, _, _ := setupHandlers(t)
	ctx := context.Background()

	err := commands.ExecuteCommand(ctx, &StorePackagesCommand{Packages: []domain.Package{
		{Name: "a", Version: "1.0.0"},
		{Name: "b", Version: "bogus"},
		{Name: "c", Version: "1.0.0"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidPackage)

	_, err = commands.Index().Get(ctx, "a", "1.0.0")
	assert.NoError(t, err)
	_, err = commands.Index().Get(ctx, "c", "1.0.0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCommandHandler_AsyncExecution(t *testing.T) {
	commands, _, _ := setupHandlers(t)
	ctx := context.Background()

	var futures []<-chan error
	for i := 0; i < 10; i++ {
		cmd := &StorePackageCommand{Package: domain.Package{Name: "app", Version: fmt.Sprintf("1.%d.0", i)}}
		futures = append(futures, commands.ExecuteCommandAsync(ctx, cmd))
	}
	commands.Wait()
	for _, f := range futures {
		assert.NoError(t, <-f)
	}

	v, err := commands.Index().LatestVersion(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, "1.9.0", v, "concurrent stores still pick the highest version")

	err = <-commands.ExecuteCommandAsync(ctx, &StorePackageCommand{})
	assert.ErrorIs(t, err, domain.ErrInvalidPackage)
}

func TestQueryHandler_Dependants(t *testing.T) {
	commands, queries, _ := setupHandlers(t)
	ctx := context.Background()
	require.NoError(t, commands.ExecuteCommand(ctx, &StorePackagesCommand{Packages: []domain.Package{
		{Name: "a", Version: "1.0.0", Dependencies: map[string]string{"lib": "^1.0.0"}},
		{Name: "b", Version: "1.0.0", Dependencies: map[string]string{"lib": "^2.0.0"}},
		{Name: "c", Version: "1.0.0", DevDependencies: map[string]string{"lib": "*"}},
	}}))

	result, err := queries.ExecuteQuery(ctx, &DependantsQuery{Dependency: "lib", Range: "1.2.0"})
	require.NoError(t, err)
	pkgs := result.([]domain.Package)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "a", pkgs[0].Name)

	result, err = queries.ExecuteQuery(ctx, &DependantsQuery{Dependency: "lib", Range: "*", Options: domain.QueryOptions{DevDependencies: true}})
	require.NoError(t, err)
	assert.Len(t, result.([]domain.Package), 1)

	_, err = queries.ExecuteQuery(ctx, &DependantsQuery{Dependency: "lib", Range: "1 || 2"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedQueryRange)
}

func TestQueryHandler_GetPackageAndLatest(t *testing.T) {
	commands, queries, _ := setupHandlers(t)
	ctx := context.Background()
	require.NoError(t, commands.ExecuteCommand(ctx, &StorePackagesCommand{Packages: []domain.Package{
		{Name: "a", Version: "1.0.0"},
		{Name: "a", Version: "1.1.0"},
	}}))

	result, err := queries.ExecuteQuery(ctx, &GetPackageQuery{Name: "a", Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", result.(domain.Package).Version)

	result, err = queries.ExecuteQuery(ctx, &GetPackageQuery{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", result.(domain.Package).Version)

	result, err = queries.ExecuteQuery(ctx, &LatestVersionQuery{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", result)

	_, err = queries.ExecuteQuery(ctx, &GetPackageQuery{Name: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	result, err = queries.ExecuteQuery(ctx, &StatsQuery{})
	require.NoError(t, err)
	stats := result.(map[string]interface{})
	assert.Equal(t, int64(2), stats["stored_packages"])
	assert.Contains(t, stats, "store_keys")
}

func TestQueryHandler_AsyncExecution(t *testing.T) {
	commands, queries, _ := setupHandlers(t)
	ctx := context.Background()
	require.NoError(t, commands.ExecuteCommand(ctx, &StorePackageCommand{
		Package: domain.Package{Name: "a", Version: "1.0.0", Dependencies: map[string]string{"lib": "~1.2.0"}},
	}))

	resultChan := queries.ExecuteQueryAsync(ctx, &DependantsQuery{Dependency: "lib", Range: ">=1.2.5 <1.3.0"})
	queries.Wait()
	res := <-resultChan
	require.NoError(t, res.Err)
	assert.Len(t, res.Result.([]domain.Package), 1)

	_, open := <-resultChan
	assert.False(t, open, "result channel is closed after delivery")
}
