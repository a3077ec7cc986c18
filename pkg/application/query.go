package application

import (
	"context"
	"sync"

	"github.com/sukryu/depdex/pkg/domain"
	"github.com/sukryu/depdex/pkg/utils"
)

// QueryHandler handles execution of queries against the index.
type QueryHandler struct {
	index  *domain.Index
	logger utils.Logger
	wg     sync.WaitGroup // For async query execution tracking
}

// NewQueryHandler creates a new QueryHandler instance.
func NewQueryHandler(index *domain.Index, logger utils.Logger) *QueryHandler {
	return &QueryHandler{
		index:  index,
		logger: logger,
	}
}

// Query defines the interface for all queries.
type Query interface {
	Execute(ctx context.Context, handler *QueryHandler) (interface{}, error)
}

// DependantsQuery finds packages whose declared range for Dependency overlaps Range.
// The result is a []domain.Package.
type DependantsQuery struct {
	Dependency string
	Range      string
	Options    domain.QueryOptions
}

// Execute executes the DependantsQuery.
func (q *DependantsQuery) Execute(ctx context.Context, handler *QueryHandler) (interface{}, error) {
	handler.logger.Debug("executing DependantsQuery", "dependency", q.Dependency, "range", q.Range,
		"dev", q.Options.DevDependencies, "latest", q.Options.Latest, "limit", q.Options.Limit, "gt", q.Options.GT)
	pkgs, err := handler.index.Query(ctx, q.Dependency, q.Range, q.Options)
	if err != nil {
		handler.logger.Warn("dependants query failed", "dependency", q.Dependency, "range", q.Range, "err", err)
		return nil, err
	}
	return pkgs, nil
}

// GetPackageQuery retrieves one document. An empty Version selects the latest.
type GetPackageQuery struct {
	Name    string
	Version string
}

// Execute executes the GetPackageQuery.
func (q *GetPackageQuery) Execute(ctx context.Context, handler *QueryHandler) (interface{}, error) {
	handler.logger.Debug("executing GetPackageQuery", "name", q.Name, "version", q.Version)
	var (
		pkg domain.Package
		err error
	)
	if q.Version == "" {
		pkg, err = handler.index.GetLatest(ctx, q.Name)
	} else {
		pkg, err = handler.index.Get(ctx, q.Name, q.Version)
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// LatestVersionQuery returns the latest stored version of Name as a string.
type LatestVersionQuery struct {
	Name string
}

// Execute executes the LatestVersionQuery.
func (q *LatestVersionQuery) Execute(ctx context.Context, handler *QueryHandler) (interface{}, error) {
	v, err := handler.index.LatestVersion(ctx, q.Name)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// StatsQuery returns index and store counters.
type StatsQuery struct{}

// Execute executes the StatsQuery.
func (q *StatsQuery) Execute(ctx context.Context, handler *QueryHandler) (interface{}, error) {
	return handler.index.Stats(), nil
}

// ExecuteQuery executes a query synchronously and returns the result.
func (h *QueryHandler) ExecuteQuery(ctx context.Context, query Query) (interface{}, error) {
	return query.Execute(ctx, h)
}

// ExecuteQueryAsync executes a query asynchronously and returns a channel for the result.
func (h *QueryHandler) ExecuteQueryAsync(ctx context.Context, query Query) <-chan QueryResult {
	resultChan := make(chan QueryResult, 1)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		result, err := query.Execute(ctx, h)
		resultChan <- QueryResult{Result: result, Err: err}
		close(resultChan)
	}()
	return resultChan
}

// Wait waits for all asynchronous queries to complete.
func (h *QueryHandler) Wait() {
	h.wg.Wait()
}

func (h *QueryHandler) Index() *domain.Index {
	return h.index
}

// QueryResult wraps the result and error of an asynchronous query.
type QueryResult struct {
	Result interface{}
	Err    error
}
