// Package vegvisir provides the embedded API for the vegvisir query
// engine.
//
// An Engine wraps a storage backend and executes Cypher match queries
// against it, compiling each query through the parse, analyze and plan
// stages and caching compiled plans for reuse.
//
// Example usage:
//
//	store := storage.NewMemoryEngine()
//	eng, err := vegvisir.Open(store, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	res, err := eng.Execute(ctx,
//		"MATCH (p:Person) WHERE p.age > $min RETURN p.name",
//		map[string]any{"min": 30})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, row := range res.Rows {
//		fmt.Println(row[0])
//	}
package vegvisir

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/orneryd/vegvisir/pkg/config"
	"github.com/orneryd/vegvisir/pkg/cypher"
	"github.com/orneryd/vegvisir/pkg/executor"
	"github.com/orneryd/vegvisir/pkg/plan"
	"github.com/orneryd/vegvisir/pkg/planner"
	"github.com/orneryd/vegvisir/pkg/storage"
)

// Errors returned by Engine operations.
var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrNilStore is returned by Open when no storage engine is given.
	ErrNilStore = errors.New("nil storage engine")
)

// Engine is the embedded query engine. It owns the storage engine passed
// to Open and closes it on Close. Safe for concurrent use.
type Engine struct {
	store  storage.Engine
	cfg    *config.Config
	exec   *executor.Executor
	tracer trace.Tracer
	cache  *planCache

	mu     sync.RWMutex
	closed bool
}

// compiledPlan is one query compiled down to a plan segment. Plans are
// immutable after Transform returns, so a cached one is shared across
// executions without copying.
type compiledPlan struct {
	arena *plan.Arena
	seg   plan.Segment
}

// Open creates an Engine over store. A nil cfg uses built-in defaults.
func Open(store storage.Engine, cfg *config.Config) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if cfg == nil {
		cfg = config.LoadDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	eng := &Engine{
		store:  store,
		cfg:    cfg,
		exec:   executor.New(store),
		tracer: otel.Tracer("vegvisir"),
	}
	if cfg.Planner.PlanCacheEnabled {
		eng.cache = newPlanCache(cfg.Planner.PlanCacheSize)
	}
	return eng, nil
}

// Execute compiles and runs one query. Parameter values referenced as
// $name in the query are taken from params.
func (e *Engine) Execute(ctx context.Context, query string, params map[string]any) (*executor.Result, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}

	ctx, span := e.tracer.Start(ctx, "vegvisir.query")
	defer span.End()
	span.SetAttributes(attribute.String("db.statement", query))

	start := time.Now()
	cp, err := e.compile(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	execCtx, execSpan := e.tracer.Start(ctx, "query.execute")
	res, err := e.exec.Execute(execCtx, cp.arena, cp.seg, params)
	execSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("query.rows", len(res.Rows)))
	e.logQuery(query, time.Since(start), len(res.Rows))
	return res, nil
}

// Explain compiles query and returns a rendering of the resulting plan
// without executing it.
func (e *Engine) Explain(ctx context.Context, query string) (string, error) {
	if e.isClosed() {
		return "", ErrClosed
	}

	ctx, span := e.tracer.Start(ctx, "vegvisir.explain")
	defer span.End()

	cp, err := e.compile(ctx, query)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return plan.Explain(cp.arena, cp.seg), nil
}

// Storage returns the underlying storage engine, for dataset loading and
// direct graph access.
func (e *Engine) Storage() storage.Engine {
	return e.store
}

// Close shuts the engine down and closes the underlying storage engine.
// Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.store.Close()
}

func (e *Engine) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// compile parses and plans query, going through the plan cache when one
// is configured.
func (e *Engine) compile(ctx context.Context, query string) (*compiledPlan, error) {
	var key cacheKey
	if e.cache != nil {
		key = keyFor(query)
		if cp, ok := e.cache.get(key); ok {
			trace.SpanFromContext(ctx).AddEvent("plan cache hit")
			return cp, nil
		}
	}

	_, parseSpan := e.tracer.Start(ctx, "query.parse")
	stmt, err := cypher.Parse(query)
	parseSpan.End()
	if err != nil {
		return nil, err
	}

	arena := plan.NewArena()
	_, planSpan := e.tracer.Start(ctx, "query.plan")
	seg, err := planner.Transform(arena, stmt)
	planSpan.End()
	if err != nil {
		return nil, err
	}

	cp := &compiledPlan{arena: arena, seg: seg}
	if e.cache != nil {
		e.cache.put(key, cp)
	}
	return cp, nil
}

func (e *Engine) logQuery(query string, elapsed time.Duration, rows int) {
	slow := e.cfg.Logging.SlowQueryThreshold > 0 && elapsed >= e.cfg.Logging.SlowQueryThreshold
	switch {
	case slow:
		log.Printf("slow query (%v, %d rows): %s", elapsed, rows, query)
	case e.cfg.Logging.QueryLogEnabled:
		log.Printf("query (%v, %d rows): %s", elapsed, rows, query)
	}
}
