package changefeed

import (
	"context"

	"github.com/randalmurphal/changefeed/pkg/changefeed/metadata"
)

// Engine creates units of work that share one set of metadata tables and one
// publisher. It is safe for concurrent use.
type Engine struct {
	tables    *metadata.Tables
	publisher Publisher
	cfg       engineConfig
}

// New creates an engine.
//
// Example:
//
//	engine, err := changefeed.New(tables, dispatcher,
//	    changefeed.WithLogger(logger),
//	    changefeed.WithMetrics(observability.NewMetricsRecorder()),
//	)
func New(tables *metadata.Tables, publisher Publisher, opts ...Option) (*Engine, error) {
	if tables == nil {
		return nil, ErrNilTables
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}

	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{tables: tables, publisher: publisher, cfg: cfg}, nil
}

// Tables returns the metadata tables shared by every unit of work.
func (e *Engine) Tables() *metadata.Tables { return e.tables }

// Begin starts a unit of work and returns its suppression gate, which is the
// Hooks implementation the persistence runtime should call. ctx is passed to
// the publisher on commit.
func (e *Engine) Begin(ctx context.Context) *Gate {
	return NewGate(e.NewUnitOfWork(ctx), e.tables)
}

// NewUnitOfWork starts a unit of work without suppression.
func (e *Engine) NewUnitOfWork(ctx context.Context) *UnitOfWork {
	return newUnitOfWork(ctx, e.tables, e.publisher, &e.cfg)
}
