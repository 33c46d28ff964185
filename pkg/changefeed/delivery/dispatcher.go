package delivery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/changefeed/pkg/changefeed"
	"github.com/randalmurphal/changefeed/pkg/changefeed/observability"
	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type namedSink struct {
	name string
	sink Sink
}

// dispatcherConfig holds dispatcher settings.
type dispatcherConfig struct {
	sinks          []namedSink
	queueSize      int
	blocking       bool
	maxConcurrency int
	retry          RetryConfig
	deadLetters    DeadLetterQueue
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	onDrop         func(b Batch, reason error)
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		queueSize: 1024,
		retry:     DefaultRetry,
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithSink registers a sink under name. Every batch is delivered to every sink.
func WithSink(name string, sink Sink) DispatcherOption {
	return func(c *dispatcherConfig) {
		if sink != nil {
			c.sinks = append(c.sinks, namedSink{name: name, sink: sink})
		}
	}
}

// WithQueueSize sets the number of batches buffered ahead of delivery.
// Default: 1024
func WithQueueSize(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithBlocking makes Publish wait for queue space instead of dropping the batch.
func WithBlocking(blocking bool) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.blocking = blocking
	}
}

// WithMaxConcurrency limits how many sinks receive one batch at the same time.
// Default: 0 (all sinks at once)
func WithMaxConcurrency(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.maxConcurrency = n
	}
}

// WithRetry sets the per-sink retry policy. Default: DefaultRetry.
func WithRetry(cfg RetryConfig) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.retry = cfg
	}
}

// WithDeadLetters stores exhausted deliveries in q.
func WithDeadLetters(q DeadLetterQueue) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.deadLetters = q
	}
}

// WithDispatcherLogger sets the logger. Default: slog.Default().
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(c *dispatcherConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDispatcherMetrics records delivery metrics on m.
func WithDispatcherMetrics(m observability.MetricsRecorder) DispatcherOption {
	return func(c *dispatcherConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithDispatcherTracing starts a span per sink delivery.
func WithDispatcherTracing(spans observability.SpanManager) DispatcherOption {
	return func(c *dispatcherConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithOnDrop is called for every batch the dispatcher refuses.
func WithOnDrop(fn func(b Batch, reason error)) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.onDrop = fn
	}
}

// Dispatcher is a changefeed.Publisher that delivers batches asynchronously.
// Publish only enqueues; a background worker delivers each batch to every
// sink, in publish order.
type Dispatcher struct {
	cfg   dispatcherConfig
	queue chan Batch

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ changefeed.Publisher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher and starts its worker.
// Call Close to drain the queue and stop the worker.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher{
		cfg:   cfg,
		queue: make(chan Batch, cfg.queueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish implements changefeed.Publisher. It wraps events in a Batch and
// queues it. When the queue is full a non-blocking dispatcher drops the batch
// and returns ErrQueueFull.
func (d *Dispatcher) Publish(ctx context.Context, events []resource.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	return d.Enqueue(ctx, NewBatch(ctx, events))
}

// Enqueue queues an already built batch.
func (d *Dispatcher) Enqueue(ctx context.Context, b Batch) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(b, ErrDispatcherClosed)
		return ErrDispatcherClosed
	}

	if d.cfg.blocking {
		select {
		case d.queue <- b:
			return nil
		case <-ctx.Done():
			d.drop(b, ctx.Err())
			return ctx.Err()
		}
	}

	select {
	case d.queue <- b:
		return nil
	default:
		d.drop(b, ErrQueueFull)
		return ErrQueueFull
	}
}

// Close stops accepting batches and waits until the queued ones are delivered
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for b := range d.queue {
		_ = d.Deliver(context.Background(), b)
	}
}

// Deliver synchronously delivers b to every sink concurrently. Sinks that
// still fail after retries are written to the dead letter queue. The first
// DeliveryError is returned.
func (d *Dispatcher) Deliver(ctx context.Context, b Batch) error {
	var g errgroup.Group
	if d.cfg.maxConcurrency > 0 {
		g.SetLimit(d.cfg.maxConcurrency)
	}
	for _, s := range d.cfg.sinks {
		g.Go(func() error {
			return d.deliverTo(ctx, s, b)
		})
	}
	return g.Wait()
}

// Redrive retries up to limit dead letters. Entries that are delivered are
// removed; entries that fail again are re-enqueued. It returns the number of
// entries delivered.
func (d *Dispatcher) Redrive(ctx context.Context, limit int) (int, error) {
	if d.cfg.deadLetters == nil {
		return 0, nil
	}
	letters, err := d.cfg.deadLetters.List(ctx, limit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, dl := range letters {
		s, ok := d.sink(dl.Sink)
		if !ok {
			continue
		}
		if err := d.cfg.deadLetters.Remove(ctx, dl.Batch.ID, dl.Sink); err != nil {
			return delivered, err
		}
		if err := d.deliverTo(ctx, s, dl.Batch); err == nil {
			delivered++
		}
	}
	return delivered, nil
}

func (d *Dispatcher) sink(name string) (namedSink, bool) {
	for _, s := range d.cfg.sinks {
		if s.name == name {
			return s, true
		}
	}
	return namedSink{}, false
}

func (d *Dispatcher) deliverTo(ctx context.Context, s namedSink, b Batch) (deliverErr error) {
	elapsed := observability.TimedOperation()
	spanCtx, span := d.cfg.spans.StartDeliverySpan(ctx, b.ID, s.name)
	defer func() { d.cfg.spans.EndSpanWithError(span, deliverErr) }()

	onRetry := func(attempt int, err error) {
		d.cfg.spans.AddSpanEvent(spanCtx, "retry",
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error()),
		)
	}
	attempts, err := retry(spanCtx, d.cfg.retry, onRetry, func(ctx context.Context) error {
		return s.sink.Deliver(ctx, b)
	})
	d.cfg.metrics.RecordDelivery(spanCtx, s.name, err)

	if err == nil {
		observability.LogDelivery(d.cfg.logger, b.ID, s.name, attempts, elapsed())
		return nil
	}

	observability.LogDeliveryError(d.cfg.logger, b.ID, s.name, attempts, err)
	if d.cfg.deadLetters != nil {
		dl := &DeadLetter{Batch: b, Sink: s.name, Error: err.Error(), Attempts: attempts}
		if dlqErr := d.cfg.deadLetters.Enqueue(ctx, dl); dlqErr != nil {
			observability.LogBatchDropped(d.cfg.logger, b.ID, dlqErr.Error())
		}
	}
	return &DeliveryError{BatchID: b.ID, Sink: s.name, Attempts: attempts, Err: err}
}

func (d *Dispatcher) drop(b Batch, reason error) {
	observability.LogBatchDropped(d.cfg.logger, b.ID, reason.Error())
	if d.cfg.onDrop != nil {
		d.cfg.onDrop(b, reason)
	}
}
