package delivery

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DeadLetter is a batch a sink could not accept after retries.
type DeadLetter struct {
	Batch    Batch     `json:"batch"`
	Sink     string    `json:"sink"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// DeadLetterQueue stores failed deliveries for inspection and redrive.
type DeadLetterQueue interface {
	// Enqueue stores a failed delivery. A later failure of the same batch on
	// the same sink replaces the earlier entry.
	Enqueue(ctx context.Context, dl *DeadLetter) error

	// List returns up to limit entries, oldest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*DeadLetter, error)

	// Remove deletes the entry for a batch and sink.
	Remove(ctx context.Context, batchID, sink string) error

	// Len returns the number of stored entries.
	Len() int
}

// DeadLetterConfig configures the in-memory dead letter queue.
type DeadLetterConfig struct {
	// MaxSize limits the number of stored entries.
	// Default: 10000
	MaxSize int

	// OnEnqueue is called after an entry is stored.
	OnEnqueue func(*DeadLetter)
}

// DefaultDeadLetterConfig provides reasonable defaults.
var DefaultDeadLetterConfig = DeadLetterConfig{
	MaxSize: 10000,
}

type deadLetterKey struct {
	batchID string
	sink    string
}

// InMemoryDeadLetters is an in-memory DeadLetterQueue.
// Suitable for testing and single-instance deployments.
type InMemoryDeadLetters struct {
	mu      sync.RWMutex
	entries map[deadLetterKey]*DeadLetter
	cfg     DeadLetterConfig
}

var _ DeadLetterQueue = (*InMemoryDeadLetters)(nil)

// NewInMemoryDeadLetters creates an in-memory dead letter queue.
func NewInMemoryDeadLetters(cfg DeadLetterConfig) *InMemoryDeadLetters {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultDeadLetterConfig.MaxSize
	}
	return &InMemoryDeadLetters{
		entries: make(map[deadLetterKey]*DeadLetter),
		cfg:     cfg,
	}
}

// Enqueue implements DeadLetterQueue.
func (q *InMemoryDeadLetters) Enqueue(_ context.Context, dl *DeadLetter) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := deadLetterKey{batchID: dl.Batch.ID, sink: dl.Sink}
	if _, exists := q.entries[key]; !exists && len(q.entries) >= q.cfg.MaxSize {
		return ErrDeadLetterQueueFull
	}
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	q.entries[key] = dl

	if q.cfg.OnEnqueue != nil {
		q.cfg.OnEnqueue(dl)
	}
	return nil
}

// List implements DeadLetterQueue.
func (q *InMemoryDeadLetters) List(_ context.Context, limit int) ([]*DeadLetter, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*DeadLetter, 0, len(q.entries))
	for _, dl := range q.entries {
		out = append(out, dl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FailedAt.Equal(out[j].FailedAt) {
			return out[i].Batch.ID < out[j].Batch.ID
		}
		return out[i].FailedAt.Before(out[j].FailedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Remove implements DeadLetterQueue.
func (q *InMemoryDeadLetters) Remove(_ context.Context, batchID, sink string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := deadLetterKey{batchID: batchID, sink: sink}
	if _, ok := q.entries[key]; !ok {
		return ErrNotFound
	}
	delete(q.entries, key)
	return nil
}

// Len implements DeadLetterQueue.
func (q *InMemoryDeadLetters) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
