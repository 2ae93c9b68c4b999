package transition

import (
	"context"

	"github.com/mkawato/shotline/internal/model"
	"github.com/mkawato/shotline/internal/store"
)

// BatchBuilder accumulates record mutations across the whole run. It is
// append-only and flushed exactly once by the run loop.
type BatchBuilder struct {
	ops []model.BatchOperation
}

func (b *BatchBuilder) Add(ops ...model.BatchOperation) {
	b.ops = append(b.ops, ops...)
}

func (b *BatchBuilder) Len() int { return len(b.ops) }

// Operations returns the queued mutations in insertion order.
func (b *BatchBuilder) Operations() []model.BatchOperation { return b.ops }

// Flush submits the accumulated operations in one request. An empty
// builder flushes to nothing. Failures are not retried: a partially
// applied batch must not be replayed.
func (b *BatchBuilder) Flush(ctx context.Context, s store.Store) error {
	if len(b.ops) == 0 {
		return nil
	}
	if _, err := s.Batch(ctx, b.ops); err != nil {
		return Wrap(KindStoreUnavailable, err, "Batch commit failed")
	}
	return nil
}
