package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// HedgeEventStore is the append-only journal of engine actions. The engine
// never reads it back; it exists for operators and archival.
type HedgeEventStore interface {
	Record(ctx context.Context, ev HedgeEvent) error
	List(ctx context.Context, opts ListOpts) ([]HedgeEvent, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]HedgeEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
