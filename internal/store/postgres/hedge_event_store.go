package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

const hedgeEventColumns = `id, kind, market_id, token_id, amount_usd, price, reason, simulated, occurred_at`

// HedgeEventStore implements domain.HedgeEventStore. Rows are only ever
// appended or removed by age.
type HedgeEventStore struct {
	pool *pgxpool.Pool
}

func NewHedgeEventStore(pool *pgxpool.Pool) *HedgeEventStore {
	return &HedgeEventStore{pool: pool}
}

// Record inserts ev. Re-recording the same ID is a no-op.
func (s *HedgeEventStore) Record(ctx context.Context, ev domain.HedgeEvent) error {
	const q = `INSERT INTO hedge_events (` + hedgeEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q,
		ev.ID, string(ev.Kind), ev.MarketID, ev.TokenID,
		ev.AmountUSD, ev.Price, ev.Reason, ev.Simulated, ev.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record hedge event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns events newest first.
func (s *HedgeEventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.HedgeEvent, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.Since != nil {
		where = append(where, "occurred_at >= "+arg(*opts.Since))
	}
	if opts.Until != nil {
		where = append(where, "occurred_at <= "+arg(*opts.Until))
	}

	q := `SELECT ` + hedgeEventColumns + ` FROM hedge_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY occurred_at DESC, id"
	if opts.Limit > 0 {
		q += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		q += " OFFSET " + arg(opts.Offset)
	}
	return s.query(ctx, "list", q, args...)
}

// ListBefore returns up to limit events older than before, oldest first,
// so an archiver can page forward through them.
func (s *HedgeEventStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.HedgeEvent, error) {
	const q = `SELECT ` + hedgeEventColumns + ` FROM hedge_events
		WHERE occurred_at < $1
		ORDER BY occurred_at ASC, id
		LIMIT $2`
	return s.query(ctx, "list before", q, before.UTC(), limit)
}

func (s *HedgeEventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM hedge_events WHERE occurred_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: delete hedge events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *HedgeEventStore) query(ctx context.Context, op, q string, args ...any) ([]domain.HedgeEvent, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s hedge events: %w", op, err)
	}
	events, err := pgx.CollectRows(rows, scanHedgeEvent)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s hedge events: %w", op, err)
	}
	return events, nil
}

func scanHedgeEvent(row pgx.CollectableRow) (domain.HedgeEvent, error) {
	var (
		ev   domain.HedgeEvent
		kind string
	)
	err := row.Scan(&ev.ID, &kind, &ev.MarketID, &ev.TokenID,
		&ev.AmountUSD, &ev.Price, &ev.Reason, &ev.Simulated, &ev.At)
	ev.Kind = domain.HedgeEventKind(kind)
	return ev, err
}

var _ domain.HedgeEventStore = (*HedgeEventStore)(nil)
