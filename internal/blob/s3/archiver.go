package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// DefaultBatchSize caps how many journal rows one archive run exports.
const DefaultBatchSize = 10000

// HedgeEventSource is the slice of the journal the archiver reads and prunes.
type HedgeEventSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.HedgeEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiverConfig tunes an archive run.
type ArchiverConfig struct {
	BatchSize int
	// Purge deletes exported rows from the journal after a successful upload.
	Purge bool
}

// Archiver exports old hedge events as JSONL objects.
type Archiver struct {
	writer domain.BlobWriter
	events HedgeEventSource
	cfg    ArchiverConfig
	logger *slog.Logger
}

func NewArchiver(writer domain.BlobWriter, events HedgeEventSource, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Archiver{
		writer: writer,
		events: events,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// jsonlEvent is the archived row layout.
type jsonlEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	MarketID  string    `json:"market_id"`
	TokenID   string    `json:"token_id"`
	AmountUSD float64   `json:"amount_usd"`
	Price     float64   `json:"price"`
	Reason    string    `json:"reason,omitempty"`
	Simulated bool      `json:"simulated,omitempty"`
	At        time.Time `json:"at"`
}

// ArchiveHedgeEvents uploads events older than before and returns how many
// were exported. When a run hits the batch cap, only rows strictly older
// than the last exported timestamp are purged; the rest go out next run.
func (a *Archiver) ArchiveHedgeEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before, a.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	rows := make([]jsonlEvent, len(events))
	for i, ev := range events {
		rows[i] = jsonlEvent{
			ID:        ev.ID,
			Kind:      string(ev.Kind),
			MarketID:  ev.MarketID,
			TokenID:   ev.TokenID,
			AmountUSD: ev.AmountUSD,
			Price:     ev.Price,
			Reason:    ev.Reason,
			Simulated: ev.Simulated,
			At:        ev.At.UTC(),
		}
	}
	body, err := encodeJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive encode: %w", err)
	}

	path := ArchivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(body), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}
	n := int64(len(events))
	a.logger.InfoContext(ctx, "archiver: hedge events exported",
		slog.String("path", path),
		slog.Int64("count", n),
	)

	if a.cfg.Purge {
		cutoff := before
		if len(events) == a.cfg.BatchSize {
			cutoff = events[len(events)-1].At
		}
		deleted, err := a.events.DeleteBefore(ctx, cutoff)
		if err != nil {
			return n, fmt.Errorf("s3blob: archive purge: %w", err)
		}
		a.logger.InfoContext(ctx, "archiver: journal pruned", slog.Int64("deleted", deleted))
	}
	return n, nil
}

// ArchivePath is the object key for a run with the given cutoff:
//
//	hedge-events/2026/03/01/1772346600.jsonl
func ArchivePath(before time.Time) string {
	t := before.UTC()
	return fmt.Sprintf("hedge-events/%s/%d.jsonl", t.Format("2006/01/02"), t.Unix())
}

func encodeJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
