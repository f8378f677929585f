package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// BookFetcher reads a full order book.
type BookFetcher interface {
	GetBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error)
}

// BookService reduces books to top-of-book quotes. A book older than maxAge
// is reported empty.
type BookService struct {
	books  BookFetcher
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewBookService(books BookFetcher, maxAge time.Duration, logger *slog.Logger) *BookService {
	return &BookService{
		books:  books,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger.With(slog.String("component", "book_service")),
	}
}

func (s *BookService) Quote(ctx context.Context, tokenID string) (domain.Quote, error) {
	snap, err := s.books.GetBook(ctx, tokenID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("book_service: %w", err)
	}
	q := snap.Quote()
	q.TokenID = tokenID
	if s.maxAge > 0 && !q.Timestamp.IsZero() && s.now().Sub(q.Timestamp) > s.maxAge {
		s.logger.WarnContext(ctx, "book_service: stale book ignored",
			slog.String("token", tokenID),
			slog.Time("book_time", q.Timestamp),
		)
		return domain.Quote{TokenID: tokenID, Timestamp: q.Timestamp}, nil
	}
	return q, nil
}
