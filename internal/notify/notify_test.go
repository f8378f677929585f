package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func hedgeEvent(kind domain.HedgeEventKind) domain.HedgeEvent {
	return domain.HedgeEvent{
		ID:        "ev-1",
		Kind:      kind,
		MarketID:  "0xmarket",
		TokenID:   "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		AmountUSD: 12.5,
		Price:     0.42,
		Reason:    "loss 31.0%",
	}
}

func TestFormat(t *testing.T) {
	title, msg := Format(hedgeEvent(domain.EventHedgePlaced))
	assert.Equal(t, "Hedge placed", title)
	assert.Equal(t, "market 0xmarket\ntoken 713210…2563\namount $12.50 @ 0.420\nreason: loss 31.0%", msg)

	ev := hedgeEvent(domain.EventFundsFreed)
	ev.Simulated = true
	ev.Price = 0
	title, msg = Format(ev)
	assert.Equal(t, "[dry run] Funds freed", title)
	assert.Contains(t, msg, "amount $12.50\n")
}

func TestNotifier_FilterAndFailures(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, ok}, []string{"hedge_placed", " hedge_exited "}, quiet)

	err := n.Notify(context.Background(), hedgeEvent(domain.EventHedgePlaced))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, []string{"Hedge placed"}, ok.sent(), "a failing sender does not block the rest")

	require.NoError(t, n.Notify(context.Background(), hedgeEvent(domain.EventFundsFreed)))
	assert.Len(t, ok.sent(), 1)
	assert.True(t, n.Wants(domain.EventHedgeExited))
}

func TestNotifier_NilIsDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), hedgeEvent(domain.EventHedgePlaced)))
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN123/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN123", "-100")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), "Hedge placed", "body"))
	assert.Equal(t, "-100", got["chat_id"])
	assert.Equal(t, "Hedge placed\nbody", got["text"])
}

func TestTelegramSender_ErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewTelegramSender("SECRET", "1")
	s.apiBase = srv.URL
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Title", "msg"))
	assert.Equal(t, "**Title**\nmsg", got["content"])
}

type memJournal struct {
	mu     sync.Mutex
	events []domain.HedgeEvent
	err    error
	block  chan struct{}
}

func (j *memJournal) Record(ctx context.Context, ev domain.HedgeEvent) error {
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return j.err
}

func (j *memJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

func TestSink_FansOut(t *testing.T) {
	sender := &recordingSender{name: "rec"}
	journal := &memJournal{}
	s := NewSink(NewNotifier([]Sender{sender}, nil, quiet), journal, SinkConfig{}, quiet)

	s.Publish(context.Background(), hedgeEvent(domain.EventHedgePlaced))
	s.Publish(context.Background(), hedgeEvent(domain.EventPositionSold))
	s.Close()

	assert.Equal(t, 2, journal.count())
	assert.ElementsMatch(t, []string{"Hedge placed", "Position sold"}, sender.sent())
}

func TestSink_FailuresAreSwallowed(t *testing.T) {
	journal := &memJournal{err: errors.New("db down")}
	sender := &recordingSender{name: "rec", err: errors.New("chat down")}
	s := NewSink(NewNotifier([]Sender{sender}, nil, quiet), journal, SinkConfig{}, quiet)

	assert.NotPanics(t, func() {
		s.Publish(context.Background(), hedgeEvent(domain.EventHedgePlaced))
		s.Close()
	})
	assert.Equal(t, 1, journal.count())
	assert.Len(t, sender.sent(), 1, "notifier still runs after a journal failure")
}

func TestSink_DropsWhenBacklogFull(t *testing.T) {
	journal := &memJournal{block: make(chan struct{})}
	s := NewSink(nil, journal, SinkConfig{MaxInFlight: 1, Timeout: time.Second}, quiet)

	s.Publish(context.Background(), hedgeEvent(domain.EventHedgePlaced))
	s.Publish(context.Background(), hedgeEvent(domain.EventHedgePlaced))
	close(journal.block)
	s.Close()

	assert.Equal(t, 1, journal.count())
}

func TestSink_CancelledCallerStillDelivers(t *testing.T) {
	journal := &memJournal{}
	s := NewSink(nil, journal, SinkConfig{}, quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Publish(ctx, hedgeEvent(domain.EventHedgeExited))
	s.Close()
	assert.Equal(t, 1, journal.count())
}
