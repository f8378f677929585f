package hedging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

func TestSkipAggregator_Flush(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	limiter := rate.NewLimiter(rate.Every(time.Minute), 1)

	var agg SkipAggregator
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		agg.Add(id, domain.SkipCooldown)
	}
	agg.Add("b1", domain.SkipLossBelowTrig)
	agg.Add("a1", domain.SkipLossBelowTrig)

	assert.Equal(t, 8, agg.Len())
	assert.Equal(t, []domain.SkipReason{domain.SkipCooldown, domain.SkipLossBelowTrig}, agg.Reasons("a1"))

	agg.Flush(context.Background(), logger, limiter, 2)
	agg.Flush(context.Background(), logger, limiter, 2)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "second flush is rate limited")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "hedging: cycle skip summary", rec["msg"])
	assert.EqualValues(t, 8, rec["skipped"])
	assert.EqualValues(t, 2, rec["actions"])

	cooldown := rec[string(domain.SkipCooldown)].(map[string]any)
	assert.EqualValues(t, 6, cooldown["count"])
	assert.Equal(t, "a1,a2,a3,a4,a5", cooldown["sample"])
}

func TestSkipAggregator_EmptyIsSilent(t *testing.T) {
	var buf bytes.Buffer
	var agg SkipAggregator
	agg.Flush(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)), rate.NewLimiter(rate.Inf, 1), 0)
	assert.Zero(t, buf.Len())
}
