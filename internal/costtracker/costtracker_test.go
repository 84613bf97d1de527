package costtracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidytabs/internal/config"
	"tidytabs/internal/logging"
	"tidytabs/internal/models"
)

type mockRecorder struct {
	saved []*models.AIUsageLog
	err   error
}

func (m *mockRecorder) RecordUsage(ctx context.Context, usage *models.AIUsageLog) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, usage)
	return nil
}

func (m *mockRecorder) TotalCost(ctx context.Context) (float64, error) {
	var total float64
	for _, u := range m.saved {
		total += u.Cost
	}
	return total, nil
}

var testPricing = map[string]config.PricingInfo{
	"gpt-4o-mini": {InputPerToken: 0.001, OutputPerToken: 0.002},
}

func TestPrice(t *testing.T) {
	cost, ok := Price(testPricing, "gpt-4o-mini", 100, 50)
	require.True(t, ok)
	assert.InDelta(t, 0.2, cost, 1e-9)

	_, ok = Price(testPricing, "unknown", 1, 1)
	assert.False(t, ok)
}

func TestRecord_StoreTracker(t *testing.T) {
	rec := &mockRecorder{}
	tracker := NewStoreTracker(rec).(*storeTracker)
	tracker.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := logging.WithRequestID(context.Background(), "req-1")
	Record(ctx, tracker, testPricing, CostEvent{
		Operation:    models.ServiceTypeGeneration,
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		InputTokens:  100,
		OutputTokens: 50,
	})

	require.Len(t, rec.saved, 1)
	got := rec.saved[0]
	assert.Equal(t, "openai", got.ProviderName)
	assert.Equal(t, models.ServiceTypeGeneration, got.ServiceType)
	assert.Equal(t, 100, got.InputTokens)
	assert.InDelta(t, 0.2, got.Cost, 1e-9)
	require.NotNil(t, got.RequestID)
	assert.Equal(t, "req-1", *got.RequestID)
	assert.Equal(t, 2026, got.Timestamp.Year())

	total, err := tracker.TotalCost(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, total, 1e-9)
}

func TestRecord_SkipsAndSwallows(t *testing.T) {
	rec := &mockRecorder{}
	tracker := NewStoreTracker(rec)

	// no tokens, nothing recorded
	Record(context.Background(), tracker, testPricing, CostEvent{Model: "gpt-4o-mini"})
	assert.Empty(t, rec.saved)

	// unknown model is still recorded, at zero cost
	Record(context.Background(), tracker, testPricing, CostEvent{Model: "mystery", InputTokens: 3})
	require.Len(t, rec.saved, 1)
	assert.Zero(t, rec.saved[0].Cost)
	assert.Nil(t, rec.saved[0].RequestID)

	// store failure does not panic or propagate
	rec.err = errors.New("disk full")
	assert.NotPanics(t, func() {
		Record(context.Background(), tracker, testPricing, CostEvent{Model: "gpt-4o-mini", InputTokens: 1})
	})

	// nil tracker is a no-op
	assert.NotPanics(t, func() {
		Record(context.Background(), nil, testPricing, CostEvent{Model: "gpt-4o-mini", InputTokens: 1})
	})
}

func TestNoopTracker(t *testing.T) {
	tracker := New()
	assert.NoError(t, tracker.RecordCost(context.Background(), CostEvent{}))
	total, err := tracker.TotalCost(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.IsType(t, &noopCostTracker{}, NewStoreTracker(nil))
}
