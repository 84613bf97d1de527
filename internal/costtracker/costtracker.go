package costtracker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"tidytabs/internal/config"
	"tidytabs/internal/logging"
	"tidytabs/internal/models"
)

// CostEvent represents a single AI usage event and its cost.
type CostEvent struct {
	Operation    string // "generation" or "categorization"
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	AmountUSD    float64
	RequestID    string // taken from the context when empty
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
}

// UsageRecorder is the persistence the store-backed tracker writes to.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage *models.AIUsageLog) error
	TotalCost(ctx context.Context) (float64, error)
}

// New returns a tracker that discards every event.
func New() CostTracker {
	return &noopCostTracker{}
}

type noopCostTracker struct{}

func (n *noopCostTracker) RecordCost(ctx context.Context, event CostEvent) error { return nil }
func (n *noopCostTracker) TotalCost(ctx context.Context) (float64, error)        { return 0, nil }

// NewStoreTracker records events as AIUsageLog rows.
func NewStoreTracker(store UsageRecorder) CostTracker {
	if store == nil {
		return New()
	}
	return &storeTracker{store: store, now: time.Now}
}

type storeTracker struct {
	store UsageRecorder
	now   func() time.Time
}

func (s *storeTracker) RecordCost(ctx context.Context, event CostEvent) error {
	usage := &models.AIUsageLog{
		Timestamp:    s.now().UTC(),
		ProviderName: event.Provider,
		ServiceType:  event.Operation,
		ModelName:    event.Model,
		InputTokens:  event.InputTokens,
		OutputTokens: event.OutputTokens,
		Cost:         event.AmountUSD,
	}
	reqID := event.RequestID
	if reqID == "" {
		reqID = logging.RequestID(ctx)
	}
	if reqID != "" {
		usage.RequestID = &reqID
	}
	return s.store.RecordUsage(ctx, usage)
}

func (s *storeTracker) TotalCost(ctx context.Context) (float64, error) {
	return s.store.TotalCost(ctx)
}

// Price computes the USD cost of a call from per-token pricing for model.
// ok is false when no pricing is configured for the model.
func Price(pricing map[string]config.PricingInfo, model string, inputTokens, outputTokens int) (cost float64, ok bool) {
	info, ok := pricing[model]
	if !ok {
		return 0, false
	}
	return float64(inputTokens)*info.InputPerToken + float64(outputTokens)*info.OutputPerToken, true
}

// Record prices a completed call and hands it to tracker. Failures are
// logged; usage tracking never fails the caller.
func Record(ctx context.Context, tracker CostTracker, pricing map[string]config.PricingInfo, event CostEvent) {
	if tracker == nil || event.InputTokens+event.OutputTokens == 0 {
		return
	}
	cost, ok := Price(pricing, event.Model, event.InputTokens, event.OutputTokens)
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Recording %s usage with zero cost.", event.Model, event.Operation)
	}
	event.AmountUSD = cost

	entry := logging.FromContext(ctx)
	if err := tracker.RecordCost(ctx, event); err != nil {
		entry.Errorf("Failed to record AI usage log for %s: %v", event.Operation, err)
		return
	}
	entry.Debugf("Recorded AI usage: Provider=%s, Service=%s, Model=%s, InputTokens=%d, OutputTokens=%d, Cost=%.8f",
		event.Provider, event.Operation, event.Model, event.InputTokens, event.OutputTokens, event.AmountUSD)
}
