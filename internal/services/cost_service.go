package services

import (
	"context"
	"fmt"

	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

// CostService provides methods for accessing AI usage cost data.
type CostService struct {
	store store.UsageStore
}

// NewCostService creates a new CostService.
func NewCostService(store store.UsageStore) *CostService {
	return &CostService{store: store}
}

// ListUsage retrieves a paginated list of AI usage logs.
func (s *CostService) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := s.store.ListUsage(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage logs from store: %w", err)
	}
	return logs, nil
}

// GetSummary retrieves the total cost and token usage summary.
func (s *CostService) GetSummary(ctx context.Context) (store.UsageSummary, error) {
	sum, err := s.store.GetUsageSummary(ctx)
	if err != nil {
		return store.UsageSummary{}, fmt.Errorf("failed to get usage summary from store: %w", err)
	}
	return sum, nil
}
