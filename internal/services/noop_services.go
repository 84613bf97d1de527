package services

import (
	"context"

	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

// NoopCompletionService stands in when no generation provider is configured.
// Every call fails, which sends the generator straight to its fallback group.
type NoopCompletionService struct{}

func (s *NoopCompletionService) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	return "", models.ErrProviderDisabled
}

func (s *NoopCompletionService) Status() store.ProviderStatus { return store.ProviderStatusDisabled }
func (s *NoopCompletionService) Name() string                 { return "none" }
func (s *NoopCompletionService) ModelName() string            { return "" }

func NewNoopCompletionService() CompletionService {
	return &NoopCompletionService{}
}
