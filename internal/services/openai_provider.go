package services

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"tidytabs/internal/config"
	"tidytabs/internal/costtracker"
	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

// NewOpenAIClient builds a client for the OpenAI API or any compatible
// endpoint. It returns nil when no API key is available.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIProvider implements CompletionService using the OpenAI chat API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	operation   string // usage ledger service type

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewOpenAIProvider creates a new OpenAI completion provider. A missing API
// key yields a disabled provider rather than an error.
func NewOpenAIProvider(apiKey, baseURL, model string, temperature float32, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *OpenAIProvider {
	p := &OpenAIProvider{
		model:       model,
		temperature: temperature,
		operation:   models.ServiceTypeGeneration,
		costTracker: tracker,
		pricing:     pricing,
	}
	p.client = NewOpenAIClient(apiKey, baseURL)
	if p.client == nil {
		log.Warn("OpenAI API key not provided. OpenAI provider will be disabled.")
		return p
	}
	log.Infof("OpenAI provider initialized with model %s", model)
	return p
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

// ModelName returns the specific model identifier.
func (p *OpenAIProvider) ModelName() string { return p.model }

// GenerateChatCompletion sends messages and returns the first choice.
func (p *OpenAIProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("OpenAI provider is not initialized (missing API key): %w", models.ErrProviderDisabled)
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: OpenAI chat completion: %w", models.ErrExternalCall, err)
	}

	costtracker.Record(ctx, p.costTracker, p.pricing, costtracker.CostEvent{
		Operation:    p.operation,
		Provider:     p.Name(),
		Model:        p.model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: OpenAI returned no choices", models.ErrExternalCall)
	}
	return resp.Choices[0].Message.Content, nil
}

// Status returns the operational status of the provider.
func (p *OpenAIProvider) Status() store.ProviderStatus {
	if p.client == nil {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

var _ CompletionService = (*OpenAIProvider)(nil)
