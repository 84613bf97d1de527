package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"tidytabs/internal/config"
	"tidytabs/internal/costtracker"
	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

// GeminiProvider implements CompletionService using the Google Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string // e.g. "gemini-1.5-flash"
	temperature float32

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewGeminiProvider creates a new Gemini completion provider. A missing API
// key yields a disabled provider; a client that cannot be built is an error.
func NewGeminiProvider(ctx context.Context, apiKey, model string, temperature float32, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY") // Fallback to env var
	}
	p := &GeminiProvider{model: model, temperature: temperature, costTracker: tracker, pricing: pricing}
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini provider will be disabled.")
		return p, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client

	log.Infof("Gemini provider initialized with model %s", model)
	return p, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return "gemini" }

// ModelName returns the specific model identifier.
func (p *GeminiProvider) ModelName() string { return p.model }

// GenerateChatCompletion replays all but the last message as chat history
// and sends the last one. System messages become the system instruction.
func (p *GeminiProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("Gemini provider is not initialized (missing API key): %w", models.ErrProviderDisabled)
	}

	system, history, last := splitGeminiMessages(messages)
	if last == "" {
		return "", fmt.Errorf("%w: no user message to send", models.ErrValidation)
	}

	gm := p.client.GenerativeModel(p.model)
	gm.SetTemperature(p.temperature)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("%w: Gemini chat completion: %w", models.ErrExternalCall, err)
	}

	if resp.UsageMetadata != nil {
		costtracker.Record(ctx, p.costTracker, p.pricing, costtracker.CostEvent{
			Operation:    models.ServiceTypeGeneration,
			Provider:     p.Name(),
			Model:        p.model,
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		})
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: Gemini returned no text", models.ErrExternalCall)
	}
	return text, nil
}

// splitGeminiMessages maps chat messages onto Gemini's system instruction,
// history and final user turn.
func splitGeminiMessages(messages []ChatMessage) (system string, history []*genai.Content, last string) {
	var sys []string
	var turns []ChatMessage
	for _, m := range messages {
		if m.Role == ChatMessageRoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	system = strings.Join(sys, "\n\n")
	if len(turns) == 0 {
		return system, nil, ""
	}
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == ChatMessageRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, turns[len(turns)-1].Content
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// Status returns the operational status of the provider.
func (p *GeminiProvider) Status() store.ProviderStatus {
	if p.client == nil {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

var _ CompletionService = (*GeminiProvider)(nil)
