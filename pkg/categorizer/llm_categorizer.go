package categorizer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"tidytabs/internal/config"
	"tidytabs/internal/costtracker"
	"tidytabs/internal/models"
)

//go:embed prompts/categorize.txt
var DefaultPrompt string

const newTabTitle = "new tab"
const newTabsCategory = "New Tabs"

var (
	fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	outerObject  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ChatCompletionCreator is the slice of the OpenAI client the categorizer uses.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMCategorizer implements TitleCategorizer
// relies on an LLM/completion API
type LLMCategorizer struct {
	client         ChatCompletionCreator
	promptTemplate string
	model          string
	temperature    float32

	// Dependencies for cost tracking
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewLLMCategorizer creates a new categorizer using an OpenAI-compatible client.
// An empty prompt selects DefaultPrompt; costTracker and pricing may be nil.
func NewLLMCategorizer(client ChatCompletionCreator, model, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *LLMCategorizer {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &LLMCategorizer{
		client:         client,
		model:          model,
		promptTemplate: prompt,
		temperature:    0.4,
		costTracker:    costTracker,
		pricing:        pricing,
	}
}

// Categorize asks the model to group req.Titles. The returned result always
// holds every input title exactly once; whatever the model drops lands in
// "Other". Provider and parse failures are returned as errors.
func (c *LLMCategorizer) Categorize(ctx context.Context, req CategorizationRequest) (models.ClassificationResult, error) {
	if len(req.Titles) == 0 {
		return models.ClassificationResult{}, nil
	}
	if c.client == nil {
		return nil, fmt.Errorf("%w: LLM categorizer is not initialized with an OpenAI client", models.ErrExternalCall)
	}
	categories := req.Categories
	if len(categories) == 0 {
		categories = models.ApprovedCategories
	}

	prompt, err := c.buildPrompt(req.Titles, categories)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat completion failed: %v", models.ErrExternalCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned from OpenAI", models.ErrExternalCall)
	}

	costtracker.Record(ctx, c.costTracker, c.pricing, costtracker.CostEvent{
		Operation:    models.ServiceTypeCategorization,
		Provider:     "openai",
		Model:        c.model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	groups, err := parseGroups(content)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse LLM response as JSON: %v", models.ErrExtraction, err)
	}

	result := Reconcile(req.Titles, groups, categories)
	log.WithFields(log.Fields{
		"titles":     len(req.Titles),
		"categories": len(result),
		"model":      c.model,
	}).Debug("LLM categorization complete")
	return result, nil
}

func (c *LLMCategorizer) buildPrompt(titles, categories []string) (string, error) {
	titlesJSON, err := json.MarshalIndent(titles, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode titles: %w", err)
	}
	quoted := make([]string, len(categories))
	for i, cat := range categories {
		quoted[i] = fmt.Sprintf("%q", cat)
	}
	prompt := strings.ReplaceAll(c.promptTemplate, "{{CATEGORIES}}", strings.Join(quoted, ", "))
	prompt = strings.ReplaceAll(prompt, "{{TITLES}}", string(titlesJSON))
	return prompt, nil
}

// CategoryGroup is one category and its titles, as returned by the model.
type CategoryGroup struct {
	Category string
	Titles   []string
}

// parseGroups finds a JSON object in content and decodes it preserving key
// order. Values that are not string arrays are skipped.
func parseGroups(content string) ([]CategoryGroup, error) {
	candidates := []string{content}
	if m := fencedObject.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := outerObject.FindString(content); m != "" {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, cand := range candidates {
		groups, err := decodeOrderedGroups([]byte(cand))
		if err == nil {
			return groups, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func decodeOrderedGroups(data []byte) ([]CategoryGroup, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var groups []CategoryGroup
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		var titles []string
		if err := json.Unmarshal(raw, &titles); err != nil {
			log.WithField("category", key).Debug("Skipping non-list category in LLM response")
			continue
		}
		groups = append(groups, CategoryGroup{Category: key, Titles: titles})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return groups, nil
}

// Reconcile turns model groups into a total ClassificationResult over
// titles. Unapproved categories map to "Other", titles the model omitted
// go to "Other", titles it invented are dropped, and duplicate input
// titles keep their multiplicity. "New Tab" always lands in "New Tabs".
func Reconcile(titles []string, groups []CategoryGroup, categories []string) models.ClassificationResult {
	approved := make(map[string]string, len(categories))
	for _, cat := range categories {
		approved[strings.ToLower(cat)] = cat
	}

	queues := make(map[string][]string)
	for _, g := range groups {
		category, ok := approved[strings.ToLower(strings.TrimSpace(g.Category))]
		if !ok {
			category = models.OtherCategory
		}
		for _, t := range g.Titles {
			queues[t] = append(queues[t], category)
		}
	}

	result := make(models.ClassificationResult)
	for _, title := range titles {
		if strings.EqualFold(strings.TrimSpace(title), newTabTitle) {
			result.Add(newTabsCategory, title)
			continue
		}
		q := queues[title]
		if len(q) == 0 {
			result.Add(models.OtherCategory, title)
			continue
		}
		result.Add(q[0], title)
		queues[title] = q[1:]
	}
	return result
}
