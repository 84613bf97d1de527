package models

import (
	"time"
)

// OtherCategory is the overflow bucket. Every title that cannot be placed
// with confidence ends up here, and it is never suppressed.
const OtherCategory = "Other"

// ApprovedCategories is the category vocabulary shared by the local model
// and the LLM categorizer prompt.
var ApprovedCategories = []string{
	"Work", "Research", "Entertainment", "Education", "Shopping",
	"Social Media", "News", "Email", "Documentation", "Productivity",
	"Finance", "Travel", "Technology", "Weather", "Health", "Food",
	"New Tabs",
}

// ClassificationResult maps a category to the titles placed in it, in input order.
type ClassificationResult map[string][]string

// Add appends title to the bucket for category.
func (r ClassificationResult) Add(category, title string) {
	r[category] = append(r[category], title)
}

// Len returns the total number of titles across all buckets.
func (r ClassificationResult) Len() int {
	n := 0
	for _, titles := range r {
		n += len(titles)
	}
	return n
}

// Decision records how a single title was categorized.
type Decision struct {
	Title      string
	Category   string
	Confidence float64
	Source     string // one of the DecisionSource* constants
}

// ScoredTitle is a title with the confidence that placed it in its bucket.
type ScoredTitle struct {
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// TabEntry is a single browser tab in a generated group.
type TabEntry struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// TabGroup is a named, ordered set of tabs.
type TabGroup struct {
	GroupName string     `json:"group_name"`
	Tabs      []TabEntry `json:"tabs"`
}

// SearchResult is one organic hit returned by the search provider.
type SearchResult struct {
	Query   string `json:"query"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// AIUsageLog represents a record of AI API usage for cost tracking.
type AIUsageLog struct {
	ID           int64     `db:"id" json:"id"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	ProviderName string    `db:"provider_name" json:"provider_name"`
	ServiceType  string    `db:"service_type" json:"service_type"` // e.g. "generation", "categorization"
	ModelName    string    `db:"model_name" json:"model_name"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Cost         float64   `db:"cost" json:"cost"`
	RequestID    *string   `db:"request_id" json:"request_id,omitempty"` // nullable
}
