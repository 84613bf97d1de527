package tabgen

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"tidytabs/internal/models"
)

// MaxQueries caps the number of search queries per request.
const MaxQueries = 6

//go:embed prompts/direct.txt
var defaultDirectPrompt string

//go:embed prompts/queries.txt
var defaultQueriesPrompt string

//go:embed prompts/organize.txt
var defaultOrganizePrompt string

var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// Prompts holds the templates for each generation call. {{PROMPT}} is the
// user's request; {{RESULTS}} the formatted search results.
type Prompts struct {
	Direct   string
	Queries  string
	Organize string
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Direct:   defaultDirectPrompt,
		Queries:  defaultQueriesPrompt,
		Organize: defaultOrganizePrompt,
	}
}

// Planner renders prompts and interprets the query-planning reply.
type Planner struct {
	prompts    Prompts
	maxQueries int
}

// NewPlanner fills empty templates from the defaults. maxQueries outside
// 1..MaxQueries is clamped.
func NewPlanner(p Prompts, maxQueries int) *Planner {
	d := DefaultPrompts()
	if strings.TrimSpace(p.Direct) == "" {
		p.Direct = d.Direct
	}
	if strings.TrimSpace(p.Queries) == "" {
		p.Queries = d.Queries
	}
	if strings.TrimSpace(p.Organize) == "" {
		p.Organize = d.Organize
	}
	if maxQueries < 1 || maxQueries > MaxQueries {
		maxQueries = MaxQueries
	}
	return &Planner{prompts: p, maxQueries: maxQueries}
}

// DirectPrompt asks for a TabGroup in one call.
func (p *Planner) DirectPrompt(prompt string) string {
	return render(p.prompts.Direct, prompt, "")
}

// QueriesPrompt asks for a JSON array of search queries.
func (p *Planner) QueriesPrompt(prompt string) string {
	return render(p.prompts.Queries, prompt, "")
}

// OrganizePrompt asks the model to build a TabGroup from results only.
func (p *Planner) OrganizePrompt(prompt string, results []models.SearchResult) string {
	return render(p.prompts.Organize, prompt, FormatResults(results))
}

// ParseQueries reads the model's query list. Anything unusable yields
// DefaultQueries(prompt). The result is capped and free of blanks.
func (p *Planner) ParseQueries(text, prompt string) []string {
	queries := decodeQueries(text)
	if len(queries) == 0 {
		queries = DefaultQueries(prompt)
	}
	if len(queries) > p.maxQueries {
		queries = queries[:p.maxQueries]
	}
	return queries
}

// DefaultQueries are used when query planning fails.
func DefaultQueries(prompt string) []string {
	return []string{
		prompt,
		prompt + " guide",
		prompt + " reviews",
		"best " + prompt,
	}
}

// FormatResults renders results the way the organize prompt lists them.
func FormatResults(results []models.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Title: %s\nURL: %s\nDescription: %s\nFrom query: %s\n", r.Title, r.URL, r.Snippet, r.Query)
	}
	return strings.Join(blocks, "\n---\n")
}

func decodeQueries(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		m := arrayPattern.FindString(text)
		if m == "" || json.Unmarshal([]byte(m), &raw) != nil {
			return nil
		}
	}
	var out []string
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func render(template, prompt, results string) string {
	return strings.NewReplacer("{{PROMPT}}", prompt, "{{RESULTS}}", results).Replace(template)
}
