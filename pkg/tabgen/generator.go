package tabgen

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tidytabs/internal/logging"
	"tidytabs/internal/models"
)

// Generation modes.
const (
	ModeDirect   = "direct"
	ModeGrounded = "grounded"
)

// DefaultResultsPerQuery is how many organic hits are kept per query.
const DefaultResultsPerQuery = 3

// Generator runs the generation pipeline. It is safe for concurrent use.
type Generator struct {
	completer       Completer
	searcher        Searcher
	planner         *Planner
	filter          *URLFilter
	strategies      []Strategy
	mode            string
	resultsPerQuery int
	searchFallback  bool
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSearcher enables grounded generation.
func WithSearcher(s Searcher) GeneratorOption {
	return func(g *Generator) { g.searcher = s }
}

// WithMode selects ModeDirect or ModeGrounded.
func WithMode(mode string) GeneratorOption {
	return func(g *Generator) { g.mode = mode }
}

// WithPlanner replaces the default prompt planner.
func WithPlanner(p *Planner) GeneratorOption {
	return func(g *Generator) { g.planner = p }
}

// WithURLFilter replaces the default unwanted-domain filter.
func WithURLFilter(f *URLFilter) GeneratorOption {
	return func(g *Generator) { g.filter = f }
}

// WithResultsPerQuery sets how many hits per query are considered.
func WithResultsPerQuery(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.resultsPerQuery = n
		}
	}
}

// WithSearchFallback turns raw search results into a "Research:" group when
// organizing them fails, before resorting to the fixed fallback.
func WithSearchFallback(enabled bool) GeneratorOption {
	return func(g *Generator) { g.searchFallback = enabled }
}

// NewGenerator builds a Generator around completer. Without a Searcher the
// generator always runs in direct mode.
func NewGenerator(completer Completer, opts ...GeneratorOption) *Generator {
	g := &Generator{
		completer:       completer,
		planner:         NewPlanner(Prompts{}, MaxQueries),
		filter:          NewURLFilter(DefaultUnwantedDomains...),
		strategies:      DefaultStrategies,
		mode:            ModeGrounded,
		resultsPerQuery: DefaultResultsPerQuery,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode reports the mode Generate will run in.
func (g *Generator) Mode() string {
	if g.mode == ModeGrounded && g.searcher != nil {
		return ModeGrounded
	}
	return ModeDirect
}

// Generate always returns a usable group. Any failure along the way yields
// the fallback group, with the cause in Result.Reason.
func (g *Generator) Generate(ctx context.Context, prompt string) Result {
	entry := logging.FromContext(ctx).WithField("prompt", prompt)
	if strings.TrimSpace(prompt) == "" {
		return fallbackResult(prompt, fmt.Errorf("%w: empty prompt", models.ErrValidation))
	}
	if g.completer == nil {
		return fallbackResult(prompt, models.ErrProviderDisabled)
	}

	var res Result
	if g.Mode() == ModeGrounded {
		res = g.grounded(ctx, prompt)
	} else {
		res = g.direct(ctx, prompt)
	}

	if res.Fallback {
		entry.WithError(res.Reason).WithField("group", res.Group.GroupName).Warn("Tab generation fell back")
	} else {
		entry.WithFields(log.Fields{"group": res.Group.GroupName, "tabs": len(res.Group.Tabs)}).Info("Tab group generated")
	}
	return res
}

func (g *Generator) direct(ctx context.Context, prompt string) Result {
	text, err := g.completer.Complete(ctx, g.planner.DirectPrompt(prompt))
	if err != nil {
		return fallbackResult(prompt, fmt.Errorf("%w: generation: %v", models.ErrExternalCall, err))
	}
	group, err := g.parse(text, nil)
	if err != nil {
		return fallbackResult(prompt, err)
	}
	return Result{Group: group}
}

func (g *Generator) grounded(ctx context.Context, prompt string) Result {
	queries := g.planQueries(ctx, prompt)
	results := g.search(ctx, queries)
	if len(results) == 0 {
		return fallbackResult(prompt, fmt.Errorf("%w: no usable search results for %d queries", models.ErrExternalCall, len(queries)))
	}

	text, err := g.completer.Complete(ctx, g.planner.OrganizePrompt(prompt, results))
	if err != nil {
		return g.resultsFallback(prompt, results, fmt.Errorf("%w: organize: %v", models.ErrExternalCall, err))
	}
	group, err := g.parse(text, NewProvenance(results))
	if err != nil {
		return g.resultsFallback(prompt, results, err)
	}
	return Result{Group: group}
}

func (g *Generator) parse(text string, provenance Provenance) (models.TabGroup, error) {
	candidate, ok := ExtractWith(g.strategies, text)
	if !ok {
		return models.TabGroup{}, models.ErrExtraction
	}
	return Validate(candidate, provenance)
}

func (g *Generator) planQueries(ctx context.Context, prompt string) []string {
	text, err := g.completer.Complete(ctx, g.planner.QueriesPrompt(prompt))
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Query planning failed, using default queries")
		text = ""
	}
	return g.planner.ParseQueries(text, prompt)
}

// search runs every query concurrently. Failed queries are skipped; the
// rest keep query order.
func (g *Generator) search(ctx context.Context, queries []string) []models.SearchResult {
	slots := make([][]models.SearchResult, len(queries))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		eg.Go(func() error {
			hits, err := g.searchOne(egCtx, q)
			if err != nil {
				logging.FromContext(ctx).WithError(err).WithField("query", q).Warn("Search failed for query")
				return nil
			}
			slots[i] = g.keep(q, hits)
			return nil
		})
	}
	_ = eg.Wait()

	var out []models.SearchResult
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

// searchOne reports a panicking Searcher as a failed query.
func (g *Generator) searchOne(ctx context.Context, query string) (hits []models.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits = nil
			err = fmt.Errorf("%w: search panicked: %v", models.ErrExternalCall, r)
		}
	}()
	return g.searcher.Search(ctx, query)
}

// keep takes the top hits for a query and drops unusable URLs.
func (g *Generator) keep(query string, hits []models.SearchResult) []models.SearchResult {
	if len(hits) > g.resultsPerQuery {
		hits = hits[:g.resultsPerQuery]
	}
	var out []models.SearchResult
	for _, h := range hits {
		if h.URL == "" || h.Title == "" || !g.filter.Allow(h.URL) {
			continue
		}
		h.Query = query
		out = append(out, h)
	}
	return out
}

func (g *Generator) resultsFallback(prompt string, results []models.SearchResult, reason error) Result {
	if g.searchFallback {
		if group, ok := FromSearchResults(prompt, results); ok {
			return Result{Group: group, Fallback: true, Reason: reason}
		}
	}
	return fallbackResult(prompt, reason)
}
