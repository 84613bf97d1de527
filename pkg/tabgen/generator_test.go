package tabgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tidytabs/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedCompleter answers by prompt kind, recognised from the default templates.
type scriptedCompleter struct {
	mu       sync.Mutex
	queries  string
	organize string
	direct   string
	err      error
	prompts  []string
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	switch {
	case strings.Contains(prompt, "JSON array of query strings"):
		return s.queries, nil
	case strings.Contains(prompt, "real search results"):
		return s.organize, nil
	default:
		return s.direct, nil
	}
}

// mockSearcher returns canned hits per query and records what was asked.
type mockSearcher struct {
	mu      sync.Mutex
	hits    map[string][]models.SearchResult
	fail    map[string]bool
	delay   map[string]time.Duration
	queries []string
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	d := m.delay[query]
	fail := m.fail[query]
	hits := m.hits[query]
	m.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("serpapi 500")
	}
	return hits, nil
}

// panickingSearcher blows up on one query and answers the rest from inner.
type panickingSearcher struct {
	inner *mockSearcher
	bad   string
}

func (p *panickingSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if query == p.bad {
		panic("searcher bug")
	}
	return p.inner.Search(ctx, query)
}

func hit(title, url string) models.SearchResult {
	return models.SearchResult{Title: title, URL: url, Snippet: "about " + title}
}

func TestGenerate_Direct(t *testing.T) {
	c := &scriptedCompleter{
		direct: "```json\n{\"group_name\": \"Learn Rust\", \"tabs\": [{\"title\": \"Book\", \"url\": \"doc.rust-lang.org/book\"}]}\n```",
	}
	g := NewGenerator(c, WithMode(ModeDirect))
	assert.Equal(t, ModeDirect, g.Mode())

	res := g.Generate(context.Background(), "learn Rust")
	require.False(t, res.Fallback, "reason: %v", res.Reason)
	assert.Equal(t, "Learn Rust", res.Group.GroupName)
	require.Len(t, res.Group.Tabs, 1)
	assert.Equal(t, "https://doc.rust-lang.org/book", res.Group.Tabs[0].URL)
	assert.Len(t, c.prompts, 1)
}

func TestGenerate_DirectFallbacks(t *testing.T) {
	tests := []struct {
		name string
		c    *scriptedCompleter
		want error
	}{
		{"provider error", &scriptedCompleter{err: errors.New("quota")}, models.ErrExternalCall},
		{"no json", &scriptedCompleter{direct: "Sorry, I can't do that."}, models.ErrExtraction},
		{"no valid tabs", &scriptedCompleter{direct: `{"group_name": "x", "tabs": []}`}, models.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := NewGenerator(tc.c, WithMode(ModeDirect)).Generate(context.Background(), "learn Rust")
			assert.True(t, res.Fallback)
			assert.ErrorIs(t, res.Reason, tc.want)
			assert.Equal(t, Fallback("learn Rust"), res.Group)
		})
	}
}

func TestGenerate_NoCompleterOrPrompt(t *testing.T) {
	res := NewGenerator(nil).Generate(context.Background(), "learn Rust")
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Reason, models.ErrProviderDisabled)

	res = NewGenerator(&scriptedCompleter{}).Generate(context.Background(), "  ")
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Reason, models.ErrValidation)
}

func TestGenerate_GroundedWithoutSearcherRunsDirect(t *testing.T) {
	c := &scriptedCompleter{direct: `{"group_name": "D", "tabs": [{"title": "a", "url": "https://a.com"}]}`}
	g := NewGenerator(c, WithMode(ModeGrounded))
	assert.Equal(t, ModeDirect, g.Mode())
	res := g.Generate(context.Background(), "x")
	assert.False(t, res.Fallback)
	assert.Equal(t, "D", res.Group.GroupName)
}

func TestGenerate_Grounded(t *testing.T) {
	c := &scriptedCompleter{
		queries: `["rust book", "rust exercises", "rust social"]`,
		organize: `{"group_name": "Learn Rust", "tabs": [
			{"title": "The Book", "url": "https://doc.rust-lang.org/book/", "description": "Official"},
			{"title": "Invented", "url": "https://totally-made-up.dev", "description": "Not from results"},
			{"title": "Rustlings", "url": "https://github.com/rust-lang/rustlings", "description": "Exercises"}
		]}`,
	}
	s := &mockSearcher{
		hits: map[string][]models.SearchResult{
			"rust book": {
				hit("The Book", "https://doc.rust-lang.org/book/"),
				hit("Example", "https://example.com/rust"),
				hit("", "https://no-title.com"),
				hit("Fourth is beyond the per-query limit", "https://fourth.dev"),
			},
			"rust exercises": {hit("Rustlings", "https://github.com/rust-lang/rustlings")},
			"rust social":    {hit("Rust group", "https://www.facebook.com/groups/rust")},
		},
		delay: map[string]time.Duration{"rust book": 20 * time.Millisecond},
	}
	g := NewGenerator(c, WithSearcher(s), WithMode(ModeGrounded))
	assert.Equal(t, ModeGrounded, g.Mode())

	res := g.Generate(context.Background(), "learn Rust")
	require.False(t, res.Fallback, "reason: %v", res.Reason)
	assert.Equal(t, "Learn Rust", res.Group.GroupName)
	require.Len(t, res.Group.Tabs, 2)
	assert.Equal(t, "https://doc.rust-lang.org/book/", res.Group.Tabs[0].URL)
	assert.Equal(t, "https://github.com/rust-lang/rustlings", res.Group.Tabs[1].URL)

	assert.ElementsMatch(t, []string{"rust book", "rust exercises", "rust social"}, s.queries)

	// the organize prompt lists surviving results in query order, filtered
	require.Len(t, c.prompts, 2)
	organize := c.prompts[1]
	assert.Less(t, strings.Index(organize, "doc.rust-lang.org"), strings.Index(organize, "rustlings"))
	assert.NotContains(t, organize, "example.com")
	assert.NotContains(t, organize, "facebook.com")
	assert.NotContains(t, organize, "fourth.dev")
	assert.NotContains(t, organize, "no-title.com")
}

func TestGenerate_GroundedQueryPlanningFailureUsesDefaults(t *testing.T) {
	c := &scriptedCompleter{
		queries:  "no idea",
		organize: `{"group_name": "G", "tabs": [{"title": "Guide", "url": "https://guide.dev"}]}`,
	}
	s := &mockSearcher{hits: map[string][]models.SearchResult{
		"learn Rust guide": {hit("Guide", "https://guide.dev")},
	}}
	res := NewGenerator(c, WithSearcher(s)).Generate(context.Background(), "learn Rust")

	require.False(t, res.Fallback, "reason: %v", res.Reason)
	assert.ElementsMatch(t, DefaultQueries("learn Rust"), s.queries)
}

func TestGenerate_GroundedFailures(t *testing.T) {
	results := map[string][]models.SearchResult{
		"q1": {hit("One", "https://one.dev"), hit("Two", "https://two.dev")},
	}

	t.Run("all searches fail", func(t *testing.T) {
		c := &scriptedCompleter{queries: `["q1", "q2"]`}
		s := &mockSearcher{fail: map[string]bool{"q1": true, "q2": true}}
		res := NewGenerator(c, WithSearcher(s)).Generate(context.Background(), "learn Rust")
		assert.True(t, res.Fallback)
		assert.ErrorIs(t, res.Reason, models.ErrExternalCall)
		assert.Equal(t, Fallback("learn Rust"), res.Group)
	})

	t.Run("one search fails, others used", func(t *testing.T) {
		c := &scriptedCompleter{
			queries:  `["q1", "q2"]`,
			organize: `{"group_name": "G", "tabs": [{"title": "One", "url": "https://one.dev"}]}`,
		}
		s := &mockSearcher{hits: results, fail: map[string]bool{"q2": true}}
		res := NewGenerator(c, WithSearcher(s)).Generate(context.Background(), "learn Rust")
		assert.False(t, res.Fallback)
	})

	t.Run("only invented urls", func(t *testing.T) {
		c := &scriptedCompleter{
			queries:  `["q1"]`,
			organize: `{"group_name": "G", "tabs": [{"title": "Fake", "url": "https://fake.dev"}]}`,
		}
		s := &mockSearcher{hits: results}
		res := NewGenerator(c, WithSearcher(s)).Generate(context.Background(), "learn Rust")
		assert.True(t, res.Fallback)
		assert.ErrorIs(t, res.Reason, models.ErrValidation)
		assert.Equal(t, "Search: learn Rust", res.Group.GroupName)
	})

	t.Run("search results tier when enabled", func(t *testing.T) {
		c := &scriptedCompleter{queries: `["q1"]`, organize: "garbage"}
		s := &mockSearcher{hits: results}
		res := NewGenerator(c, WithSearcher(s), WithSearchFallback(true)).Generate(context.Background(), "learn Rust")
		assert.True(t, res.Fallback)
		assert.ErrorIs(t, res.Reason, models.ErrExtraction)
		assert.Equal(t, "Research: learn Rust", res.Group.GroupName)
		require.Len(t, res.Group.Tabs, 2)
		assert.Equal(t, "https://one.dev", res.Group.Tabs[0].URL)
	})
}

func TestGenerate_ResultsPerQuery(t *testing.T) {
	var hits []models.SearchResult
	for i := 0; i < 5; i++ {
		hits = append(hits, hit(fmt.Sprintf("R%d", i), fmt.Sprintf("https://r%d.dev", i)))
	}
	c := &scriptedCompleter{queries: `["q"]`, organize: "nothing"}
	s := &mockSearcher{hits: map[string][]models.SearchResult{"q": hits}}

	res := NewGenerator(c, WithSearcher(s), WithResultsPerQuery(1), WithSearchFallback(true)).Generate(context.Background(), "x")
	require.True(t, res.Fallback)
	require.Len(t, res.Group.Tabs, 1)
	assert.Equal(t, "https://r0.dev", res.Group.Tabs[0].URL)
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &scriptedCompleter{queries: `["slow"]`, organize: "{}"}
	s := &mockSearcher{delay: map[string]time.Duration{"slow": time.Second}}

	cancel()
	res := NewGenerator(c, WithSearcher(s)).Generate(ctx, "learn Rust")
	assert.True(t, res.Fallback)
	assert.Equal(t, Fallback("learn Rust"), res.Group)
}

func TestResult_String(t *testing.T) {
	ok := Result{Group: models.TabGroup{GroupName: "G", Tabs: make([]models.TabEntry, 2)}}
	assert.Equal(t, `group "G" with 2 tabs`, ok.String())

	fb := fallbackResult("x", models.ErrExtraction)
	assert.Contains(t, fb.String(), `fallback group "Search: x"`)
}

func TestGenerate_GroundedSearcherPanicSkipsQuery(t *testing.T) {
	c := &scriptedCompleter{
		queries:  `["good", "bad"]`,
		organize: `{"group_name": "G", "tabs": [{"title": "Good", "url": "https://good.dev"}]}`,
	}
	s := &panickingSearcher{
		inner: &mockSearcher{hits: map[string][]models.SearchResult{"good": {hit("Good", "https://good.dev")}}},
		bad:   "bad",
	}

	var res Result
	require.NotPanics(t, func() {
		res = NewGenerator(c, WithSearcher(s), WithMode(ModeGrounded)).Generate(context.Background(), "x")
	})
	require.False(t, res.Fallback, "reason: %v", res.Reason)
	require.Len(t, res.Group.Tabs, 1)
	assert.Equal(t, "https://good.dev", res.Group.Tabs[0].URL)

	// every query panicking leaves no results and falls back
	s.bad = "good"
	c.queries = `["good"]`
	res = NewGenerator(c, WithSearcher(s), WithMode(ModeGrounded)).Generate(context.Background(), "x")
	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Reason, models.ErrExternalCall)
}
