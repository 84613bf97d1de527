package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidytabs/internal/app"
	"tidytabs/internal/costtracker"
	"tidytabs/internal/models"
	"tidytabs/internal/services"
	"tidytabs/internal/store/sqlite"
	"tidytabs/pkg/categorizer"
	"tidytabs/pkg/tabgen"
)

const artifactJSON = `{
  "vectorizer": {
    "vocabulary": {"netflix": 0, "movie": 1, "stock": 2, "market": 3, "golang": 4, "docs": 5},
    "idf": [1, 1, 1, 1, 1, 1],
    "ngram_range": [1, 1]
  },
  "model": {
    "type": "multinomial",
    "coef": [[5, 5, 0, 0, 0, 0], [0, 0, 5, 5, 0, 0], [0, 0, 0, 0, 5, 5]],
    "intercept": [0, 0, 0]
  },
  "labels": ["Entertainment", "Finance", "Technology"],
  "threshold": 0.5
}`

type fixedCompleter struct{ text string }

func (f fixedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.text, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T, completer tabgen.Completer) *app.App {
	t.Helper()
	artifact, err := categorizer.ParseArtifact([]byte(artifactJSON))
	require.NoError(t, err)
	classifier := categorizer.NewClassifier(artifact, categorizer.DefaultRuleSet())

	usage, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { usage.Close() })

	return &app.App{
		Classifier:            classifier,
		CategorizationService: services.NewCategorizationService(classifier, nil),
		CompletionService:     services.NewNoopCompletionService(),
		Generator:             tabgen.NewGenerator(completer, tabgen.WithMode(tabgen.ModeDirect)),
		UsageStore:            usage,
		CostTracker:           costtracker.NewStoreTracker(usage),
		CostService:           services.NewCostService(usage),
	}
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRootAndHealth(t *testing.T) {
	router := NewRouter(newTestApp(t, nil), RouterOptions{})

	w := do(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "TidyTabs backend is live"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["model_loaded"])
	assert.Equal(t, "disabled", health["generation"])
	assert.Equal(t, "disabled", health["search"])
	assert.Equal(t, "direct", health["generation_mode"])
}

func TestCategorizeLocal(t *testing.T) {
	router := NewRouter(newTestApp(t, nil), RouterOptions{})

	w := do(t, router, http.MethodPost, "/categorize_local", TitlesRequest{
		Titles: []string{"Netflix movie night", "Stock market today", "Degree Audit", "Untitled"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CategoriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ClassificationResult{
		"Entertainment":               {"Netflix movie night"},
		"Finance":                     {"Stock market today"},
		categorizer.EducationCategory: {"Degree Audit"},
		models.OtherCategory:          {"Untitled"},
	}, resp.Categories)
}

func TestCategorizeLocal_EmptyAndInvalid(t *testing.T) {
	router := NewRouter(newTestApp(t, nil), RouterOptions{})

	w := do(t, router, http.MethodPost, "/categorize_local", `{"titles": []}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories": {}}`, w.Body.String())

	w = do(t, router, http.MethodPost, "/categorize_local", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"bad_request"`)

	w = do(t, router, http.MethodPost, "/categorize_local", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	many := make([]string, MaxTitlesPerRequest+1)
	w = do(t, router, http.MethodPost, "/categorize_local", TitlesRequest{Titles: many})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategorizeLocalConfidence(t *testing.T) {
	router := NewRouter(newTestApp(t, nil), RouterOptions{})

	w := do(t, router, http.MethodPost, "/categorize_local/confidence", `{"titles": ["Netflix movie night", "Untitled"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScoredCategoriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0.5, resp.Threshold)
	require.Len(t, resp.Categories["Entertainment"], 1)
	assert.Greater(t, resp.Categories["Entertainment"][0].Confidence, 0.9)
	require.Len(t, resp.Categories[models.OtherCategory], 1)
	assert.InDelta(t, 1.0/3, resp.Categories[models.OtherCategory][0].Confidence, 1e-9)

	// a threshold of 0 lets the tied prediction through
	w = do(t, router, http.MethodPost, "/categorize_local/confidence", `{"titles": ["Untitled"], "threshold": 0}`)
	require.Equal(t, http.StatusOK, w.Code)
	var tied ScoredCategoriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tied))
	assert.Equal(t, 0.0, tied.Threshold)
	assert.Empty(t, tied.Categories[models.OtherCategory])
	require.Len(t, tied.Categories["Entertainment"], 1)
	assert.Equal(t, "Untitled", tied.Categories["Entertainment"][0].Title)

	w = do(t, router, http.MethodPost, "/categorize_local/confidence", `{"titles": ["x"], "threshold": 1.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategorize_FallsBackToLocal(t *testing.T) {
	router := NewRouter(newTestApp(t, nil), RouterOptions{})
	w := do(t, router, http.MethodPost, "/categorize", `{"titles": ["Stock market today"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories": {"Finance": ["Stock market today"]}}`, w.Body.String())
}

func TestGenerateTabs(t *testing.T) {
	t.Run("model output", func(t *testing.T) {
		c := fixedCompleter{text: `{"group_name": "Learn Rust", "tabs": [{"title": "Book", "url": "doc.rust-lang.org/book"}]}`}
		router := NewRouter(newTestApp(t, c), RouterOptions{})

		w := do(t, router, http.MethodPost, "/generate_tabs", GenerateRequest{Prompt: "learn Rust"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(FallbackHeader))
		assert.JSONEq(t, `{"group_name": "Learn Rust", "tabs": [{"title": "Book", "url": "https://doc.rust-lang.org/book", "description": ""}]}`, w.Body.String())
	})

	t.Run("fallback", func(t *testing.T) {
		router := NewRouter(newTestApp(t, fixedCompleter{text: "no json here"}), RouterOptions{})

		w := do(t, router, http.MethodPost, "/generate_tabs", GenerateRequest{Prompt: "learn Rust"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "true", w.Header().Get(FallbackHeader))

		var group models.TabGroup
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
		assert.Equal(t, tabgen.Fallback("learn Rust"), group)
	})

	t.Run("missing prompt", func(t *testing.T) {
		router := NewRouter(newTestApp(t, nil), RouterOptions{})
		w := do(t, router, http.MethodPost, "/generate_tabs", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUsageEndpoints(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	costtracker.Record(ctx, a.CostTracker, nil, costtracker.CostEvent{
		Operation: models.ServiceTypeGeneration, Provider: "openai", Model: "gpt-4o-mini", InputTokens: 10, OutputTokens: 5,
	})
	router := NewRouter(a, RouterOptions{})

	w := do(t, router, http.MethodGet, "/usage?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []models.AIUsageLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "gpt-4o-mini", list.Data[0].ModelName)

	w = do(t, router, http.MethodGet, "/usage/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"calls":1`)

	w = do(t, router, http.MethodGet, "/usage?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.CostService = nil
	w = do(t, router, http.MethodGet, "/usage/summary", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMiddleware(t *testing.T) {
	t.Run("rate limit", func(t *testing.T) {
		router := NewRouter(newTestApp(t, nil), RouterOptions{RateLimit: 0.001, Burst: 1})
		w := do(t, router, http.MethodPost, "/categorize_local", `{"titles": []}`)
		assert.Equal(t, http.StatusOK, w.Code)
		w = do(t, router, http.MethodPost, "/categorize_local", `{"titles": []}`)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "rate_limited")

		// status endpoints are not limited
		w = do(t, router, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		router := NewRouter(newTestApp(t, nil), RouterOptions{})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("timeout reaches the handler context", func(t *testing.T) {
		r := gin.New()
		r.Use(Timeout(time.Minute))
		var hasDeadline bool
		r.GET("/", func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, hasDeadline)
	})

	t.Run("unknown route", func(t *testing.T) {
		router := NewRouter(newTestApp(t, nil), RouterOptions{})
		w := do(t, router, http.MethodGet, "/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})
}
