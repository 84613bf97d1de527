package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tidytabs/internal/logging"
	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

const (
	defaultSerpAPIURL = "https://serpapi.com/search.json"
	maxSerpAPIBody    = 4 << 20
)

// SerpAPIOptions configures SerpAPIProvider.
type SerpAPIOptions struct {
	APIKey            string
	BaseURL           string
	Engine            string
	Timeout           time.Duration
	CacheTTL          time.Duration // 0 disables caching
	RequestsPerSecond float64       // 0 disables pacing
	Burst             int
	HTTPClient        *http.Client
}

// SerpAPIProvider runs Google searches through SerpAPI. Results are cached
// per query and outbound calls share one rate limiter.
type SerpAPIProvider struct {
	apiKey  string
	baseURL string
	engine  string
	client  *http.Client
	cache   *cache.Cache
	limiter *rate.Limiter
}

type serpAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// NewSerpAPIProvider builds a searcher. Without an API key the provider is
// disabled and every search fails.
func NewSerpAPIProvider(opts SerpAPIOptions) *SerpAPIProvider {
	p := &SerpAPIProvider{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		engine:  opts.Engine,
		client:  opts.HTTPClient,
	}
	if p.baseURL == "" {
		p.baseURL = defaultSerpAPIURL
	}
	if p.engine == "" {
		p.engine = "google"
	}
	if p.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		p.client = &http.Client{Timeout: timeout}
	}
	if opts.CacheTTL > 0 {
		p.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if p.apiKey == "" {
		log.Warn("SerpAPI key not provided. Web search will be disabled.")
	}
	return p
}

func (p *SerpAPIProvider) Name() string { return "serpapi" }

// Status returns the operational status of the provider.
func (p *SerpAPIProvider) Status() store.ProviderStatus {
	if p.apiKey == "" {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

// Search returns the organic results for query, each tagged with the query.
func (p *SerpAPIProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("SerpAPI provider is not initialized (missing API key): %w", models.ErrProviderDisabled)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", models.ErrValidation)
	}

	key := p.engine + ":" + query
	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			logging.FromContext(ctx).WithField("query", query).Debug("SerpAPI cache hit")
			return v.([]models.SearchResult), nil
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for search rate limit: %w", models.ErrExternalCall, err)
		}
	}

	results, err := p.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.Set(key, results, cache.DefaultExpiration)
	}
	return results, nil
}

func (p *SerpAPIProvider) fetch(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", p.engine)
	params.Set("api_key", p.apiKey)
	params.Set("google_domain", "google.com")
	params.Set("gl", "us")
	params.Set("hl", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building search request: %w", models.ErrExternalCall, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: SerpAPI request: %w", models.ErrExternalCall, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSerpAPIBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading SerpAPI response: %w", models.ErrExternalCall, err)
	}

	var parsed serpAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: SerpAPI status %d", models.ErrExternalCall, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decoding SerpAPI response: %w", models.ErrExternalCall, err)
	}
	if parsed.Error != "" {
		// SerpAPI reports "no results" as an error string with status 200
		if strings.Contains(strings.ToLower(parsed.Error), "hasn't returned any results") {
			return []models.SearchResult{}, nil
		}
		return nil, fmt.Errorf("%w: SerpAPI: %s", models.ErrExternalCall, parsed.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: SerpAPI status %d", models.ErrExternalCall, resp.StatusCode)
	}

	results := make([]models.SearchResult, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		results = append(results, models.SearchResult{
			Query:   query,
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}
	logging.FromContext(ctx).WithFields(log.Fields{"query": query, "results": len(results)}).Debug("SerpAPI search complete")
	return results, nil
}
