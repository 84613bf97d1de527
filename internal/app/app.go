package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"tidytabs/internal/config"
	"tidytabs/internal/costtracker"
	"tidytabs/internal/services"
	"tidytabs/internal/store"
	"tidytabs/internal/store/primary"
	"tidytabs/internal/store/sqlite"
	"tidytabs/pkg/categorizer"
	"tidytabs/pkg/tabgen"
)

type App struct {
	Config *config.Config

	UsageStore  store.UsageStore        // nil when usage tracking is off
	CostTracker costtracker.CostTracker // never nil
	CostService *services.CostService   // nil when usage tracking is off

	Classifier            *categorizer.Classifier
	CategorizationService *services.CategorizationService

	CompletionService services.CompletionService
	Searcher          *services.SerpAPIProvider // nil when search is off
	Generator         *tabgen.Generator

	closers []io.Closer
}

// NewApp wires every component from cfg. Missing optional pieces (model
// artifact, API keys, usage database) degrade the app instead of failing it;
// only invalid explicit configuration is an error.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, CostTracker: costtracker.New()}

	app.initUsageStore(ctx)
	if err := app.initClassifier(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initCategorizationService(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initCompletionService(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.initSearcher()
	if err := app.initGenerator(); err != nil {
		app.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"classifier":      app.Classifier.Available(),
		"categorization":  cfg.Categorization.Type,
		"generation":      app.CompletionService.Name(),
		"generation_mode": app.Generator.Mode(),
		"usage_tracking":  app.UsageStore != nil,
	}).Info("Application initialization complete.")
	return app, nil
}

// --- Private Helper Methods ---

func (a *App) initUsageStore(ctx context.Context) {
	dsn := strings.TrimSpace(a.Config.Database.DSN)
	if dsn == "" {
		log.Info("No database DSN configured, usage tracking disabled.")
		return
	}
	s, err := OpenUsageStore(ctx, dsn)
	if err != nil {
		log.Warnf("Usage store unavailable, usage tracking disabled: %v", err)
		return
	}
	a.UsageStore = s
	a.CostTracker = costtracker.NewStoreTracker(s)
	a.CostService = services.NewCostService(s)
	a.closers = append(a.closers, s)
}

// OpenUsageStore picks PostgreSQL for postgres:// DSNs and SQLite otherwise.
func OpenUsageStore(ctx context.Context, dsn string) (store.UsageStore, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		ps, err := primary.NewPrimaryStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("init primary store: %w", err)
		}
		return ps, nil
	}
	s, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("init sqlite store: %w", err)
	}
	return s, nil
}

func (a *App) initClassifier() error {
	cfg := a.Config.Classifier

	artifact, err := categorizer.LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		log.Warnf("Classifier artifact not loaded, titles will be categorized as Other: %v", err)
		artifact = nil
	}

	var rules *categorizer.RuleSet
	switch {
	case cfg.DisableRules:
	case cfg.RulesFile != "":
		rules, err = categorizer.LoadRuleSet(cfg.RulesFile)
		if err != nil {
			return fmt.Errorf("init classifier rules: %w", err)
		}
	default:
		rules = categorizer.DefaultRuleSet()
	}

	var opts []categorizer.Option
	if cfg.Threshold != nil {
		opts = append(opts, categorizer.WithThreshold(*cfg.Threshold))
	}
	a.Classifier = categorizer.NewClassifier(artifact, rules, opts...)
	log.Infof("Classifier ready (model loaded: %v, rules: %d, threshold: %.2f)",
		a.Classifier.Available(), rules.Len(), a.Classifier.Threshold())
	return nil
}

func (a *App) initCategorizationService() error {
	cfg := a.Config
	a.CategorizationService = services.NewCategorizationService(a.Classifier, nil)
	if !strings.EqualFold(cfg.Categorization.Type, "llm") {
		return nil
	}

	client := services.NewOpenAIClient(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL)
	if client == nil {
		log.Warn("OpenAI API key not set, /categorize will use the local classifier.")
		return nil
	}
	prompt, err := config.LoadPromptContent(cfg.Categorization.PromptTemplate, "categorize.txt", categorizer.DefaultPrompt)
	if err != nil {
		return fmt.Errorf("load categorization prompt: %w", err)
	}
	a.CategorizationService.LLM = categorizer.NewLLMCategorizer(client, cfg.Categorization.Model, prompt, a.CostTracker, cfg.Pricing["openai"])
	log.Infof("LLM categorizer initialized (Model: %s)", cfg.Categorization.Model)
	return nil
}

func (a *App) initCompletionService(ctx context.Context) error {
	cfg := a.Config
	var providers []services.CompletionService

	seen := map[string]bool{}
	for _, name := range append([]string{cfg.Generation.Provider}, cfg.Generation.FallbackProviders...) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == "none" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "openai":
			p := services.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL,
				cfg.Generation.Model, cfg.Generation.Temperature, a.CostTracker, cfg.Pricing["openai"])
			providers = append(providers, p)
		case "gemini":
			p, err := services.NewGeminiProvider(ctx, cfg.Providers.Gemini.APIKey,
				geminiModel(cfg), cfg.Generation.Temperature, a.CostTracker, cfg.Pricing["gemini"])
			if err != nil {
				log.Warnf("Failed to initialize Gemini provider: %v", err)
				continue
			}
			providers = append(providers, p)
			a.closers = append(a.closers, p)
		default:
			return fmt.Errorf("unsupported generation provider: %s", name)
		}
	}

	if len(providers) == 0 {
		log.Warn("No generation provider configured; /generate_tabs will return fallback groups.")
		a.CompletionService = services.NewNoopCompletionService()
		return nil
	}

	retry := &services.SimpleRetryStrategy{MaxAttempts: cfg.Generation.MaxRetries, BaseDelayMs: 500}
	a.CompletionService = services.NewFallbackCompletionService(retry, providers...)
	return nil
}

// geminiModel keeps an OpenAI model name from leaking into a Gemini call
// when Gemini is only listed as a fallback.
func geminiModel(cfg *config.Config) string {
	if strings.EqualFold(cfg.Generation.Provider, "gemini") && cfg.Generation.Model != "" {
		return cfg.Generation.Model
	}
	return "gemini-1.5-flash"
}

func (a *App) initSearcher() {
	cfg := a.Config
	if !cfg.SearchEnabled() {
		log.Info("Web search not configured, tab generation runs in direct mode.")
		return
	}
	a.Searcher = services.NewSerpAPIProvider(services.SerpAPIOptions{
		APIKey:            cfg.Search.APIKey,
		BaseURL:           cfg.Search.BaseURL,
		Engine:            cfg.Search.Engine,
		Timeout:           cfg.Search.Timeout,
		CacheTTL:          cfg.Search.CacheTTL,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
		Burst:             cfg.Search.Burst,
	})
}

func (a *App) initGenerator() error {
	cfg := a.Config
	defaults := tabgen.DefaultPrompts()

	var prompts tabgen.Prompts
	var err error
	if prompts.Direct, err = config.LoadPromptContent(cfg.Generation.Prompts.Direct, "direct.txt", defaults.Direct); err != nil {
		return fmt.Errorf("load direct prompt: %w", err)
	}
	if prompts.Queries, err = config.LoadPromptContent(cfg.Generation.Prompts.Queries, "queries.txt", defaults.Queries); err != nil {
		return fmt.Errorf("load queries prompt: %w", err)
	}
	if prompts.Organize, err = config.LoadPromptContent(cfg.Generation.Prompts.Organize, "organize.txt", defaults.Organize); err != nil {
		return fmt.Errorf("load organize prompt: %w", err)
	}

	opts := []tabgen.GeneratorOption{
		tabgen.WithMode(cfg.GenerationMode()),
		tabgen.WithPlanner(tabgen.NewPlanner(prompts, cfg.Generation.MaxQueries)),
		tabgen.WithResultsPerQuery(cfg.Generation.ResultsPerQuery),
		tabgen.WithSearchFallback(cfg.Generation.SearchFallback),
	}
	if a.Searcher != nil {
		opts = append(opts, tabgen.WithSearcher(a.Searcher))
	}
	a.Generator = tabgen.NewGenerator(services.PromptCompleter{Service: a.CompletionService}, opts...)
	return nil
}

// Close releases every resource the app opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
