package config

import (
	"errors"
	"fmt"
	"strings"
)

/*
Validate checks the fields that would otherwise fail late, at request time:
- Server listen settings and rate limits
- Classifier threshold
- Categorization type and its provider key
- Generation provider, mode and fan-out limits
- Pricing (if present)
*/
func (c *Config) Validate() error {
	// Server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return errors.New("server.burst must be at least 1 when rate limiting is enabled")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.New("server.request_timeout must not be negative")
	}

	// Classifier config
	if t := c.Classifier.Threshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("classifier.threshold %v must be within [0, 1]", *t)
	}

	// Categorization config
	switch strings.ToLower(c.Categorization.Type) {
	case "", "local":
	case "llm":
		if strings.ToLower(c.Categorization.Provider) != "openai" {
			return fmt.Errorf("categorization.provider '%s' is not supported (only 'openai')", c.Categorization.Provider)
		}
		if c.Categorization.Model == "" {
			return errors.New("categorization.model is required when categorization.type is 'llm'")
		}
		if c.Providers.OpenAI.APIKey == "" {
			return errors.New("providers.openai.api_key is required when categorization.type is 'llm'")
		}
	default:
		return fmt.Errorf("categorization.type '%s' must be 'local' or 'llm'", c.Categorization.Type)
	}

	// Generation config
	for _, p := range append([]string{c.Generation.Provider}, c.Generation.FallbackProviders...) {
		switch strings.ToLower(p) {
		case "openai", "gemini", "none", "":
		default:
			return fmt.Errorf("generation provider '%s' must be 'openai', 'gemini' or 'none'", p)
		}
	}
	switch strings.ToLower(c.Generation.Mode) {
	case "", ModeDirect:
	case ModeGrounded:
		if !c.SearchEnabled() {
			return errors.New("generation.mode 'grounded' requires search.provider and search.api_key")
		}
	default:
		return fmt.Errorf("generation.mode '%s' must be 'direct' or 'grounded'", c.Generation.Mode)
	}
	if c.Generation.MaxQueries < 1 {
		return errors.New("generation.max_queries must be a positive integer")
	}
	if c.Generation.ResultsPerQuery < 1 {
		return errors.New("generation.results_per_query must be a positive integer")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature %v must be within [0, 2]", c.Generation.Temperature)
	}
	if c.Generation.MaxRetries < 0 {
		return errors.New("generation.max_retries must not be negative")
	}

	// Search config
	if c.SearchEnabled() && c.Search.RequestsPerSecond < 0 {
		return errors.New("search.requests_per_second must not be negative")
	}

	// Pricing config (optional, but if present, must be valid)
	for provider, models := range c.Pricing {
		if provider == "" {
			return errors.New("pricing contains an empty provider name")
		}
		for model, price := range models {
			if model == "" {
				return fmt.Errorf("pricing for provider '%s' contains an empty model name", provider)
			}
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}

	return nil
}
