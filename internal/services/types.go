package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

type RetryStrategy interface {
	NextBackoff(attempt int) int64 // ms
}

// SimpleRetryStrategy provides basic exponential backoff.
type SimpleRetryStrategy struct {
	MaxAttempts int
	BaseDelayMs int64
}

// NextBackoff calculates the next backoff duration in milliseconds.
// A negative value means stop retrying.
func (s *SimpleRetryStrategy) NextBackoff(attempt int) int64 {
	if s.MaxAttempts <= 0 {
		return -1
	}
	if attempt >= s.MaxAttempts {
		return -1
	}
	backoff := s.BaseDelayMs * (1 << attempt)
	maxDelay := int64(30000)
	if backoff > maxDelay {
		backoff = maxDelay
	}
	return backoff
}

// FallbackCompletionService tries each provider in order, retrying a
// failing provider according to RetryStrategy before moving to the next.
type FallbackCompletionService struct {
	Providers      []CompletionService
	RetryStrategy  RetryStrategy
	ActiveProvider int // index of the provider that last answered

	mu    sync.RWMutex
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFallbackCompletionService builds a chain over providers. A nil
// strategy means each provider is tried once.
func NewFallbackCompletionService(retry RetryStrategy, providers ...CompletionService) *FallbackCompletionService {
	return &FallbackCompletionService{Providers: providers, RetryStrategy: retry}
}

// GenerateChatCompletion returns the first successful answer in provider order.
func (s *FallbackCompletionService) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	var lastErr error
	tried := 0
	for i, p := range s.Providers {
		if p == nil || p.Status() == store.ProviderStatusDisabled {
			continue
		}
		tried++
		out, err := s.tryProvider(ctx, p, messages)
		if err == nil {
			s.mu.Lock()
			s.ActiveProvider = i
			s.mu.Unlock()
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Warnf("Completion provider %s failed, trying next: %v", p.Name(), err)
	}
	if tried == 0 {
		return "", fmt.Errorf("no completion provider available: %w", models.ErrProviderDisabled)
	}
	return "", fmt.Errorf("all completion providers failed: %w", lastErr)
}

func (s *FallbackCompletionService) tryProvider(ctx context.Context, p CompletionService, messages []ChatMessage) (string, error) {
	for attempt := 0; ; attempt++ {
		out, err := p.GenerateChatCompletion(ctx, messages)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, models.ErrProviderDisabled) || s.RetryStrategy == nil {
			return "", err
		}
		backoff := s.RetryStrategy.NextBackoff(attempt)
		if backoff < 0 {
			return "", err
		}
		log.Debugf("Retrying %s in %dms (attempt %d): %v", p.Name(), backoff, attempt+1, err)
		if serr := s.wait(ctx, time.Duration(backoff)*time.Millisecond); serr != nil {
			return "", err
		}
	}
}

func (s *FallbackCompletionService) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *FallbackCompletionService) current() CompletionService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ActiveProvider >= 0 && s.ActiveProvider < len(s.Providers) {
		if p := s.Providers[s.ActiveProvider]; p != nil && p.Status() != store.ProviderStatusDisabled {
			return p
		}
	}
	for _, p := range s.Providers {
		if p != nil && p.Status() != store.ProviderStatusDisabled {
			return p
		}
	}
	return nil
}

// Name returns the name of the currently active provider.
func (s *FallbackCompletionService) Name() string {
	if p := s.current(); p != nil {
		return p.Name()
	}
	return ""
}

// ModelName returns the model of the currently active provider.
func (s *FallbackCompletionService) ModelName() string {
	if p := s.current(); p != nil {
		return p.ModelName()
	}
	return ""
}

// Status is active when at least one provider is usable.
func (s *FallbackCompletionService) Status() store.ProviderStatus {
	if p := s.current(); p != nil {
		return p.Status()
	}
	return store.ProviderStatusDisabled
}

var _ CompletionService = (*FallbackCompletionService)(nil)
