package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"tidytabs/internal/logging"
	"tidytabs/internal/models"
	categorizer "tidytabs/pkg/categorizer"
)

// CategorizationService fronts the two categorizers. The LLM categorizer is
// optional; whenever it is missing or fails, the local classifier answers.
type CategorizationService struct {
	Local *categorizer.Classifier
	LLM   categorizer.TitleCategorizer
}

func NewCategorizationService(local *categorizer.Classifier, llm categorizer.TitleCategorizer) *CategorizationService {
	return &CategorizationService{Local: local, LLM: llm}
}

// CategorizeLocal runs the local classifier only.
func (s *CategorizationService) CategorizeLocal(ctx context.Context, titles []string) models.ClassificationResult {
	return s.Local.Classify(ctx, titles)
}

// CategorizeLocalWithConfidence runs the local classifier and keeps scores.
// A nil threshold uses the classifier's own.
func (s *CategorizationService) CategorizeLocalWithConfidence(ctx context.Context, titles []string, threshold *float64) map[string][]models.ScoredTitle {
	return s.Local.ClassifyWithConfidence(ctx, titles, threshold)
}

// Categorize prefers the LLM categorizer. usedLLM reports which path answered.
func (s *CategorizationService) Categorize(ctx context.Context, titles []string) (result models.ClassificationResult, usedLLM bool) {
	if s.LLM == nil || len(titles) == 0 {
		return s.CategorizeLocal(ctx, titles), false
	}
	res, err := s.LLM.Categorize(ctx, categorizer.CategorizationRequest{
		Titles:     titles,
		Categories: models.ApprovedCategories,
	})
	if err != nil {
		logging.FromContext(ctx).WithFields(log.Fields{
			"titles": len(titles),
			"error":  err,
		}).Warn("LLM categorization failed, using local classifier")
		return s.CategorizeLocal(ctx, titles), false
	}
	return res, true
}

// LLMEnabled reports whether an LLM categorizer is configured.
func (s *CategorizationService) LLMEnabled() bool {
	return s.LLM != nil
}
