package categorizer

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"tidytabs/internal/logging"
	"tidytabs/internal/models"
)

// Classifier assigns every title to exactly one category. It never returns
// an error: failures of any kind land the title in "Other".
type Classifier struct {
	artifact  *Artifact
	rules     *RuleSet
	threshold float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold overrides the artifact's confidence threshold.
func WithThreshold(t float64) Option {
	return func(c *Classifier) {
		c.threshold = t
	}
}

// NewClassifier builds a Classifier. A nil artifact yields a degraded
// classifier that sends every title to "Other", rule matches included; a
// nil rule set disables overrides.
func NewClassifier(artifact *Artifact, rules *RuleSet, opts ...Option) *Classifier {
	c := &Classifier{
		artifact:  artifact,
		rules:     rules,
		threshold: DefaultThreshold,
	}
	if artifact != nil {
		c.threshold = artifact.Threshold
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a model artifact is loaded.
func (c *Classifier) Available() bool {
	return c != nil && c.artifact != nil
}

// Threshold returns the gate threshold used when no per-call override is given.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify groups titles by category, keeping input order within each bucket.
func (c *Classifier) Classify(ctx context.Context, titles []string) models.ClassificationResult {
	return Group(c.Decide(ctx, titles, nil))
}

// ClassifyWithConfidence is Classify with per-title confidence and an
// optional threshold override for this call only.
func (c *Classifier) ClassifyWithConfidence(ctx context.Context, titles []string, threshold *float64) map[string][]models.ScoredTitle {
	out := make(map[string][]models.ScoredTitle)
	for _, d := range c.Decide(ctx, titles, threshold) {
		out[d.Category] = append(out[d.Category], models.ScoredTitle{Title: d.Title, Confidence: d.Confidence})
	}
	return out
}

// Decide returns one Decision per input title, in input order.
func (c *Classifier) Decide(ctx context.Context, titles []string, threshold *float64) []models.Decision {
	decisions := make([]models.Decision, len(titles))
	gate := ConfidenceGate{Threshold: c.threshold}
	if threshold != nil {
		gate.Threshold = *threshold
	}

	entry := logging.FromContext(ctx)
	if !c.Available() {
		for i, title := range titles {
			decisions[i] = models.Decision{Title: title, Category: models.OtherCategory, Source: models.DecisionSourceDegraded}
		}
		return decisions
	}

	var pending []int
	for i, title := range titles {
		decisions[i].Title = title
		if category, keyword, ok := c.rules.Match(title); ok {
			entry.WithFields(log.Fields{"title": title, "keyword": keyword, "category": category}).Debug("Rule override matched")
			decisions[i].Category = category
			decisions[i].Confidence = 1
			decisions[i].Source = models.DecisionSourceRule
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return decisions
	}

	batch := make([]string, len(pending))
	for j, i := range pending {
		batch[j] = titles[i]
	}
	labels, confs, err := c.predict(batch)
	if err != nil {
		entry.WithError(err).WithField("titles", len(batch)).Warn("Batch prediction failed, retrying titles individually")
	}

	for j, i := range pending {
		var label string
		var conf float64
		if err == nil {
			label, conf = labels[j], confs[j]
		} else {
			l, cf, perr := c.predict([]string{titles[i]})
			if perr != nil {
				entry.WithError(perr).WithField("title", titles[i]).Warn("Prediction failed, routing title to Other")
				decisions[i].Category = models.OtherCategory
				decisions[i].Source = models.DecisionSourceError
				continue
			}
			label, conf = l[0], cf[0]
		}

		category, passed := gate.Apply(label, conf)
		decisions[i].Category = category
		decisions[i].Confidence = conf
		if passed {
			decisions[i].Source = models.DecisionSourceModel
		} else {
			decisions[i].Source = models.DecisionSourceGate
		}
	}
	return decisions
}

// predict runs vectorizer, model and label encoder over titles and returns
// the predicted label and top probability for each. Panics inside the
// artifact are reported as models.ErrInference.
func (c *Classifier) predict(titles []string) (labels []string, confs []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels, confs = nil, nil
			err = fmt.Errorf("%w: panic during prediction: %v", models.ErrInference, r)
		}
	}()

	a := c.artifact
	x, err := a.Vectorizer.Transform(titles)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: transform: %v", models.ErrInference, err)
	}
	if len(x) != len(titles) {
		return nil, nil, fmt.Errorf("%w: vectorizer returned %d rows for %d titles", models.ErrInference, len(x), len(titles))
	}
	probs, err := a.Model.PredictProba(x)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: predict_proba: %v", models.ErrInference, err)
	}
	idx, err := a.Model.Predict(x)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: predict: %v", models.ErrInference, err)
	}
	if len(probs) != len(titles) || len(idx) != len(titles) {
		return nil, nil, fmt.Errorf("%w: model returned mismatched row counts", models.ErrInference)
	}
	labels, err = a.Labels.InverseTransform(idx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: label decode: %v", models.ErrInference, err)
	}

	confs = make([]float64, len(titles))
	for i, p := range probs {
		if len(p) == 0 {
			return nil, nil, fmt.Errorf("%w: empty probability vector for row %d", models.ErrInference, i)
		}
		confs[i] = p[argmax(p)]
	}
	return labels, confs, nil
}

// Group collects decisions into category buckets in input order.
func Group(decisions []models.Decision) models.ClassificationResult {
	result := make(models.ClassificationResult)
	for _, d := range decisions {
		result.Add(d.Category, d.Title)
	}
	return result
}
