package categorizer

import "tidytabs/internal/models"

// DefaultThreshold applies when the artifact does not carry its own.
const DefaultThreshold = 0.50

// ConfidenceGate discards predictions whose top probability is below Threshold.
type ConfidenceGate struct {
	Threshold float64
}

// Apply returns the final category for a prediction and whether it passed.
func (g ConfidenceGate) Apply(label string, confidence float64) (string, bool) {
	if confidence < g.Threshold {
		return models.OtherCategory, false
	}
	return label, true
}
