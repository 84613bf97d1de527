package categorizer

import (
	"fmt"
	"math"
)

// Multi-class strategies understood by LinearModel.
const (
	MultiClassMultinomial = "multinomial"
	MultiClassOVR         = "ovr"
)

// LinearConfig is the serialized form of a fitted linear classifier.
// Binary models may carry a single coefficient row for the positive class.
type LinearConfig struct {
	Type      string      `json:"type"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// LinearModel is a logistic-regression style classifier over sparse rows.
type LinearModel struct {
	coef       [][]float64
	intercept  []float64
	multiclass string
	classes    int
	features   int
}

// NewLinearModel checks that coefficients form a consistent matrix.
func NewLinearModel(cfg LinearConfig) (*LinearModel, error) {
	if len(cfg.Coef) == 0 {
		return nil, fmt.Errorf("linear model has no coefficients")
	}
	if len(cfg.Intercept) != len(cfg.Coef) {
		return nil, fmt.Errorf("linear model has %d intercepts for %d coefficient rows", len(cfg.Intercept), len(cfg.Coef))
	}
	features := len(cfg.Coef[0])
	for i, row := range cfg.Coef {
		if len(row) != features {
			return nil, fmt.Errorf("coefficient row %d has %d features, want %d", i, len(row), features)
		}
	}

	mc := cfg.Type
	if mc == "" {
		mc = MultiClassMultinomial
	}
	if mc != MultiClassMultinomial && mc != MultiClassOVR {
		return nil, fmt.Errorf("unsupported model type %q", cfg.Type)
	}

	classes := len(cfg.Coef)
	if classes == 1 {
		classes = 2
	}
	return &LinearModel{
		coef:       cfg.Coef,
		intercept:  cfg.Intercept,
		multiclass: mc,
		classes:    classes,
		features:   features,
	}, nil
}

// Classes returns the number of output classes.
func (m *LinearModel) Classes() int { return m.classes }

// Features returns the expected input width.
func (m *LinearModel) Features() int { return m.features }

// PredictProba implements Model. Each row sums to 1.
func (m *LinearModel) PredictProba(x Matrix) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		scores, err := m.decision(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = m.probabilities(scores)
	}
	return out, nil
}

// Predict implements Model. Ties resolve to the lowest class index.
func (m *LinearModel) Predict(x Matrix) ([]int, error) {
	probs, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		out[i] = argmax(p)
	}
	return out, nil
}

func (m *LinearModel) decision(row SparseVector) ([]float64, error) {
	cols := row.Columns()
	if n := len(cols); n > 0 && (cols[0] < 0 || cols[n-1] >= m.features) {
		bad := cols[0]
		if bad >= 0 {
			bad = cols[n-1]
		}
		return nil, fmt.Errorf("feature column %d outside model width %d", bad, m.features)
	}
	scores := make([]float64, len(m.coef))
	for c, w := range m.coef {
		z := m.intercept[c]
		for _, col := range cols {
			z += w[col] * row[col]
		}
		scores[c] = z
	}
	return scores, nil
}

func (m *LinearModel) probabilities(scores []float64) []float64 {
	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	if m.multiclass == MultiClassOVR {
		probs := make([]float64, len(scores))
		var sum float64
		for i, z := range scores {
			probs[i] = sigmoid(z)
			sum += probs[i]
		}
		for i := range probs {
			probs[i] /= sum
		}
		return probs
	}
	return softmax(scores)
}

func softmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// Labels is a LabelEncoder over a fixed, ordered class list.
type Labels []string

// InverseTransform implements LabelEncoder.
func (l Labels) InverseTransform(indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(l) {
			return nil, fmt.Errorf("class index %d outside %d labels", idx, len(l))
		}
		out[i] = l[idx]
	}
	return out, nil
}
