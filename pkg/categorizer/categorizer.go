package categorizer

import (
	"context"
	"sort"

	"tidytabs/internal/models"
)

// SparseVector holds the non-zero features of one title, keyed by column.
type SparseVector map[int]float64

// Columns returns the populated columns in ascending order. Sums over a row
// walk this order so identical input always yields identical scores.
func (v SparseVector) Columns() []int {
	cols := make([]int, 0, len(v))
	for col := range v {
		cols = append(cols, col)
	}
	sort.Ints(cols)
	return cols
}

// Matrix is one SparseVector per input title.
type Matrix []SparseVector

// Vectorizer turns titles into the model's feature representation.
type Vectorizer interface {
	Transform(titles []string) (Matrix, error)
}

// Model scores feature rows against the label space.
type Model interface {
	Predict(x Matrix) ([]int, error)
	PredictProba(x Matrix) ([][]float64, error)
}

// LabelEncoder maps model class indices back to category names.
type LabelEncoder interface {
	InverseTransform(indices []int) ([]string, error)
}

// CategorizationRequest holds the titles to group and the allowed categories.
type CategorizationRequest struct {
	Titles     []string
	Categories []string
}

// TitleCategorizer groups titles by calling out to something that may fail,
// such as an LLM.
type TitleCategorizer interface {
	Categorize(ctx context.Context, req CategorizationRequest) (models.ClassificationResult, error)
}
