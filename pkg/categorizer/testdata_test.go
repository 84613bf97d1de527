package categorizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testArtifactJSON is a three-class model where each class is driven by two
// words. Titles with none of those words score a flat 1/3 per class.
const testArtifactJSON = `{
  "vectorizer": {
    "vocabulary": {"netflix": 0, "movie": 1, "stock": 2, "market": 3, "golang": 4, "docs": 5},
    "idf": [1, 1, 1, 1, 1, 1],
    "ngram_range": [1, 1],
    "strip_accents": true,
    "token_pattern": "(?u)\\b\\w+\\b",
    "sublinear_tf": true
  },
  "model": {
    "type": "multinomial",
    "coef": [
      [5, 5, 0, 0, 0, 0],
      [0, 0, 5, 5, 0, 0],
      [0, 0, 0, 0, 5, 5]
    ],
    "intercept": [0, 0, 0]
  },
  "labels": ["Entertainment", "Finance", "Technology"],
  "threshold": 0.5,
  "metadata": {"trained_on": "fixture"}
}`

func newTestArtifact(t *testing.T) *Artifact {
	t.Helper()
	a, err := ParseArtifact([]byte(testArtifactJSON))
	require.NoError(t, err)
	return a
}
