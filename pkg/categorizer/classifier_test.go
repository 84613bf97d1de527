package categorizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidytabs/internal/models"
)

// explodingVectorizer panics on any batch containing "boom".
type explodingVectorizer struct {
	inner Vectorizer
}

func (e explodingVectorizer) Transform(titles []string) (Matrix, error) {
	for _, t := range titles {
		if strings.Contains(t, "boom") {
			panic("vectorizer exploded")
		}
	}
	return e.inner.Transform(titles)
}

// failingModel errors on every call.
type failingModel struct{}

func (failingModel) Predict(x Matrix) ([]int, error) { return nil, errors.New("no") }
func (failingModel) PredictProba(x Matrix) ([][]float64, error) {
	return nil, errors.New("no")
}

func TestClassify_Basic(t *testing.T) {
	c := NewClassifier(newTestArtifact(t), DefaultRuleSet())

	got := c.Classify(context.Background(), []string{
		"Netflix movie night",
		"Stock market today",
		"Golang docs",
		"GPA Calculator",
		"Something unrelated",
	})

	want := models.ClassificationResult{
		"Entertainment": {"Netflix movie night"},
		"Finance":       {"Stock market today"},
		"Technology":    {"Golang docs"},
		"Education":     {"GPA Calculator"},
		"Other":         {"Something unrelated"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_Totality(t *testing.T) {
	c := NewClassifier(newTestArtifact(t), DefaultRuleSet())
	titles := []string{"Netflix movie", "Netflix movie", "", "boom", "UofT Quercus", "stock", "日本語のタイトル"}

	got := c.Classify(context.Background(), titles)
	assert.Equal(t, len(titles), got.Len())

	counts := map[string]int{}
	for _, bucket := range got {
		for _, title := range bucket {
			counts[title]++
		}
	}
	assert.Equal(t, 2, counts["Netflix movie"], "duplicates keep multiplicity")
	for _, title := range titles {
		assert.Positive(t, counts[title], "title %q missing", title)
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	c := NewClassifier(newTestArtifact(t), DefaultRuleSet())
	got := c.Classify(context.Background(), nil)
	assert.Empty(t, got)
	_, hasOther := got[models.OtherCategory]
	assert.False(t, hasOther)
}

func TestClassify_RulePrecedence(t *testing.T) {
	// "Course" would otherwise be scored by the model; "netflix" makes the model confident.
	c := NewClassifier(newTestArtifact(t), DefaultRuleSet())
	decisions := c.Decide(context.Background(), []string{"Netflix course on film", "UofT Quercus"}, nil)

	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, EducationCategory, d.Category)
		assert.Equal(t, models.DecisionSourceRule, d.Source)
		assert.Equal(t, 1.0, d.Confidence)
	}
}

func TestClassify_DegradedWithoutArtifact(t *testing.T) {
	c := NewClassifier(nil, nil)
	assert.False(t, c.Available())

	got := c.Classify(context.Background(), []string{"A", "B"})
	assert.Equal(t, models.ClassificationResult{"Other": {"A", "B"}}, got)

	// rules are bypassed too when no model is loaded
	c = NewClassifier(nil, DefaultRuleSet())
	got = c.Classify(context.Background(), []string{"A", "University of Waterloo"})
	assert.Equal(t, models.ClassificationResult{"Other": {"A", "University of Waterloo"}}, got)

	for _, d := range c.Decide(context.Background(), []string{"Course selection"}, nil) {
		assert.Equal(t, models.DecisionSourceDegraded, d.Source)
		assert.Zero(t, d.Confidence)
	}
}

func TestClassify_ThresholdMonotonicity(t *testing.T) {
	c := NewClassifier(newTestArtifact(t), nil)
	titles := []string{"Netflix movie", "stock", "golang", "random words", "movie market docs", "market"}

	prevOther := -1
	for _, th := range []float64{0, 0.2, 0.34, 0.5, 0.8, 0.99, 1} {
		th := th
		res := c.ClassifyWithConfidence(context.Background(), titles, &th)
		other := len(res[models.OtherCategory])
		assert.GreaterOrEqual(t, other, prevOther, "threshold %v reduced the Other bucket", th)
		prevOther = other
	}
}

func TestClassify_GateRoutesLowConfidence(t *testing.T) {
	a := newTestArtifact(t)

	// no vocabulary hit scores 1/3 for every class
	c := NewClassifier(a, nil)
	decisions := c.Decide(context.Background(), []string{"random words"}, nil)
	assert.Equal(t, models.OtherCategory, decisions[0].Category)
	assert.Equal(t, models.DecisionSourceGate, decisions[0].Source)
	assert.InDelta(t, 1.0/3, decisions[0].Confidence, 1e-9)

	// lowering the threshold lets the tie-broken argmax (first class) through
	c = NewClassifier(a, nil, WithThreshold(0.3))
	assert.Equal(t, 0.3, c.Threshold())
	decisions = c.Decide(context.Background(), []string{"random words"}, nil)
	assert.Equal(t, "Entertainment", decisions[0].Category)
	assert.Equal(t, models.DecisionSourceModel, decisions[0].Source)
}

func TestClassify_PerTitleFailureIsolation(t *testing.T) {
	a := newTestArtifact(t)
	a.Vectorizer = explodingVectorizer{inner: a.Vectorizer}
	c := NewClassifier(a, nil)

	decisions := c.Decide(context.Background(), []string{"Netflix movie", "boom", "stock market"}, nil)
	require.Len(t, decisions, 3)
	assert.Equal(t, "Entertainment", decisions[0].Category)
	assert.Equal(t, models.OtherCategory, decisions[1].Category)
	assert.Equal(t, models.DecisionSourceError, decisions[1].Source)
	assert.Zero(t, decisions[1].Confidence)
	assert.Equal(t, "Finance", decisions[2].Category)
}

func TestClassify_ModelErrorRoutesToOther(t *testing.T) {
	a := newTestArtifact(t)
	a.Model = failingModel{}
	c := NewClassifier(a, DefaultRuleSet())

	got := c.Classify(context.Background(), []string{"Netflix movie", "Course selection"})
	assert.Equal(t, models.ClassificationResult{
		"Other":     {"Netflix movie"},
		"Education": {"Course selection"},
	}, got)
}

func TestClassify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// prediction is local CPU work, so an expired deadline does not
	// discard it
	c := NewClassifier(newTestArtifact(t), DefaultRuleSet())
	got := c.Classify(ctx, []string{"Netflix movie", "stock market", "lecture notes"})
	assert.Equal(t, models.ClassificationResult{
		"Entertainment": {"Netflix movie"},
		"Finance":       {"stock market"},
		"Education":     {"lecture notes"},
	}, got)
}

func TestClassifyWithConfidence(t *testing.T) {
	c := NewClassifier(newTestArtifact(t), DefaultRuleSet())
	res := c.ClassifyWithConfidence(context.Background(), []string{"Netflix movie", "Syllabus", "random"}, nil)

	require.Len(t, res["Entertainment"], 1)
	assert.Greater(t, res["Entertainment"][0].Confidence, 0.99)
	assert.Equal(t, []models.ScoredTitle{{Title: "Syllabus", Confidence: 1}}, res["Education"])
	require.Len(t, res["Other"], 1)
	assert.Equal(t, "random", res["Other"][0].Title)
	assert.InDelta(t, 1.0/3, res["Other"][0].Confidence, 1e-9)
}

func TestGroup_KeepsInputOrder(t *testing.T) {
	got := Group([]models.Decision{
		{Title: "b", Category: "X"},
		{Title: "a", Category: "Y"},
		{Title: "c", Category: "X"},
	})
	assert.Equal(t, []string{"b", "c"}, got["X"])
	assert.Equal(t, []string{"a"}, got["Y"])
}

// tiedArtifact has two classes with identical coefficient rows over many
// features, so every title scores an exact tie.
func tiedArtifact(t *testing.T, features int) *Artifact {
	t.Helper()
	vocab := make(map[string]int, features)
	idf := make([]float64, features)
	row := make([]float64, features)
	for i := 0; i < features; i++ {
		vocab[fmt.Sprintf("w%d", i)] = i
		idf[i] = 1 + 0.1*float64(i)
		row[i] = 0.37 * float64(i%7+1)
	}
	vec, err := NewTFIDFVectorizer(TFIDFConfig{Vocabulary: vocab, IDF: idf, SublinearTF: true})
	require.NoError(t, err)
	model, err := NewLinearModel(LinearConfig{
		Coef:      [][]float64{row, append([]float64(nil), row...)},
		Intercept: []float64{0, 0},
	})
	require.NoError(t, err)
	return &Artifact{Vectorizer: vec, Model: model, Labels: Labels{"A", "B"}, Threshold: 0}
}

func TestClassify_TiesAreDeterministic(t *testing.T) {
	const features = 40
	words := make([]string, features)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	title := strings.Join(words, " ")

	c := NewClassifier(tiedArtifact(t, features), nil)
	first := c.Decide(context.Background(), []string{title}, nil)[0]
	assert.Equal(t, "A", first.Category, "ties go to the first class")
	assert.InDelta(t, 0.5, first.Confidence, 1e-12)

	for i := 0; i < 300; i++ {
		d := c.Decide(context.Background(), []string{title}, nil)[0]
		require.Equal(t, first.Category, d.Category, "run %d", i)
		require.Equal(t, first.Confidence, d.Confidence, "run %d", i)
	}
}

func TestSparseVector_ColumnsSorted(t *testing.T) {
	v := SparseVector{9: 1, 2: 1, 40: 1, 0: 1}
	assert.Equal(t, []int{0, 2, 9, 40}, v.Columns())
	assert.Empty(t, SparseVector{}.Columns())
}
