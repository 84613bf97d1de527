package categorizer

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tidytabs/internal/util"
)

// DefaultTokenPattern matches runs of word characters.
const DefaultTokenPattern = `\b\w+\b`

// TFIDFConfig is the serialized form of a fitted TF-IDF vectorizer.
type TFIDFConfig struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	NGramRange   [2]int         `json:"ngram_range"`
	Lowercase    *bool          `json:"lowercase,omitempty"`
	StripAccents bool           `json:"strip_accents"`
	TokenPattern string         `json:"token_pattern,omitempty"`
	StopWords    []string       `json:"stop_words,omitempty"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Norm         string         `json:"norm,omitempty"`
}

// TFIDFVectorizer maps titles onto a fixed vocabulary weighted by inverse
// document frequency.
type TFIDFVectorizer struct {
	vocabulary   map[string]int
	idf          []float64
	minN, maxN   int
	lowercase    bool
	stripAccents bool
	token        *regexp.Regexp
	stopWords    map[string]struct{}
	sublinear    bool
	l2           bool
}

// NewTFIDFVectorizer validates cfg and compiles its token pattern.
func NewTFIDFVectorizer(cfg TFIDFConfig) (*TFIDFVectorizer, error) {
	if len(cfg.Vocabulary) == 0 {
		return nil, fmt.Errorf("vectorizer has an empty vocabulary")
	}
	if len(cfg.IDF) != len(cfg.Vocabulary) {
		return nil, fmt.Errorf("vectorizer idf length %d does not match vocabulary size %d", len(cfg.IDF), len(cfg.Vocabulary))
	}
	for term, col := range cfg.Vocabulary {
		if col < 0 || col >= len(cfg.IDF) {
			return nil, fmt.Errorf("vocabulary term %q has out-of-range column %d", term, col)
		}
	}

	minN, maxN := cfg.NGramRange[0], cfg.NGramRange[1]
	if minN == 0 && maxN == 0 {
		minN, maxN = 1, 1
	}
	if minN < 1 || maxN < minN {
		return nil, fmt.Errorf("invalid ngram range [%d, %d]", minN, maxN)
	}

	pattern := cfg.TokenPattern
	if pattern == "" {
		pattern = DefaultTokenPattern
	}
	// Patterns exported from Python carry an inline unicode flag RE2 rejects.
	pattern = strings.TrimPrefix(pattern, "(?u)")
	token, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid token pattern %q: %w", pattern, err)
	}

	var stop map[string]struct{}
	if len(cfg.StopWords) > 0 {
		stop = make(map[string]struct{}, len(cfg.StopWords))
		for _, w := range cfg.StopWords {
			stop[strings.ToLower(w)] = struct{}{}
		}
	}

	lowercase := true
	if cfg.Lowercase != nil {
		lowercase = *cfg.Lowercase
	}

	var l2 bool
	switch cfg.Norm {
	case "", "l2":
		l2 = true
	case "none":
	default:
		return nil, fmt.Errorf("unsupported norm %q", cfg.Norm)
	}

	return &TFIDFVectorizer{
		vocabulary:   cfg.Vocabulary,
		idf:          cfg.IDF,
		minN:         minN,
		maxN:         maxN,
		lowercase:    lowercase,
		stripAccents: cfg.StripAccents,
		token:        token,
		stopWords:    stop,
		sublinear:    cfg.SublinearTF,
		l2:           l2,
	}, nil
}

// Features returns the number of columns Transform produces.
func (v *TFIDFVectorizer) Features() int {
	return len(v.idf)
}

// Transform implements Vectorizer.
func (v *TFIDFVectorizer) Transform(titles []string) (Matrix, error) {
	out := make(Matrix, len(titles))
	for i, title := range titles {
		counts := make(map[int]float64)
		for _, term := range v.analyze(title) {
			if col, ok := v.vocabulary[term]; ok {
				counts[col]++
			}
		}

		row := SparseVector(counts)
		var sq float64
		for _, col := range row.Columns() {
			tf := counts[col]
			if v.sublinear {
				tf = 1 + math.Log(tf)
			}
			w := tf * v.idf[col]
			counts[col] = w
			sq += w * w
		}
		if v.l2 && sq > 0 {
			n := math.Sqrt(sq)
			for col := range counts {
				counts[col] /= n
			}
		}
		out[i] = row
	}
	return out, nil
}

func (v *TFIDFVectorizer) analyze(title string) []string {
	s := util.CleanText(title)
	if v.stripAccents {
		s = foldASCII(s)
	}
	if v.lowercase {
		s = strings.ToLower(s)
	}

	tokens := v.token.FindAllString(s, -1)
	if v.stopWords != nil {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, ok := v.stopWords[t]; !ok {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}

	var terms []string
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// foldASCII decomposes s and drops everything outside ASCII, so "café"
// becomes "cafe".
func foldASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
