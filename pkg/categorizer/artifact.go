package categorizer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"tidytabs/internal/models"
)

// artifactNames are tried in order when the artifact path is a directory.
var artifactNames = []string{"model.json", "model.json.zst", "model.json.gz"}

// Artifact bundles everything the Classifier needs from training.
type Artifact struct {
	Vectorizer Vectorizer
	Model      Model
	Labels     LabelEncoder
	Threshold  float64
	Metadata   map[string]any
}

type artifactFile struct {
	Vectorizer TFIDFConfig    `json:"vectorizer"`
	Model      LinearConfig   `json:"model"`
	Labels     []string       `json:"labels"`
	Threshold  *float64       `json:"threshold,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LoadArtifact reads a model.json document, plain or zstd/gzip compressed.
// A directory path is searched for the first known artifact file name.
// Every failure wraps models.ErrArtifactUnavailable.
func LoadArtifact(path string) (*Artifact, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no artifact path configured", models.ErrArtifactUnavailable)
	}
	resolved, err := resolveArtifactPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactUnavailable, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd reader for '%s': %v", models.ErrArtifactUnavailable, resolved, err)
		}
		defer dec.Close()
		r = dec
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip reader for '%s': %v", models.ErrArtifactUnavailable, resolved, err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading '%s': %v", models.ErrArtifactUnavailable, resolved, err)
	}
	return ParseArtifact(data)
}

// ParseArtifact builds an Artifact from its JSON document.
func ParseArtifact(data []byte) (*Artifact, error) {
	var af artifactFile
	if err := json.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("%w: decoding artifact: %v", models.ErrArtifactUnavailable, err)
	}

	vec, err := NewTFIDFVectorizer(af.Vectorizer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactUnavailable, err)
	}
	model, err := NewLinearModel(af.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactUnavailable, err)
	}
	if model.Features() != vec.Features() {
		return nil, fmt.Errorf("%w: model expects %d features, vectorizer produces %d",
			models.ErrArtifactUnavailable, model.Features(), vec.Features())
	}
	if len(af.Labels) != model.Classes() {
		return nil, fmt.Errorf("%w: %d labels for %d model classes",
			models.ErrArtifactUnavailable, len(af.Labels), model.Classes())
	}

	threshold := DefaultThreshold
	if af.Threshold != nil {
		if *af.Threshold < 0 || *af.Threshold > 1 {
			return nil, fmt.Errorf("%w: threshold %v outside [0,1]", models.ErrArtifactUnavailable, *af.Threshold)
		}
		threshold = *af.Threshold
	}

	return &Artifact{
		Vectorizer: vec,
		Model:      model,
		Labels:     Labels(af.Labels),
		Threshold:  threshold,
		Metadata:   af.Metadata,
	}, nil
}

func resolveArtifactPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrArtifactUnavailable, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range artifactNames {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no artifact file in directory '%s'", models.ErrArtifactUnavailable, path)
}
