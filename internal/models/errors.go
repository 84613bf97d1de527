package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// Classification pipeline. Neither escapes the classifier.
	ErrArtifactUnavailable = errors.New("classifier artifact unavailable")
	ErrInference           = errors.New("inference failed")

	// Generation pipeline. All three end in the fallback group.
	ErrExtraction   = errors.New("no structured result in model output")
	ErrExternalCall = errors.New("external call failed")

	ErrProviderDisabled = errors.New("provider disabled")
)
