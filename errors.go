package classify

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFitted is returned when an operation needs a vectorizer or model
	// that has not been fitted or loaded yet.
	ErrNotFitted = errors.New("classify: not fitted")

	// ErrEmptyVocabulary is returned when fitting leaves no usable features.
	ErrEmptyVocabulary = errors.New("classify: vocabulary is empty after filtering")

	// ErrAlreadyFitted is returned by a second call to Fit on one vectorizer.
	ErrAlreadyFitted = errors.New("classify: vectorizer already fitted")

	// ErrVocabularyMismatch is returned when a classifier is paired with a
	// vocabulary other than the one it was trained on.
	ErrVocabularyMismatch = errors.New("classify: vocabulary does not match model")

	// ErrInvalidInput marks input-shape failures: wrong lengths, labels out
	// of range, bad hyperparameters.
	ErrInvalidInput = errors.New("classify: invalid input")

	// ErrEmptyTrainingSet is returned when there is nothing to train on.
	ErrEmptyTrainingSet = errors.New("classify: training set is empty")

	// ErrUnsupportedFormat is returned for a persisted file with an unknown
	// format name or version, and for input files of a type we cannot read.
	ErrUnsupportedFormat = errors.New("classify: unsupported format")
)

// DimensionMismatchError reports a feature vector whose width disagrees with
// the model it was fed to.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("classify: dimension mismatch: expected %d features, got %d", e.Expected, e.Got)
}

// Is lets callers treat a dimension mismatch as an input error.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConvergenceWarning is recorded when an iterative solver stops at its
// iteration limit. The model is still usable.
type ConvergenceWarning struct {
	Algorithm  Algorithm `json:"algorithm"`
	Classes    [2]int    `json:"classes"`
	Iterations int       `json:"iterations"`
	Gap        float64   `json:"gap"`
}

func (w ConvergenceWarning) Error() string {
	return fmt.Sprintf("classify: %s did not converge for classes %d/%d after %d iterations (gap %.4g)",
		w.Algorithm, w.Classes[0], w.Classes[1], w.Iterations, w.Gap)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
