package classify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Algorithm names a classifier family.
type Algorithm string

const (
	NaiveBayesAlgorithm   Algorithm = "naive_bayes"
	LinearSVMAlgorithm    Algorithm = "linear_svm"
	RandomForestAlgorithm Algorithm = "random_forest"
)

// Algorithms returns every supported algorithm in reporting order.
func Algorithms() []Algorithm {
	return []Algorithm{NaiveBayesAlgorithm, LinearSVMAlgorithm, RandomForestAlgorithm}
}

// DisplayName returns a human-readable name.
func (a Algorithm) DisplayName() string {
	switch a {
	case NaiveBayesAlgorithm:
		return "Naive Bayes"
	case LinearSVMAlgorithm:
		return "SVM"
	case RandomForestAlgorithm:
		return "Random Forest"
	}
	return string(a)
}

func (a Algorithm) rank() int {
	for i, b := range Algorithms() {
		if a == b {
			return i
		}
	}
	return len(Algorithms())
}

// ParseAlgorithm accepts the canonical name or a short alias
// ("nb", "svm", "rf").
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "naive_bayes", "nb", "naivebayes":
		return NaiveBayesAlgorithm, nil
	case "linear_svm", "svm", "linearsvm":
		return LinearSVMAlgorithm, nil
	case "random_forest", "rf", "forest", "randomforest":
		return RandomForestAlgorithm, nil
	}
	return "", invalidInput("unknown algorithm %q", s)
}

// Classifier predicts a label id for a feature vector.
type Classifier interface {
	Algorithm() Algorithm
	NumClasses() int
	Dim() int
	// Vocabulary is the fingerprint of the vocabulary the classifier was
	// trained on, empty when the training vectors were built by hand.
	Vocabulary() string
	Predict(x SparseVector) (int, error)
}

// ProbabilisticClassifier also reports a distribution over all labels that
// sums to one.
type ProbabilisticClassifier interface {
	Classifier
	PredictProbability(x SparseVector) ([]float64, error)
}

// TrainingStats describes one training run of a single model.
type TrainingStats struct {
	TrainingTime time.Duration        `json:"training_time"`
	Iterations   int                  `json:"iterations"`
	Converged    bool                 `json:"converged"`
	Warnings     []ConvergenceWarning `json:"warnings,omitempty"`
}

// validateTrainingSet checks the shape of a training set and returns the
// shared feature width. Every vector must come from the same vocabulary.
func validateTrainingSet(X []SparseVector, y []int, numClasses int) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return 0, invalidInput("%d vectors but %d labels", len(X), len(y))
	}
	if numClasses < 1 {
		return 0, invalidInput("need at least one class, got %d", numClasses)
	}
	dim := X[0].Dim
	if dim < 1 {
		return 0, ErrEmptyVocabulary
	}
	for i, x := range X {
		if err := checkDim(x, dim); err != nil {
			return 0, fmt.Errorf("vector %d: %w", i, err)
		}
		if x.Vocabulary != X[0].Vocabulary {
			return 0, fmt.Errorf("vector %d: %w", i, ErrVocabularyMismatch)
		}
		if y[i] < 0 || y[i] >= numClasses {
			return 0, invalidInput("label %d of document %d outside [0,%d)", y[i], i, numClasses)
		}
	}
	return dim, nil
}

func countClasses(y []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, c := range y {
		counts[c]++
	}
	return counts
}

// priorDistribution turns class counts into frequencies.
func priorDistribution(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	p := make([]float64, len(counts))
	if total == 0 {
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return p
	}
	for i, c := range counts {
		p[i] = float64(c) / float64(total)
	}
	return p
}

// argmax returns the index of the largest value, the lowest index on ties.
func argmax(v []float64) int {
	return floats.MaxIdx(v)
}

// softmax converts log scores into probabilities.
func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	max := floats.Max(logits)
	for i, l := range logits {
		out[i] = math.Exp(l - max)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
