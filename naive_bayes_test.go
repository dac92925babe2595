package classify

import (
	"errors"
	"math"
	"testing"
)

func TestNaiveBayesEndToEnd(t *testing.T) {
	docs := []string{
		"space rocket launch",
		"soccer match score",
		"moon orbit satellite",
		"stock market report",
	}
	y := []int{0, 0, 1, 1}

	n := NewNormalizer(UsingStopWords(false), UsingStemming(false))
	cfg := DefaultVectorizerConfig()
	cfg.MaxFeatures = 50
	cfg.MinDocFreq = 1
	v := NewVectorizer(cfg)
	X, err := v.FitTransform(n.NormalizeAll(docs))
	if err != nil {
		t.Fatal(err)
	}

	nb, err := TrainNaiveBayes(X, y, 2, NaiveBayesConfig{Alpha: 1})
	if err != nil {
		t.Fatal(err)
	}

	x, err := v.Transform(n.Normalize("rocket orbit launch"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := nb.Predict(x)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("Predict = %d, want 0", got)
	}
	probs, err := nb.PredictProbability(x)
	if err != nil {
		t.Fatal(err)
	}
	assertDistribution(t, probs, 2)
	if probs[0] <= probs[1] {
		t.Errorf("expected class 0 to have the highest posterior, got %v", probs)
	}

	t.Run("empty text", func(t *testing.T) {
		x, err := v.Transform(n.Normalize(""))
		if err != nil {
			t.Fatal(err)
		}
		probs, err := nb.PredictProbability(x)
		if err != nil {
			t.Fatal(err)
		}
		assertDistribution(t, probs, 2)
		// balanced classes: the prior is uniform and the tie goes to 0
		if math.Abs(probs[0]-0.5) > 1e-9 {
			t.Errorf("probs = %v, want uniform", probs)
		}
		if got, _ := nb.Predict(x); got != 0 {
			t.Errorf("Predict(empty) = %d, want 0", got)
		}
	})
}

func TestNaiveBayesTrainingAccuracy(t *testing.T) {
	X, y := blobs(4, 6, 11)
	nb, err := TrainNaiveBayes(X, y, 4, DefaultNaiveBayesConfig())
	if err != nil {
		t.Fatal(err)
	}
	if acc := trainingAccuracy(t, nb, X, y); acc != 1 {
		t.Errorf("training accuracy = %v, want 1", acc)
	}
	if !nb.Stats().Converged {
		t.Error("naive bayes should always report convergence")
	}
}

func TestNaiveBayesLogProbabilitiesFinite(t *testing.T) {
	// class 1 never sees feature 0; smoothing keeps its likelihood finite
	X := []SparseVector{
		{Dim: 2, Indices: []int{0}, Values: []float64{1}},
		{Dim: 2, Indices: []int{1}, Values: []float64{1}},
	}
	nb, err := TrainNaiveBayes(X, []int{0, 1}, 2, NaiveBayesConfig{Alpha: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for c, row := range nb.logLik {
		for i, v := range row {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				t.Errorf("logLik[%d][%d] = %v", c, i, v)
			}
		}
	}
}

func TestNaiveBayesConfigErrors(t *testing.T) {
	X, y := blobs(2, 2, 1)
	for _, alpha := range []float64{0, -1} {
		if _, err := TrainNaiveBayes(X, y, 2, NaiveBayesConfig{Alpha: alpha}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("alpha %v: got %v, want ErrInvalidInput", alpha, err)
		}
	}
	if _, err := TrainNaiveBayes(nil, nil, 2, DefaultNaiveBayesConfig()); !errors.Is(err, ErrEmptyTrainingSet) {
		t.Errorf("empty training set: got %v", err)
	}
}
