package classify

import (
	"math"
	"time"
)

// NaiveBayesConfig holds the smoothing parameter.
type NaiveBayesConfig struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

// DefaultNaiveBayesConfig returns Laplace smoothing (alpha = 1).
func DefaultNaiveBayesConfig() NaiveBayesConfig {
	return NaiveBayesConfig{Alpha: 1.0}
}

// NaiveBayes is a multinomial Naive Bayes model over TF-IDF weights.
type NaiveBayes struct {
	alpha        float64
	dim          int
	vocab        string
	classCount   []int
	featureCount [][]float64 // [class][feature] summed weights

	logPrior []float64
	logLik   [][]float64
	stats    TrainingStats
}

// TrainNaiveBayes fits class priors and per-class feature log likelihoods in
// a single pass over the data.
func TrainNaiveBayes(X []SparseVector, y []int, numClasses int, config NaiveBayesConfig) (*NaiveBayes, error) {
	start := time.Now()
	if config.Alpha <= 0 {
		return nil, invalidInput("naive bayes alpha must be positive, got %g", config.Alpha)
	}
	dim, err := validateTrainingSet(X, y, numClasses)
	if err != nil {
		return nil, err
	}

	featureCount := make([][]float64, numClasses)
	for c := range featureCount {
		featureCount[c] = make([]float64, dim)
	}
	for i, x := range X {
		x.AddScaledTo(featureCount[y[i]], 1)
	}

	nb := &NaiveBayes{
		alpha:        config.Alpha,
		dim:          dim,
		vocab:        X[0].Vocabulary,
		classCount:   countClasses(y, numClasses),
		featureCount: featureCount,
	}
	nb.computeLogProbabilities()
	nb.stats = TrainingStats{TrainingTime: time.Since(start), Iterations: 1, Converged: true}
	return nb, nil
}

func (nb *NaiveBayes) computeLogProbabilities() {
	k := len(nb.classCount)
	total := 0
	for _, c := range nb.classCount {
		total += c
	}
	nb.logPrior = make([]float64, k)
	nb.logLik = make([][]float64, k)
	for c := 0; c < k; c++ {
		nb.logPrior[c] = math.Log(float64(nb.classCount[c])) - math.Log(float64(total))

		var mass float64
		for _, v := range nb.featureCount[c] {
			mass += v
		}
		denom := math.Log(mass + nb.alpha*float64(nb.dim))
		ll := make([]float64, nb.dim)
		for i, v := range nb.featureCount[c] {
			ll[i] = math.Log(v+nb.alpha) - denom
		}
		nb.logLik[c] = ll
	}
}

func (nb *NaiveBayes) Algorithm() Algorithm  { return NaiveBayesAlgorithm }
func (nb *NaiveBayes) NumClasses() int       { return len(nb.classCount) }
func (nb *NaiveBayes) Dim() int              { return nb.dim }
func (nb *NaiveBayes) Vocabulary() string    { return nb.vocab }
func (nb *NaiveBayes) Stats() TrainingStats  { return nb.stats }
func (nb *NaiveBayes) Alpha() float64        { return nb.alpha }
func (nb *NaiveBayes) ClassPrior() []float64 { return priorDistribution(nb.classCount) }

// jointLogLikelihood returns log P(c) + sum_i x_i log P(i|c) for every class.
func (nb *NaiveBayes) jointLogLikelihood(x SparseVector) ([]float64, error) {
	if err := checkVector(x, nb.dim, nb.vocab); err != nil {
		return nil, err
	}
	jll := make([]float64, len(nb.classCount))
	for c := range jll {
		jll[c] = nb.logPrior[c] + x.Dot(nb.logLik[c])
	}
	return jll, nil
}

// Predict returns the class with the highest posterior. An all-zero vector
// falls back to the prior.
func (nb *NaiveBayes) Predict(x SparseVector) (int, error) {
	jll, err := nb.jointLogLikelihood(x)
	if err != nil {
		return 0, err
	}
	return argmax(jll), nil
}

// PredictProbability returns the normalized posterior.
func (nb *NaiveBayes) PredictProbability(x SparseVector) ([]float64, error) {
	jll, err := nb.jointLogLikelihood(x)
	if err != nil {
		return nil, err
	}
	return softmax(jll), nil
}
