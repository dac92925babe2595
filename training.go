package classify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TrainingConfig contains configuration for model training
type TrainingConfig struct {
	Name             string
	Normalizer       NormalizerOptions
	Vectorizer       VectorizerConfig
	NaiveBayes       NaiveBayesConfig
	SVM              SVMConfig
	Forest           ForestConfig
	Algorithms       []Algorithm
	DisplayNames     map[string]string
	TestSplit        float64
	Seed             int64
	Context          context.Context
	ProgressCallback func(stage string, done, total int)
	WarningCallback  func(w ConvergenceWarning)
}

// DefaultTrainingConfig returns a default training configuration
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Name:       "classify",
		Normalizer: DefaultNormalizerOptions(),
		Vectorizer: DefaultVectorizerConfig(),
		NaiveBayes: DefaultNaiveBayesConfig(),
		SVM:        DefaultSVMConfig(),
		Forest:     DefaultForestConfig(),
		Algorithms: Algorithms(),
		TestSplit:  0.2,
		Seed:       42,
		Context:    context.Background(),
	}
}

// Hyperparameters records every setting that shaped a trained model.
type Hyperparameters struct {
	Normalizer NormalizerOptions `json:"normalizer"`
	Vectorizer VectorizerConfig  `json:"vectorizer"`
	NaiveBayes NaiveBayesConfig  `json:"naive_bayes"`
	SVM        SVMConfig         `json:"svm"`
	Forest     ForestConfig      `json:"random_forest"`
	TestSplit  float64           `json:"test_split"`
	Seed       int64             `json:"seed"`
}

// TrainingMetrics contains the held-out results of one algorithm
type TrainingMetrics struct {
	Algorithm      Algorithm            `json:"algorithm"`
	Accuracy       float64              `json:"accuracy"`
	MacroF1        float64              `json:"macro_f1"`
	WeightedF1     float64              `json:"weighted_f1"`
	TrainingTime   time.Duration        `json:"training_time"`
	PredictionTime time.Duration        `json:"prediction_time"`
	Iterations     int                  `json:"iterations"`
	Converged      bool                 `json:"converged"`
	Warnings       []ConvergenceWarning `json:"warnings,omitempty"`
}

// TrainingInfo is the fit-time metadata stored with a model.
type TrainingInfo struct {
	TrainedAt       time.Time         `json:"trained_at"`
	TotalDocuments  int               `json:"total_documents"`
	TrainDocuments  int               `json:"train_documents"`
	TestDocuments   int               `json:"test_documents"`
	Features        int               `json:"features"`
	Labels          []string          `json:"labels"`
	Hyperparameters Hyperparameters   `json:"hyperparameters"`
	Results         []TrainingMetrics `json:"results"`
	BestAccuracy    Algorithm         `json:"best_accuracy,omitempty"`
	FastestTraining Algorithm         `json:"fastest_training,omitempty"`
}

// Result returns the metrics recorded for alg.
func (info TrainingInfo) Result(alg Algorithm) (TrainingMetrics, bool) {
	for _, r := range info.Results {
		if r.Algorithm == alg {
			return r, true
		}
	}
	return TrainingMetrics{}, false
}

// TrainingReport is everything Train learned besides the model itself.
type TrainingReport struct {
	Info        TrainingInfo
	Evaluations map[Algorithm]*Metrics
}

// CrossValidationResult contains results from cross-validation
type CrossValidationResult struct {
	Algorithm    Algorithm          `json:"algorithm"`
	MeanAccuracy float64            `json:"mean_accuracy"`
	StdAccuracy  float64            `json:"std_accuracy"`
	MeanF1       float64            `json:"mean_f1"`
	StdF1        float64            `json:"std_f1"`
	FoldResults  []ValidationResult `json:"folds"`
}

// ValidationResult contains validation metrics
type ValidationResult struct {
	Accuracy  float64 `json:"accuracy"`
	F1Score   float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Trainer fits the normalizer, vectorizer and classifiers as one pipeline.
type Trainer struct {
	config TrainingConfig
}

// NewTrainer creates a new trainer with the given configuration
func NewTrainer(config TrainingConfig) *Trainer {
	if config.Context == nil {
		config.Context = context.Background()
	}
	if len(config.Algorithms) == 0 {
		config.Algorithms = Algorithms()
	}
	if config.Name == "" {
		config.Name = "classify"
	}
	return &Trainer{config: config}
}

func (t *Trainer) progress(stage string, done, total int) {
	if t.config.ProgressCallback != nil {
		t.config.ProgressCallback(stage, done, total)
	}
}

func (t *Trainer) algorithms() []Algorithm {
	algs := append([]Algorithm(nil), t.config.Algorithms...)
	sort.SliceStable(algs, func(i, j int) bool { return algs[i].rank() < algs[j].rank() })
	return algs
}

// TrainClassifier trains a single algorithm on prepared vectors.
func TrainClassifier(ctx context.Context, alg Algorithm, X []SparseVector, y []int, numClasses int, config TrainingConfig) (ProbabilisticClassifier, error) {
	switch alg {
	case NaiveBayesAlgorithm:
		return TrainNaiveBayes(X, y, numClasses, config.NaiveBayes)
	case LinearSVMAlgorithm:
		return TrainLinearSVM(ctx, X, y, numClasses, config.SVM)
	case RandomForestAlgorithm:
		return TrainRandomForest(ctx, X, y, numClasses, config.Forest)
	}
	return nil, invalidInput("unknown algorithm %q", alg)
}

func statsOf(c ProbabilisticClassifier) TrainingStats {
	if s, ok := c.(interface{ Stats() TrainingStats }); ok {
		return s.Stats()
	}
	return TrainingStats{}
}

func validateDocuments(docs []LabeledDocument, k int) ([]string, []int, error) {
	if len(docs) == 0 {
		return nil, nil, ErrEmptyTrainingSet
	}
	texts := make([]string, len(docs))
	y := make([]int, len(docs))
	for i, d := range docs {
		if d.Label < 0 || d.Label >= k {
			return nil, nil, invalidInput("document %d has label %d outside [0,%d)", i, d.Label, k)
		}
		texts[i] = d.Text
		y[i] = d.Label
	}
	return texts, y, nil
}

func pick[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

// Train normalizes the corpus, makes a stratified split, fits the
// vectorizer on the training part only, trains every configured algorithm
// and evaluates each on the held-out part.
func (t *Trainer) Train(docs []LabeledDocument, labels []string) (*Model, *TrainingReport, error) {
	ctx := t.config.Context
	labelSpace, err := NewLabelSpace(labels, t.config.DisplayNames)
	if err != nil {
		return nil, nil, err
	}
	texts, y, err := validateDocuments(docs, labelSpace.Len())
	if err != nil {
		return nil, nil, err
	}

	normalizer := NewNormalizer(UsingNormalizerOptions(t.config.Normalizer))
	t.progress("normalize", 0, len(texts))
	tokens := normalizer.NormalizeAll(texts)
	t.progress("normalize", len(texts), len(texts))

	trainIdx, testIdx := StratifiedSplit(y, t.config.TestSplit, t.config.Seed)
	if len(trainIdx) == 0 {
		return nil, nil, ErrEmptyTrainingSet
	}

	t.progress("vectorize", 0, 1)
	vectorizer := NewVectorizer(t.config.Vectorizer)
	xTrain, err := vectorizer.FitTransform(pick(tokens, trainIdx))
	if err != nil {
		return nil, nil, fmt.Errorf("fit vectorizer: %w", err)
	}
	xTest, err := vectorizer.TransformAll(pick(tokens, testIdx))
	if err != nil {
		return nil, nil, err
	}
	yTrain, yTest := pick(y, trainIdx), pick(y, testIdx)
	t.progress("vectorize", 1, 1)

	info := TrainingInfo{
		TrainedAt:      time.Now().UTC(),
		TotalDocuments: len(docs),
		TrainDocuments: len(trainIdx),
		TestDocuments:  len(testIdx),
		Features:       vectorizer.Dim(),
		Labels:         labelSpace.Names(),
		Hyperparameters: Hyperparameters{
			Normalizer: normalizer.Options(),
			Vectorizer: vectorizer.Config(),
			NaiveBayes: t.config.NaiveBayes,
			SVM:        t.config.SVM,
			Forest:     t.config.Forest,
			TestSplit:  t.config.TestSplit,
			Seed:       t.config.Seed,
		},
	}
	report := &TrainingReport{Evaluations: make(map[Algorithm]*Metrics)}

	algs := t.algorithms()
	var classifiers []ProbabilisticClassifier
	for i, alg := range algs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		t.progress(string(alg), i, len(algs))

		start := time.Now()
		c, err := TrainClassifier(ctx, alg, xTrain, yTrain, labelSpace.Len(), t.config)
		if err != nil {
			return nil, nil, fmt.Errorf("train %s: %w", alg, err)
		}
		trainingTime := time.Since(start)
		stats := statsOf(c)
		for _, w := range stats.Warnings {
			if t.config.WarningCallback != nil {
				t.config.WarningCallback(w)
			}
		}

		start = time.Now()
		yPred, err := predictAll(c, xTest)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate %s: %w", alg, err)
		}
		predictionTime := time.Since(start)
		metrics, err := Evaluate(yTest, yPred, labelSpace.Names())
		if err != nil {
			return nil, nil, err
		}

		report.Evaluations[alg] = metrics
		info.Results = append(info.Results, TrainingMetrics{
			Algorithm:      alg,
			Accuracy:       metrics.Accuracy,
			MacroF1:        metrics.Macro.F1,
			WeightedF1:     metrics.Weighted.F1,
			TrainingTime:   trainingTime,
			PredictionTime: predictionTime,
			Iterations:     stats.Iterations,
			Converged:      stats.Converged,
			Warnings:       stats.Warnings,
		})
		classifiers = append(classifiers, c)
		t.progress(string(alg), i+1, len(algs))
	}
	info.BestAccuracy, info.FastestTraining = summarize(info.Results)
	report.Info = info

	model, err := NewModel(t.config.Name, normalizer, vectorizer, labelSpace, classifiers, info)
	if err != nil {
		return nil, nil, err
	}
	return model, report, nil
}

// summarize picks the most accurate and the fastest-training algorithm.
// Earlier entries win ties.
func summarize(results []TrainingMetrics) (best, fastest Algorithm) {
	if len(results) == 0 {
		return "", ""
	}
	b, f := 0, 0
	for i, r := range results {
		if r.Accuracy > results[b].Accuracy {
			b = i
		}
		if r.TrainingTime < results[f].TrainingTime {
			f = i
		}
	}
	return results[b].Algorithm, results[f].Algorithm
}

func predictAll(c Classifier, X []SparseVector) ([]int, error) {
	out := make([]int, len(X))
	for i, x := range X {
		p, err := c.Predict(x)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// CrossValidate performs stratified k-fold cross-validation of every
// configured algorithm. Each fold fits its own vectorizer on the training
// folds.
func (t *Trainer) CrossValidate(docs []LabeledDocument, labels []string, k int) ([]CrossValidationResult, error) {
	if k <= 1 {
		return nil, invalidInput("k must be greater than 1")
	}
	if len(docs) < k {
		return nil, invalidInput("%d documents cannot fill %d folds", len(docs), k)
	}
	texts, y, err := validateDocuments(docs, len(labels))
	if err != nil {
		return nil, err
	}

	normalizer := NewNormalizer(UsingNormalizerOptions(t.config.Normalizer))
	tokens := normalizer.NormalizeAll(texts)
	folds := StratifiedKFold(y, k, t.config.Seed)

	algs := t.algorithms()
	perAlg := make(map[Algorithm][]ValidationResult, len(algs))
	for fold := 0; fold < k; fold++ {
		if err := t.config.Context.Err(); err != nil {
			return nil, err
		}
		t.progress("fold", fold, k)

		var trainIdx []int
		for other := 0; other < k; other++ {
			if other != fold {
				trainIdx = append(trainIdx, folds[other]...)
			}
		}
		sort.Ints(trainIdx)
		testIdx := folds[fold]

		vectorizer := NewVectorizer(t.config.Vectorizer)
		xTrain, err := vectorizer.FitTransform(pick(tokens, trainIdx))
		if err != nil {
			return nil, fmt.Errorf("fold %d: fit vectorizer: %w", fold, err)
		}
		xTest, err := vectorizer.TransformAll(pick(tokens, testIdx))
		if err != nil {
			return nil, err
		}
		yTrain, yTest := pick(y, trainIdx), pick(y, testIdx)

		for _, alg := range algs {
			c, err := TrainClassifier(t.config.Context, alg, xTrain, yTrain, len(labels), t.config)
			if err != nil {
				return nil, fmt.Errorf("fold %d: train %s: %w", fold, alg, err)
			}
			yPred, err := predictAll(c, xTest)
			if err != nil {
				return nil, err
			}
			m, err := Evaluate(yTest, yPred, labels)
			if err != nil {
				return nil, err
			}
			perAlg[alg] = append(perAlg[alg], ValidationResult{
				Accuracy:  m.Accuracy,
				F1Score:   m.Macro.F1,
				Precision: m.Macro.Precision,
				Recall:    m.Macro.Recall,
			})
		}
	}
	t.progress("fold", k, k)

	results := make([]CrossValidationResult, 0, len(algs))
	for _, alg := range algs {
		folds := perAlg[alg]
		acc := make([]float64, len(folds))
		f1 := make([]float64, len(folds))
		for i, r := range folds {
			acc[i], f1[i] = r.Accuracy, r.F1Score
		}
		res := CrossValidationResult{Algorithm: alg, FoldResults: folds}
		res.MeanAccuracy, res.StdAccuracy = stat.MeanStdDev(acc, nil)
		res.MeanF1, res.StdF1 = stat.MeanStdDev(f1, nil)
		results = append(results, res)
	}
	return results, nil
}
