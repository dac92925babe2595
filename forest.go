package classify

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// ForestConfig controls the bagged tree ensemble.
type ForestConfig struct {
	Estimators      int       `json:"estimators" yaml:"estimators"`
	MaxDepth        int       `json:"max_depth" yaml:"max_depth"` // 0 means unbounded
	MinSamplesSplit int       `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     int       `json:"max_features" yaml:"max_features"` // 0 means sqrt(dim)
	Criterion       Criterion `json:"criterion" yaml:"criterion"`
	Seed            int64     `json:"seed" yaml:"seed"`
	Workers         int       `json:"-" yaml:"workers"`
}

// DefaultForestConfig returns 100 unbounded Gini trees.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Estimators:      100,
		MinSamplesSplit: 2,
		Criterion:       Gini,
		Seed:            42,
	}
}

// RandomForest is a majority-vote ensemble of CART trees, each grown on a
// bootstrap sample.
type RandomForest struct {
	config     ForestConfig
	dim        int
	vocab      string
	classCount []int
	trees      []*decisionTree
	stats      TrainingStats
}

// TrainRandomForest grows the trees on a worker pool. Tree i draws from its
// own generator seeded with Seed+i, so the result does not depend on
// scheduling.
func TrainRandomForest(ctx context.Context, X []SparseVector, y []int, numClasses int, config ForestConfig) (*RandomForest, error) {
	start := time.Now()
	if config.Estimators < 1 {
		return nil, invalidInput("forest needs at least one estimator, got %d", config.Estimators)
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if config.Criterion == "" {
		config.Criterion = Gini
	}
	if config.Criterion != Gini && config.Criterion != Entropy {
		return nil, invalidInput("unknown split criterion %q", config.Criterion)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dim, err := validateTrainingSet(X, y, numClasses)
	if err != nil {
		return nil, err
	}

	mtry := config.MaxFeatures
	if mtry <= 0 {
		mtry = max(1, int(math.Sqrt(float64(dim))))
	}

	workers := config.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	trees := make([]*decisionTree, config.Estimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(config.Seed + int64(i)))
			sample := make([]int, len(X))
			for j := range sample {
				sample[j] = rng.Intn(len(X))
			}
			b := &treeBuilder{
				X:               X,
				y:               y,
				numClasses:      numClasses,
				maxDepth:        config.MaxDepth,
				minSamplesSplit: config.MinSamplesSplit,
				maxFeatures:     mtry,
				criterion:       config.Criterion,
				rng:             rng,
			}
			trees[i] = b.build(sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rf := &RandomForest{
		config:     config,
		dim:        dim,
		vocab:      X[0].Vocabulary,
		classCount: countClasses(y, numClasses),
		trees:      trees,
	}
	rf.stats = TrainingStats{TrainingTime: time.Since(start), Iterations: len(trees), Converged: true}
	return rf, nil
}

func (rf *RandomForest) Algorithm() Algorithm  { return RandomForestAlgorithm }
func (rf *RandomForest) NumClasses() int       { return len(rf.classCount) }
func (rf *RandomForest) Dim() int              { return rf.dim }
func (rf *RandomForest) Vocabulary() string    { return rf.vocab }
func (rf *RandomForest) Stats() TrainingStats  { return rf.stats }
func (rf *RandomForest) Config() ForestConfig  { return rf.config }
func (rf *RandomForest) NumTrees() int         { return len(rf.trees) }
func (rf *RandomForest) ClassPrior() []float64 { return priorDistribution(rf.classCount) }

// MaxTreeDepth returns the depth of the deepest tree.
func (rf *RandomForest) MaxTreeDepth() int {
	d := 0
	for _, t := range rf.trees {
		d = max(d, t.depth())
	}
	return d
}

func (rf *RandomForest) votes(x SparseVector) ([]float64, error) {
	if err := checkVector(x, rf.dim, rf.vocab); err != nil {
		return nil, err
	}
	v := make([]float64, len(rf.classCount))
	for _, t := range rf.trees {
		v[t.predict(x)]++
	}
	return v, nil
}

// Predict returns the majority vote, the lowest id on ties. An all-zero
// vector returns the majority training class.
func (rf *RandomForest) Predict(x SparseVector) (int, error) {
	if err := checkVector(x, rf.dim, rf.vocab); err != nil {
		return 0, err
	}
	if x.IsZero() {
		return argmax(rf.ClassPrior()), nil
	}
	v, err := rf.votes(x)
	if err != nil {
		return 0, err
	}
	return argmax(v), nil
}

// PredictProbability returns the fraction of trees voting for each class.
func (rf *RandomForest) PredictProbability(x SparseVector) ([]float64, error) {
	if err := checkVector(x, rf.dim, rf.vocab); err != nil {
		return nil, err
	}
	if x.IsZero() {
		return rf.ClassPrior(), nil
	}
	v, err := rf.votes(x)
	if err != nil {
		return nil, err
	}
	n := float64(len(rf.trees))
	for c := range v {
		v[c] /= n
	}
	return v, nil
}
