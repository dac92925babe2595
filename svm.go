package classify

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// SVMConfig controls the one-vs-one linear SVM.
type SVMConfig struct {
	C         float64 `json:"c" yaml:"c"`
	MaxIter   int     `json:"max_iter" yaml:"max_iter"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
	Seed      int64   `json:"seed" yaml:"seed"`
	Workers   int     `json:"-" yaml:"workers"`
}

// DefaultSVMConfig returns C = 1, 2000 passes and tolerance 1e-3.
func DefaultSVMConfig() SVMConfig {
	return SVMConfig{C: 1.0, MaxIter: 2000, Tolerance: 1e-3, Seed: 42}
}

// svmPair is the binary machine separating class A (+1) from class B (-1).
type svmPair struct {
	A, B       int
	W          []float64
	Bias       float64
	PlattA     float64
	PlattB     float64
	Iterations int
	Converged  bool
	Gap        float64
}

func (p *svmPair) decision(x SparseVector) float64 {
	return x.Dot(p.W) + p.Bias
}

// probability returns P(A wins | decision value f).
func (p *svmPair) probability(f float64) float64 {
	return sigmoidPredict(f, p.PlattA, p.PlattB)
}

// LinearSVM is a soft-margin linear SVM extended to K classes by one-vs-one
// voting. Probabilities come from per-pair Platt scaling combined by
// normalized pairwise summation.
type LinearSVM struct {
	config     SVMConfig
	dim        int
	vocab      string
	classCount []int
	pairs      []*svmPair
	stats      TrainingStats
}

// TrainLinearSVM solves the K(K-1)/2 binary problems concurrently.
func TrainLinearSVM(ctx context.Context, X []SparseVector, y []int, numClasses int, config SVMConfig) (*LinearSVM, error) {
	start := time.Now()
	if config.C <= 0 {
		return nil, invalidInput("svm C must be positive, got %g", config.C)
	}
	if config.MaxIter < 1 {
		return nil, invalidInput("svm max_iter must be at least 1, got %d", config.MaxIter)
	}
	if config.Tolerance <= 0 {
		config.Tolerance = 1e-3
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dim, err := validateTrainingSet(X, y, numClasses)
	if err != nil {
		return nil, err
	}

	byClass := make([][]int, numClasses)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}

	var pairs []*svmPair
	for a := 0; a < numClasses; a++ {
		for b := a + 1; b < numClasses; b++ {
			pairs = append(pairs, &svmPair{A: a, B: b})
		}
	}

	workers := config.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			rng := rand.New(rand.NewSource(config.Seed + int64(i)))
			return trainPair(gctx, p, X, byClass[p.A], byClass[p.B], dim, config, rng)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &LinearSVM{
		config:     config,
		dim:        dim,
		vocab:      X[0].Vocabulary,
		classCount: countClasses(y, numClasses),
		pairs:      pairs,
	}
	m.stats = TrainingStats{TrainingTime: time.Since(start), Converged: true}
	for _, p := range pairs {
		if p.Iterations > m.stats.Iterations {
			m.stats.Iterations = p.Iterations
		}
		if !p.Converged {
			m.stats.Converged = false
			m.stats.Warnings = append(m.stats.Warnings, ConvergenceWarning{
				Algorithm:  LinearSVMAlgorithm,
				Classes:    [2]int{p.A, p.B},
				Iterations: p.Iterations,
				Gap:        p.Gap,
			})
		}
	}
	return m, nil
}

// trainPair runs dual coordinate descent for the L1-loss SVM with the bias
// folded in as a constant feature, then fits the Platt sigmoid.
func trainPair(ctx context.Context, p *svmPair, X []SparseVector, pos, neg []int, dim int, config SVMConfig, rng *rand.Rand) error {
	p.W = make([]float64, dim)
	switch {
	case len(pos) == 0 && len(neg) == 0:
		p.Converged = true
		return nil
	case len(neg) == 0:
		p.Bias, p.PlattA, p.PlattB, p.Converged = 1, 0, -20, true
		return nil
	case len(pos) == 0:
		p.Bias, p.PlattA, p.PlattB, p.Converged = -1, 0, 20, true
		return nil
	}

	idx := make([]int, 0, len(pos)+len(neg))
	idx = append(idx, pos...)
	idx = append(idx, neg...)
	l := len(idx)
	yy := make([]float64, l)
	qd := make([]float64, l)
	for s, i := range idx {
		if s < len(pos) {
			yy[s] = 1
		} else {
			yy[s] = -1
		}
		qd[s] = X[i].SquaredNorm() + 1
	}

	c := config.C
	alpha := make([]float64, l)
	order := make([]int, l)
	for s := range order {
		order[s] = s
	}

	active := l
	pgMaxOld, pgMinOld := math.Inf(1), math.Inf(-1)
	iter := 0
	for iter < config.MaxIter {
		if err := ctx.Err(); err != nil {
			return err
		}
		iter++
		rng.Shuffle(active, func(i, j int) { order[i], order[j] = order[j], order[i] })

		pgMaxNew, pgMinNew := math.Inf(-1), math.Inf(1)
		for s := 0; s < active; s++ {
			k := order[s]
			x := X[idx[k]]
			g := yy[k]*(x.Dot(p.W)+p.Bias) - 1

			pg := 0.0
			switch {
			case alpha[k] == 0:
				if g > pgMaxOld {
					active--
					order[s], order[active] = order[active], order[s]
					s--
					continue
				}
				if g < 0 {
					pg = g
				}
			case alpha[k] == c:
				if g < pgMinOld {
					active--
					order[s], order[active] = order[active], order[s]
					s--
					continue
				}
				if g > 0 {
					pg = g
				}
			default:
				pg = g
			}

			pgMaxNew = math.Max(pgMaxNew, pg)
			pgMinNew = math.Min(pgMinNew, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[k]
				alpha[k] = math.Min(math.Max(alpha[k]-g/qd[k], 0), c)
				d := (alpha[k] - old) * yy[k]
				x.AddScaledTo(p.W, d)
				p.Bias += d
			}
		}

		gap := pgMaxNew - pgMinNew
		if !math.IsInf(gap, 0) {
			p.Gap = gap
		}
		if gap <= config.Tolerance {
			if active == l {
				p.Converged = true
				break
			}
			// shrunk problem solved; recheck every sample
			active = l
			pgMaxOld, pgMinOld = math.Inf(1), math.Inf(-1)
			continue
		}
		pgMaxOld, pgMinOld = pgMaxNew, pgMinNew
		if pgMaxOld <= 0 {
			pgMaxOld = math.Inf(1)
		}
		if pgMinOld >= 0 {
			pgMinOld = math.Inf(-1)
		}
	}
	p.Iterations = iter

	dec := make([]float64, l)
	for s, i := range idx {
		dec[s] = p.decision(X[i])
	}
	p.PlattA, p.PlattB = sigmoidTrain(dec, yy)
	return nil
}

// sigmoidTrain fits P(y=+1|f) = 1/(1+exp(A*f+B)) by Newton's method with
// backtracking line search on regularized targets.
func sigmoidTrain(dec, labels []float64) (float64, float64) {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	var prior1, prior0 float64
	for _, y := range labels {
		if y > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(labels))
	for i, y := range labels {
		if y > 0 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	objective := func(a, b float64) float64 {
		var f float64
		for i, d := range dec {
			fApB := d*a + b
			if fApB >= 0 {
				f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}

	a, b := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)
	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21, g1, g2 := sigma, sigma, 0.0, 0.0, 0.0
		for i, d := range dec {
			fApB := d*a + b
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p, q = e/(1+e), 1/(1+e)
			} else {
				e := math.Exp(fApB)
				p, q = 1/(1+e), e/(1+e)
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := a+step*dA, b+step*dB
			newf := objective(newA, newB)
			if newf < fval+0.0001*step*gd {
				a, b, fval = newA, newB, newf
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return a, b
}

func sigmoidPredict(f, a, b float64) float64 {
	fApB := f*a + b
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}

func (m *LinearSVM) Algorithm() Algorithm  { return LinearSVMAlgorithm }
func (m *LinearSVM) NumClasses() int       { return len(m.classCount) }
func (m *LinearSVM) Dim() int              { return m.dim }
func (m *LinearSVM) Vocabulary() string    { return m.vocab }
func (m *LinearSVM) Stats() TrainingStats  { return m.stats }
func (m *LinearSVM) Config() SVMConfig     { return m.config }
func (m *LinearSVM) ClassPrior() []float64 { return priorDistribution(m.classCount) }

// Warnings returns the pairs that stopped at the iteration limit.
func (m *LinearSVM) Warnings() []ConvergenceWarning {
	return m.stats.Warnings
}

// DecisionValues returns the signed margin of every pairwise machine, in
// (0,1), (0,2), ..., (K-2,K-1) order.
func (m *LinearSVM) DecisionValues(x SparseVector) ([]float64, error) {
	if err := checkVector(x, m.dim, m.vocab); err != nil {
		return nil, err
	}
	out := make([]float64, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.decision(x)
	}
	return out, nil
}

// Predict counts pairwise votes. Ties go to the larger cumulative margin
// and then to the lowest id. An all-zero vector returns the majority class.
func (m *LinearSVM) Predict(x SparseVector) (int, error) {
	dec, err := m.DecisionValues(x)
	if err != nil {
		return 0, err
	}
	k := len(m.classCount)
	if k == 1 || x.IsZero() {
		return argmax(m.ClassPrior()), nil
	}

	votes := make([]int, k)
	margin := make([]float64, k)
	for i, p := range m.pairs {
		if dec[i] > 0 {
			votes[p.A]++
		} else {
			votes[p.B]++
		}
		margin[p.A] += dec[i]
		margin[p.B] -= dec[i]
	}
	best := 0
	for c := 1; c < k; c++ {
		if votes[c] > votes[best] || (votes[c] == votes[best] && margin[c] > margin[best]) {
			best = c
		}
	}
	return best, nil
}

// PredictProbability returns p_i = 2/(K(K-1)) * sum_j r_ij where r_ij is the
// Platt-scaled probability that i beats j.
func (m *LinearSVM) PredictProbability(x SparseVector) ([]float64, error) {
	dec, err := m.DecisionValues(x)
	if err != nil {
		return nil, err
	}
	k := len(m.classCount)
	if k == 1 {
		return []float64{1}, nil
	}
	if x.IsZero() {
		return m.ClassPrior(), nil
	}

	const minProb = 1e-7
	probs := make([]float64, k)
	for i, p := range m.pairs {
		r := math.Min(math.Max(p.probability(dec[i]), minProb), 1-minProb)
		probs[p.A] += r
		probs[p.B] += 1 - r
	}
	scale := 2 / float64(k*(k-1))
	for c := range probs {
		probs[c] *= scale
	}
	return probs, nil
}
