package classify

import (
	"encoding/json"
	"fmt"
)

const (
	formatName    = "classify"
	formatVersion = 2
)

// envelope wraps every persisted component with enough metadata to refuse
// loading it next to the wrong vocabulary.
type envelope struct {
	Format      string          `json:"format"`
	Version     int             `json:"version"`
	Algorithm   Algorithm       `json:"algorithm,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	Dim         int             `json:"dim"`
	Classes     int             `json:"classes,omitempty"`
	Params      json.RawMessage `json:"params"`
}

func (e *envelope) check() error {
	if e.Format != formatName || e.Version != formatVersion {
		return fmt.Errorf("%w: %q version %d", ErrUnsupportedFormat, e.Format, e.Version)
	}
	return nil
}

func sealEnvelope(alg Algorithm, fingerprint string, dim, classes int, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(envelope{
		Format:      formatName,
		Version:     formatVersion,
		Algorithm:   alg,
		Fingerprint: fingerprint,
		Dim:         dim,
		Classes:     classes,
		Params:      raw,
	}, "", "  ")
}

func openEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	return &env, nil
}

func sparseFromDense(w []float64) SparseVector {
	v := SparseVector{Dim: len(w)}
	for i, x := range w {
		if x != 0 {
			v.Indices = append(v.Indices, i)
			v.Values = append(v.Values, x)
		}
	}
	return v
}

func denseFromSparse(v SparseVector, dim int) ([]float64, error) {
	if err := checkDim(v, dim); err != nil {
		return nil, err
	}
	if len(v.Indices) != len(v.Values) {
		return nil, invalidInput("sparse row has %d indices but %d values", len(v.Indices), len(v.Values))
	}
	return v.Dense(), nil
}

type vectorizerParams struct {
	Config     VectorizerConfig `json:"config"`
	Vocabulary *Vocabulary      `json:"vocabulary"`
}

func encodeVectorizer(v *Vectorizer) ([]byte, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	return sealEnvelope("", v.Fingerprint(), v.Dim(), 0, vectorizerParams{Config: v.Config(), Vocabulary: v.Vocabulary()})
}

func decodeVectorizer(data []byte) (*Vectorizer, error) {
	env, err := openEnvelope(data)
	if err != nil {
		return nil, err
	}
	var p vectorizerParams
	if err := json.Unmarshal(env.Params, &p); err != nil {
		return nil, fmt.Errorf("decode vectorizer: %w", err)
	}
	v, err := NewFittedVectorizer(p.Config, p.Vocabulary)
	if err != nil {
		return nil, err
	}
	if v.Fingerprint() != env.Fingerprint {
		return nil, fmt.Errorf("%w: vectorizer terms do not match recorded fingerprint", ErrVocabularyMismatch)
	}
	return v, nil
}

type naiveBayesParams struct {
	Alpha        float64        `json:"alpha"`
	ClassCount   []int          `json:"class_count"`
	FeatureCount []SparseVector `json:"feature_count"`
}

type svmPairParams struct {
	A          int          `json:"a"`
	B          int          `json:"b"`
	W          SparseVector `json:"w"`
	Bias       float64      `json:"bias"`
	PlattA     float64      `json:"platt_a"`
	PlattB     float64      `json:"platt_b"`
	Iterations int          `json:"iterations"`
	Converged  bool         `json:"converged"`
	Gap        float64      `json:"gap"`
}

type svmParams struct {
	Config     SVMConfig       `json:"config"`
	ClassCount []int           `json:"class_count"`
	Pairs      []svmPairParams `json:"pairs"`
}

type forestParams struct {
	Config     ForestConfig    `json:"config"`
	ClassCount []int           `json:"class_count"`
	Trees      []*decisionTree `json:"trees"`
}

// encodeClassifier serializes c bound to the vocabulary it was trained on.
func encodeClassifier(c ProbabilisticClassifier) ([]byte, error) {
	fingerprint := c.Vocabulary()
	switch m := c.(type) {
	case *NaiveBayes:
		p := naiveBayesParams{Alpha: m.alpha, ClassCount: m.classCount}
		for _, row := range m.featureCount {
			p.FeatureCount = append(p.FeatureCount, sparseFromDense(row))
		}
		return sealEnvelope(m.Algorithm(), fingerprint, m.dim, m.NumClasses(), p)
	case *LinearSVM:
		p := svmParams{Config: m.config, ClassCount: m.classCount}
		for _, pair := range m.pairs {
			p.Pairs = append(p.Pairs, svmPairParams{
				A: pair.A, B: pair.B, W: sparseFromDense(pair.W), Bias: pair.Bias,
				PlattA: pair.PlattA, PlattB: pair.PlattB,
				Iterations: pair.Iterations, Converged: pair.Converged, Gap: pair.Gap,
			})
		}
		return sealEnvelope(m.Algorithm(), fingerprint, m.dim, m.NumClasses(), p)
	case *RandomForest:
		p := forestParams{Config: m.config, ClassCount: m.classCount, Trees: m.trees}
		return sealEnvelope(m.Algorithm(), fingerprint, m.dim, m.NumClasses(), p)
	}
	return nil, fmt.Errorf("%w: cannot encode %T", ErrUnsupportedFormat, c)
}

// decodeClassifier restores a classifier and checks it against the
// vocabulary it will be paired with.
func decodeClassifier(data []byte, fingerprint string, dim int) (ProbabilisticClassifier, error) {
	env, err := openEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: %s was trained on a different vocabulary", ErrVocabularyMismatch, env.Algorithm)
	}
	if env.Dim != dim {
		return nil, &DimensionMismatchError{Expected: dim, Got: env.Dim}
	}

	switch env.Algorithm {
	case NaiveBayesAlgorithm:
		var p naiveBayesParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Algorithm, err)
		}
		if len(p.FeatureCount) != len(p.ClassCount) || p.Alpha <= 0 {
			return nil, invalidInput("naive bayes parameters are inconsistent")
		}
		nb := &NaiveBayes{alpha: p.Alpha, dim: dim, vocab: env.Fingerprint, classCount: p.ClassCount}
		for _, row := range p.FeatureCount {
			dense, err := denseFromSparse(row, dim)
			if err != nil {
				return nil, err
			}
			nb.featureCount = append(nb.featureCount, dense)
		}
		nb.computeLogProbabilities()
		nb.stats = TrainingStats{Iterations: 1, Converged: true}
		return nb, nil

	case LinearSVMAlgorithm:
		var p svmParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Algorithm, err)
		}
		k := len(p.ClassCount)
		if len(p.Pairs) != k*(k-1)/2 {
			return nil, invalidInput("svm has %d pairs for %d classes", len(p.Pairs), k)
		}
		m := &LinearSVM{config: p.Config, dim: dim, vocab: env.Fingerprint, classCount: p.ClassCount}
		m.stats.Converged = true
		for _, pp := range p.Pairs {
			w, err := denseFromSparse(pp.W, dim)
			if err != nil {
				return nil, err
			}
			pair := &svmPair{A: pp.A, B: pp.B, W: w, Bias: pp.Bias, PlattA: pp.PlattA, PlattB: pp.PlattB,
				Iterations: pp.Iterations, Converged: pp.Converged, Gap: pp.Gap}
			m.pairs = append(m.pairs, pair)
			m.stats.Iterations = max(m.stats.Iterations, pp.Iterations)
			if !pp.Converged {
				m.stats.Converged = false
				m.stats.Warnings = append(m.stats.Warnings, ConvergenceWarning{
					Algorithm: LinearSVMAlgorithm, Classes: [2]int{pp.A, pp.B}, Iterations: pp.Iterations, Gap: pp.Gap,
				})
			}
		}
		return m, nil

	case RandomForestAlgorithm:
		var p forestParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Algorithm, err)
		}
		if len(p.Trees) == 0 {
			return nil, invalidInput("random forest has no trees")
		}
		for _, t := range p.Trees {
			if err := t.validate(dim, len(p.ClassCount)); err != nil {
				return nil, err
			}
		}
		rf := &RandomForest{config: p.Config, dim: dim, vocab: env.Fingerprint, classCount: p.ClassCount, trees: p.Trees}
		rf.stats = TrainingStats{Iterations: len(p.Trees), Converged: true}
		return rf, nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %q", ErrUnsupportedFormat, env.Algorithm)
}
