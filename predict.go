package classify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Prediction is one algorithm's answer for a document.
type Prediction struct {
	Algorithm       Algorithm     `json:"algorithm"`
	AlgorithmName   string        `json:"algorithm_name"`
	LabelID         int           `json:"label_id"`
	Label           string        `json:"label"`
	DisplayLabel    string        `json:"display_label"`
	Probabilities   []float64     `json:"probabilities"`
	Confidence      float64       `json:"confidence"`
	ConfidenceLevel string        `json:"confidence_level"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Timing breaks down where the time of one request went.
type Timing struct {
	Preprocessing time.Duration `json:"preprocessing"`
	Vectorization time.Duration `json:"vectorization"`
	Total         time.Duration `json:"total"`
}

// Result is the full answer for one document.
type Result struct {
	ID            string       `json:"id,omitempty"` // set by callers that track requests
	Predictions   []Prediction `json:"predictions"`
	Labels        []string     `json:"labels"`
	DisplayLabels []string     `json:"display_labels"`
	Timing        Timing       `json:"timing"`
	TextLength    int          `json:"text_length"`
	TokenCount    int          `json:"token_count"`
	SentenceCount int          `json:"sentence_count"`
	Features      int          `json:"features"` // non-zero features in the document vector
}

// Consensus is the label most algorithms agreed on.
type Consensus struct {
	LabelID      int    `json:"label_id"`
	Label        string `json:"label"`
	DisplayLabel string `json:"display_label"`
	Votes        int    `json:"votes"`
	Of           int    `json:"of"`
}

// Consensus returns the majority label across algorithms. Ties go to the
// larger summed confidence and then to the lowest id.
func (r *Result) Consensus() (Consensus, bool) {
	if len(r.Predictions) == 0 {
		return Consensus{}, false
	}
	votes := make(map[int]int)
	conf := make(map[int]float64)
	for _, p := range r.Predictions {
		votes[p.LabelID]++
		conf[p.LabelID] += p.Confidence
	}
	best := r.Predictions[0]
	for _, p := range r.Predictions[1:] {
		id, b := p.LabelID, best.LabelID
		switch {
		case votes[id] > votes[b],
			votes[id] == votes[b] && conf[id] > conf[b],
			votes[id] == votes[b] && conf[id] == conf[b] && id < b:
			best = p
		}
	}
	return Consensus{
		LabelID:      best.LabelID,
		Label:        best.Label,
		DisplayLabel: best.DisplayLabel,
		Votes:        votes[best.LabelID],
		Of:           len(r.Predictions),
	}, true
}

// Classify runs every classifier in the model on text concurrently. Empty
// or unrecognizable text is not an error: it yields the prior class.
func (m *Model) Classify(ctx context.Context, text string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	doc, err := NewDocument(text, UsingNormalizer(m.normalizer), WithContext(ctx))
	if err != nil {
		return nil, err
	}
	prep := time.Since(start)

	vstart := time.Now()
	x, err := m.vectorizer.Transform(doc.Tokens())
	if err != nil {
		return nil, err
	}
	vec := time.Since(vstart)

	preds := make([]Prediction, len(m.classifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range m.classifiers {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := m.predictOne(c, x)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Algorithm(), err)
			}
			preds[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Predictions:   preds,
		Labels:        m.labels.Names(),
		DisplayLabels: m.labels.DisplayNames(),
		Timing:        Timing{Preprocessing: prep, Vectorization: vec, Total: time.Since(start)},
		TextLength:    doc.Metadata.CharCount,
		TokenCount:    doc.Metadata.TokenCount,
		SentenceCount: doc.Metadata.SentenceCount,
		Features:      x.NNZ(),
	}, nil
}

func (m *Model) predictOne(c ProbabilisticClassifier, x SparseVector) (Prediction, error) {
	start := time.Now()
	id, err := c.Predict(x)
	if err != nil {
		return Prediction{}, err
	}
	probs, err := c.PredictProbability(x)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Algorithm:       c.Algorithm(),
		AlgorithmName:   c.Algorithm().DisplayName(),
		LabelID:         id,
		Label:           m.labels.Name(id),
		DisplayLabel:    m.labels.DisplayName(id),
		Probabilities:   probs,
		Confidence:      probs[id],
		ConfidenceLevel: Grade(probs[id]),
		Elapsed:         time.Since(start),
	}, nil
}

// A Predictor serves classifications from the currently published Model.
// Swapping in a retrained model is atomic: a request sees either the old
// model or the new one, never a mix.
type Predictor struct {
	model atomic.Pointer[Model]
}

// NewPredictor creates a Predictor. m may be nil until a model is loaded.
func NewPredictor(m *Model) *Predictor {
	p := &Predictor{}
	if m != nil {
		p.model.Store(m)
	}
	return p
}

// Model returns the published model, or nil.
func (p *Predictor) Model() *Model {
	return p.model.Load()
}

// Swap publishes m and returns the model it replaced.
func (p *Predictor) Swap(m *Model) *Model {
	return p.model.Swap(m)
}

// Classify classifies text with the published model. It returns
// ErrNotFitted when no model has been loaded.
func (p *Predictor) Classify(ctx context.Context, text string) (*Result, error) {
	m := p.model.Load()
	if m == nil {
		return nil, ErrNotFitted
	}
	return m.Classify(ctx, text)
}
