package classify

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestModelClassify(t *testing.T) {
	model := trainedModel(t)

	res, err := model.Classify(context.Background(), "Astronauts waited for the rocket launch. The moon was up.")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Predictions) != 3 {
		t.Fatalf("got %d predictions, want 3", len(res.Predictions))
	}
	for _, p := range res.Predictions {
		if p.Label != "sci.space" {
			t.Errorf("%s predicted %q, want sci.space", p.Algorithm, p.Label)
		}
		if p.DisplayLabel != "Science - Space" {
			t.Errorf("display label = %q", p.DisplayLabel)
		}
		assertDistribution(t, p.Probabilities, 3)
		if p.Confidence != p.Probabilities[p.LabelID] {
			t.Errorf("confidence %v is not the probability of label %d", p.Confidence, p.LabelID)
		}
		if p.ConfidenceLevel != Grade(p.Confidence) {
			t.Errorf("confidence level %q for %v", p.ConfidenceLevel, p.Confidence)
		}
		if p.AlgorithmName != p.Algorithm.DisplayName() {
			t.Errorf("algorithm name %q", p.AlgorithmName)
		}
	}
	if res.SentenceCount != 2 {
		t.Errorf("sentence count = %d, want 2", res.SentenceCount)
	}
	if res.Features == 0 || res.TokenCount == 0 {
		t.Errorf("features %d tokens %d", res.Features, res.TokenCount)
	}

	c, ok := res.Consensus()
	if !ok || c.Label != "sci.space" || c.Votes != 3 || c.Of != 3 {
		t.Errorf("consensus = %+v, %v", c, ok)
	}
}

func TestModelClassifyEmptyText(t *testing.T) {
	model := trainedModel(t)
	for _, text := range []string{"", "   ", "!!! ???", "xylophone quartz"} {
		res, err := model.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify(%q): %v", text, err)
		}
		if res.Features != 0 {
			t.Errorf("%q: %d features, want 0", text, res.Features)
		}
		for _, p := range res.Predictions {
			assertDistribution(t, p.Probabilities, 3)
			// balanced training classes, so the prior tie goes to id 0
			if p.LabelID != 0 {
				t.Errorf("%q: %s predicted %d, want the prior class 0", text, p.Algorithm, p.LabelID)
			}
		}
	}
}

func TestModelClassifyCancelled(t *testing.T) {
	model := trainedModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := model.Classify(ctx, "rocket"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestConsensusTies(t *testing.T) {
	res := &Result{Predictions: []Prediction{
		{LabelID: 2, Label: "c", Confidence: 0.6},
		{LabelID: 1, Label: "b", Confidence: 0.9},
	}}
	c, ok := res.Consensus()
	if !ok || c.LabelID != 1 || c.Votes != 1 {
		t.Errorf("higher confidence should win a tied vote, got %+v", c)
	}

	res.Predictions[1].Confidence = 0.6
	if c, _ := res.Consensus(); c.LabelID != 1 {
		t.Errorf("lowest id should win a full tie, got %+v", c)
	}

	if _, ok := (&Result{}).Consensus(); ok {
		t.Error("no predictions should give no consensus")
	}
}

func TestPredictor(t *testing.T) {
	p := NewPredictor(nil)
	if _, err := p.Classify(context.Background(), "rocket"); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("got %v, want ErrNotFitted", err)
	}

	model := trainedModel(t)
	if old := p.Swap(model); old != nil {
		t.Errorf("Swap returned %v, want nil", old)
	}
	if p.Model() != model {
		t.Error("Model should return the published model")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Classify(context.Background(), "hockey season playoff goal")
			if err != nil {
				t.Error(err)
				return
			}
			if c, _ := res.Consensus(); c.Label != "rec.sport.hockey" {
				t.Errorf("consensus = %+v", c)
			}
		}()
	}
	p.Swap(model)
	wg.Wait()
}

func TestGrade(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.95, "high"},
		{0.9, "high"},
		{0.75, "medium"},
		{0.55, "low"},
		{0.2, "uncertain"},
	}
	for _, tt := range tests {
		if got := Grade(tt.p); got != tt.want {
			t.Errorf("Grade(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
