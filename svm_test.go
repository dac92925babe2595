package classify

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestLinearSVMSeparable(t *testing.T) {
	X, y := blobs(3, 8, 5)
	m, err := TrainLinearSVM(context.Background(), X, y, 3, DefaultSVMConfig())
	if err != nil {
		t.Fatal(err)
	}
	if acc := trainingAccuracy(t, m, X, y); acc != 1 {
		t.Errorf("training accuracy = %v, want 1", acc)
	}
	if len(m.pairs) != 3 {
		t.Errorf("got %d pairwise machines, want 3", len(m.pairs))
	}
	if !m.Stats().Converged || len(m.Warnings()) != 0 {
		t.Errorf("expected convergence, got warnings %v", m.Warnings())
	}

	for i, x := range X {
		probs, err := m.PredictProbability(x)
		if err != nil {
			t.Fatal(err)
		}
		assertDistribution(t, probs, 3)
		if argmax(probs) != y[i] {
			t.Errorf("doc %d: probabilities %v do not favour class %d", i, probs, y[i])
		}
	}
}

func TestLinearSVMDeterministic(t *testing.T) {
	X, y := blobs(3, 6, 9)
	cfg := DefaultSVMConfig()
	cfg.Workers = 1
	a, err := TrainLinearSVM(context.Background(), X, y, 3, cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workers = 4
	b, err := TrainLinearSVM(context.Background(), X, y, 3, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range X {
		da, _ := a.DecisionValues(x)
		db, _ := b.DecisionValues(x)
		if !reflect.DeepEqual(da, db) {
			t.Fatalf("decision values differ between runs: %v vs %v", da, db)
		}
	}
}

func TestLinearSVMConvergenceWarning(t *testing.T) {
	X, y := blobs(2, 10, 3)
	cfg := DefaultSVMConfig()
	cfg.MaxIter = 1
	cfg.Tolerance = 1e-9
	m, err := TrainLinearSVM(context.Background(), X, y, 2, cfg)
	if err != nil {
		t.Fatal(err)
	}
	warnings := m.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	w := warnings[0]
	if w.Algorithm != LinearSVMAlgorithm || w.Classes != [2]int{0, 1} || w.Iterations != 1 {
		t.Errorf("unexpected warning %+v", w)
	}
	if m.Stats().Converged {
		t.Error("stats should report non-convergence")
	}
	// the model is still usable
	if _, err := m.Predict(X[0]); err != nil {
		t.Error(err)
	}
}

func TestLinearSVMMissingClass(t *testing.T) {
	// class 2 has no training documents
	X, y := blobs(2, 5, 4)
	for i := range X {
		X[i].Dim = 8
	}
	m, err := TrainLinearSVM(context.Background(), X, y, 3, DefaultSVMConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range X {
		got, err := m.Predict(x)
		if err != nil {
			t.Fatal(err)
		}
		if got != y[i] {
			t.Errorf("doc %d: Predict = %d, want %d", i, got, y[i])
		}
		probs, err := m.PredictProbability(x)
		if err != nil {
			t.Fatal(err)
		}
		assertDistribution(t, probs, 3)
		if probs[2] >= probs[y[i]] {
			t.Errorf("doc %d: absent class outranks the true class: %v", i, probs)
		}
	}
}

func TestSigmoidTrain(t *testing.T) {
	dec := []float64{2, 1.5, 1, -1, -1.5, -2}
	labels := []float64{1, 1, 1, -1, -1, -1}
	a, b := sigmoidTrain(dec, labels)
	if a >= 0 {
		t.Errorf("slope A = %v, want negative for positively oriented margins", a)
	}
	if p := sigmoidPredict(2, a, b); p <= 0.5 {
		t.Errorf("P(+|2) = %v, want > 0.5", p)
	}
	if p := sigmoidPredict(-2, a, b); p >= 0.5 {
		t.Errorf("P(+|-2) = %v, want < 0.5", p)
	}
}

func TestLinearSVMConfigErrors(t *testing.T) {
	X, y := blobs(2, 2, 1)
	tests := []struct {
		name string
		cfg  SVMConfig
	}{
		{"zero C", SVMConfig{C: 0, MaxIter: 10}},
		{"negative C", SVMConfig{C: -1, MaxIter: 10}},
		{"no iterations", SVMConfig{C: 1, MaxIter: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainLinearSVM(context.Background(), X, y, 2, tt.cfg); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLinearSVMCancelled(t *testing.T) {
	X, y := blobs(3, 5, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := TrainLinearSVM(ctx, X, y, 3, DefaultSVMConfig()); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
