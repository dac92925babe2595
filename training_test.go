package classify

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

var testTopics = []struct {
	name  string
	words []string
}{
	{"sci.space", []string{"rocket", "orbit", "launch", "satellite", "moon", "astronaut", "shuttle", "planet"}},
	{"rec.sport.hockey", []string{"hockey", "goal", "team", "season", "player", "coach", "puck", "playoff"}},
	{"comp.graphics", []string{"image", "pixel", "render", "polygon", "texture", "shader", "bitmap", "display"}},
}

// testCorpus returns perClass short documents for each topic, built from a
// fixed generator so every run sees the same text.
func testCorpus(perClass int) ([]LabeledDocument, []string) {
	rng := rand.New(rand.NewSource(1))
	var docs []LabeledDocument
	labels := make([]string, len(testTopics))
	for c, topic := range testTopics {
		labels[c] = topic.name
		for i := 0; i < perClass; i++ {
			words := make([]string, 6)
			for j := range words {
				words[j] = topic.words[rng.Intn(len(topic.words))]
			}
			docs = append(docs, LabeledDocument{Text: "The " + strings.Join(words, " ") + ".", Label: c})
		}
	}
	return docs, labels
}

func testTrainingConfig() TrainingConfig {
	cfg := DefaultTrainingConfig()
	cfg.Forest.Estimators = 20
	return cfg
}

func TestTrainerTrain(t *testing.T) {
	docs, labels := testCorpus(12)

	var stages []string
	cfg := testTrainingConfig()
	cfg.ProgressCallback = func(stage string, done, total int) {
		if done == total {
			stages = append(stages, stage)
		}
	}
	model, report, err := NewTrainer(cfg).Train(docs, labels)
	if err != nil {
		t.Fatal(err)
	}

	info := report.Info
	if info.TotalDocuments != 36 || info.TestDocuments != 6 || info.TrainDocuments != 30 {
		t.Errorf("document counts = %d/%d/%d, want 36/30/6", info.TotalDocuments, info.TrainDocuments, info.TestDocuments)
	}
	if info.Features != model.Vectorizer().Dim() || info.Features == 0 {
		t.Errorf("features = %d, vectorizer dim %d", info.Features, model.Vectorizer().Dim())
	}

	want := []Algorithm{NaiveBayesAlgorithm, LinearSVMAlgorithm, RandomForestAlgorithm}
	if len(info.Results) != len(want) {
		t.Fatalf("got %d results, want %d", len(info.Results), len(want))
	}
	for i, r := range info.Results {
		if r.Algorithm != want[i] {
			t.Errorf("result %d is %s, want %s", i, r.Algorithm, want[i])
		}
		if r.Accuracy < 0.8 {
			t.Errorf("%s held-out accuracy = %v", r.Algorithm, r.Accuracy)
		}
		if report.Evaluations[r.Algorithm] == nil {
			t.Errorf("missing evaluation for %s", r.Algorithm)
		}
	}
	if _, ok := info.Result(info.BestAccuracy); !ok {
		t.Errorf("best accuracy %q not among results", info.BestAccuracy)
	}
	if info.FastestTraining == "" {
		t.Error("fastest training algorithm not recorded")
	}
	if len(stages) == 0 || stages[len(stages)-1] != string(RandomForestAlgorithm) {
		t.Errorf("progress stages = %v", stages)
	}
}

func TestTrainerSingleAlgorithm(t *testing.T) {
	docs, labels := testCorpus(6)
	cfg := testTrainingConfig()
	cfg.Algorithms = []Algorithm{LinearSVMAlgorithm}
	model, _, err := NewTrainer(cfg).Train(docs, labels)
	if err != nil {
		t.Fatal(err)
	}
	if algs := model.Algorithms(); len(algs) != 1 || algs[0] != LinearSVMAlgorithm {
		t.Errorf("Algorithms = %v", algs)
	}
}

func TestTrainerErrors(t *testing.T) {
	docs, labels := testCorpus(3)
	trainer := NewTrainer(testTrainingConfig())

	if _, _, err := trainer.Train(nil, labels); !errors.Is(err, ErrEmptyTrainingSet) {
		t.Errorf("no documents: got %v", err)
	}
	if _, _, err := trainer.Train(docs, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("no labels: got %v", err)
	}
	bad := append([]LabeledDocument{{Text: "stray", Label: 9}}, docs...)
	if _, _, err := trainer.Train(bad, labels); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("label out of range: got %v", err)
	}

	cfg := testTrainingConfig()
	cfg.Algorithms = []Algorithm{"knn"}
	if _, _, err := NewTrainer(cfg).Train(docs, labels); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown algorithm: got %v", err)
	}
}

func TestTrainerCrossValidate(t *testing.T) {
	docs, labels := testCorpus(9)
	results, err := NewTrainer(testTrainingConfig()).CrossValidate(docs, labels, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if len(r.FoldResults) != 3 {
			t.Errorf("%s: %d folds, want 3", r.Algorithm, len(r.FoldResults))
		}
		if r.MeanAccuracy < 0.8 || r.MeanAccuracy > 1 {
			t.Errorf("%s: mean accuracy %v", r.Algorithm, r.MeanAccuracy)
		}
		if r.StdAccuracy < 0 {
			t.Errorf("%s: negative std %v", r.Algorithm, r.StdAccuracy)
		}
		t.Logf("%s: accuracy %.3f ± %.3f, macro F1 %.3f", r.Algorithm, r.MeanAccuracy, r.StdAccuracy, r.MeanF1)
	}

	if _, err := NewTrainer(testTrainingConfig()).CrossValidate(docs, labels, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("k=1: got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []TrainingMetrics{
		{Algorithm: NaiveBayesAlgorithm, Accuracy: 0.9, TrainingTime: 5},
		{Algorithm: LinearSVMAlgorithm, Accuracy: 0.95, TrainingTime: 10},
		{Algorithm: RandomForestAlgorithm, Accuracy: 0.95, TrainingTime: 2},
	}
	best, fastest := summarize(results)
	if best != LinearSVMAlgorithm {
		t.Errorf("best = %s, want linear_svm (earlier entry wins ties)", best)
	}
	if fastest != RandomForestAlgorithm {
		t.Errorf("fastest = %s", fastest)
	}
	if b, f := summarize(nil); b != "" || f != "" {
		t.Errorf("summarize(nil) = %q, %q", b, f)
	}
}
