package classify

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Files written next to a model by TrainingReport.WriteResults.
const (
	DetailedResultsFile = "detailed_results.json"
	ComparisonFile      = "algorithm_comparison.csv"
)

// AlgorithmResult is the training summary of one algorithm together with
// its full held-out evaluation, confusion matrix included.
type AlgorithmResult struct {
	TrainingMetrics
	Evaluation *Metrics `json:"evaluation,omitempty"`
}

// DetailedResults returns one entry per trained algorithm in reporting order.
func (r *TrainingReport) DetailedResults() []AlgorithmResult {
	out := make([]AlgorithmResult, 0, len(r.Info.Results))
	for _, res := range r.Info.Results {
		out = append(out, AlgorithmResult{TrainingMetrics: res, Evaluation: r.Evaluations[res.Algorithm]})
	}
	return out
}

var comparisonHeader = []string{
	"algorithm", "accuracy", "macro_precision", "macro_recall", "macro_f1",
	"weighted_f1", "training_seconds", "prediction_seconds", "converged",
}

// WriteComparison writes a CSV table with one row per algorithm.
func (r *TrainingReport) WriteComparison(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(comparisonHeader); err != nil {
		return err
	}
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 4, 64) }
	for _, res := range r.DetailedResults() {
		var macro AverageMetrics
		if res.Evaluation != nil {
			macro = res.Evaluation.Macro
		}
		row := []string{
			res.Algorithm.DisplayName(),
			f(res.Accuracy),
			f(macro.Precision),
			f(macro.Recall),
			f(res.MacroF1),
			f(res.WeightedF1),
			strconv.FormatFloat(res.TrainingTime.Seconds(), 'f', 6, 64),
			strconv.FormatFloat(res.PredictionTime.Seconds(), 'f', 6, 64),
			strconv.FormatBool(res.Converged),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResults writes DetailedResultsFile and ComparisonFile into dir.
func (r *TrainingReport) WriteResults(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	detailed, err := json.MarshalIndent(r.DetailedResults(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode detailed results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DetailedResultsFile), detailed, 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, ComparisonFile))
	if err != nil {
		return err
	}
	if err := r.WriteComparison(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
