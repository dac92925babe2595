package classify

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
)

// ClassMetrics holds the per-class counts and scores.
type ClassMetrics struct {
	Label     string  `json:"label"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Support   int     `json:"support"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// AverageMetrics is one averaging of precision, recall and F1.
type AverageMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Metrics summarizes a set of predictions against the truth.
type Metrics struct {
	Total     int            `json:"total"`
	Accuracy  float64        `json:"accuracy"`
	Classes   []ClassMetrics `json:"classes"`
	Macro     AverageMetrics `json:"macro"`
	Micro     AverageMetrics `json:"micro"`
	Weighted  AverageMetrics `json:"weighted"`
	Confusion [][]int        `json:"confusion"` // [true][predicted]
}

// Evaluate scores yPred against yTrue. labels names the K classes; every id
// in both slices must be in [0,K).
func Evaluate(yTrue, yPred []int, labels []string) (*Metrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, invalidInput("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	k := len(labels)
	if k == 0 {
		return nil, invalidInput("no labels")
	}

	m := &Metrics{Total: len(yTrue), Confusion: make([][]int, k)}
	for i := range m.Confusion {
		m.Confusion[i] = make([]int, k)
	}
	correct := 0
	for i, t := range yTrue {
		p := yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, invalidInput("label pair (%d,%d) at %d outside [0,%d)", t, p, i, k)
		}
		m.Confusion[t][p]++
		if t == p {
			correct++
		}
	}
	if m.Total > 0 {
		m.Accuracy = float64(correct) / float64(m.Total)
	}

	var tp, fp, fn int
	precision := make([]float64, k)
	recall := make([]float64, k)
	f1 := make([]float64, k)
	support := make([]float64, k)
	m.Classes = make([]ClassMetrics, k)
	for c := 0; c < k; c++ {
		cm := ClassMetrics{Label: labels[c], TP: m.Confusion[c][c]}
		for o := 0; o < k; o++ {
			cm.Support += m.Confusion[c][o]
			if o != c {
				cm.FN += m.Confusion[c][o]
				cm.FP += m.Confusion[o][c]
			}
		}
		cm.Precision = ratio(cm.TP, cm.TP+cm.FP)
		cm.Recall = ratio(cm.TP, cm.TP+cm.FN)
		cm.F1 = harmonic(cm.Precision, cm.Recall)
		m.Classes[c] = cm

		precision[c], recall[c], f1[c] = cm.Precision, cm.Recall, cm.F1
		support[c] = float64(cm.Support)
		tp += cm.TP
		fp += cm.FP
		fn += cm.FN
	}

	m.Macro = AverageMetrics{
		Precision: stat.Mean(precision, nil),
		Recall:    stat.Mean(recall, nil),
		F1:        stat.Mean(f1, nil),
	}
	m.Micro.Precision = ratio(tp, tp+fp)
	m.Micro.Recall = ratio(tp, tp+fn)
	m.Micro.F1 = harmonic(m.Micro.Precision, m.Micro.Recall)
	if m.Total > 0 {
		m.Weighted = AverageMetrics{
			Precision: stat.Mean(precision, support),
			Recall:    stat.Mean(recall, support),
			F1:        stat.Mean(f1, support),
		}
	}
	return m, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Report renders the metrics as a plain-text classification report.
func (m *Metrics) Report() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, c := range m.Classes {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintln(w, "\t\t\t\t\t")
	fmt.Fprintf(w, "accuracy\t\t\t%.4f\t%d\t\n", m.Accuracy, m.Total)
	fmt.Fprintf(w, "macro avg\t%.4f\t%.4f\t%.4f\t%d\t\n", m.Macro.Precision, m.Macro.Recall, m.Macro.F1, m.Total)
	fmt.Fprintf(w, "micro avg\t%.4f\t%.4f\t%.4f\t%d\t\n", m.Micro.Precision, m.Micro.Recall, m.Micro.F1, m.Total)
	fmt.Fprintf(w, "weighted avg\t%.4f\t%.4f\t%.4f\t%d\t\n", m.Weighted.Precision, m.Weighted.Recall, m.Weighted.F1, m.Total)
	w.Flush()
	return sb.String()
}

// ConfusionReport renders the confusion matrix with true labels as rows and
// predicted labels as columns.
func (m *Metrics) ConfusionReport() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "true \\ predicted\t")
	for _, c := range m.Classes {
		fmt.Fprintf(w, "%s\t", c.Label)
	}
	fmt.Fprintln(w)
	for i, row := range m.Confusion {
		fmt.Fprintf(w, "%s\t", m.Classes[i].Label)
		for _, n := range row {
			fmt.Fprintf(w, "%d\t", n)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return sb.String()
}
