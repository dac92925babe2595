package classify

import (
	"reflect"
	"sort"
	"testing"
)

func labelsOf(counts ...int) []int {
	var out []int
	for c, n := range counts {
		for i := 0; i < n; i++ {
			out = append(out, c)
		}
	}
	return out
}

func TestStratifiedSplit(t *testing.T) {
	labels := labelsOf(10, 5, 1)
	train, test := StratifiedSplit(labels, 0.2, 42)

	if len(train)+len(test) != len(labels) {
		t.Fatalf("split lost documents: %d + %d != %d", len(train), len(test), len(labels))
	}
	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		if v != i {
			t.Fatalf("train and test overlap or miss indices: %v", all)
		}
	}

	perClass := make([]int, 3)
	for _, i := range test {
		perClass[labels[i]]++
	}
	if want := []int{2, 1, 0}; !reflect.DeepEqual(perClass, want) {
		t.Errorf("test counts per class = %v, want %v", perClass, want)
	}
	if !sort.IntsAreSorted(train) || !sort.IntsAreSorted(test) {
		t.Error("indices should be sorted")
	}

	train2, test2 := StratifiedSplit(labels, 0.2, 42)
	if !reflect.DeepEqual(train, train2) || !reflect.DeepEqual(test, test2) {
		t.Error("same seed should give the same split")
	}
}

func TestStratifiedSplitKeepsTrainingDocument(t *testing.T) {
	labels := labelsOf(2, 2)
	train, _ := StratifiedSplit(labels, 0.9, 1)
	seen := make(map[int]bool)
	for _, i := range train {
		seen[labels[i]] = true
	}
	if !seen[0] || !seen[1] {
		t.Errorf("every class should keep a training document, train = %v", train)
	}
}

func TestStratifiedKFold(t *testing.T) {
	labels := labelsOf(6, 4, 3)
	folds := StratifiedKFold(labels, 3, 7)
	if len(folds) != 3 {
		t.Fatalf("got %d folds, want 3", len(folds))
	}

	seen := make(map[int]int)
	for f, fold := range folds {
		if !sort.IntsAreSorted(fold) {
			t.Errorf("fold %d not sorted", f)
		}
		classes := make(map[int]bool)
		for _, i := range fold {
			seen[i]++
			classes[labels[i]] = true
		}
		if len(classes) != 3 {
			t.Errorf("fold %d covers classes %v, want all three", f, classes)
		}
	}
	for i := range labels {
		if seen[i] != 1 {
			t.Errorf("document %d appears in %d folds", i, seen[i])
		}
	}

	sizes := []int{len(folds[0]), len(folds[1]), len(folds[2])}
	sort.Ints(sizes)
	if sizes[2]-sizes[0] > 1 {
		t.Errorf("fold sizes unbalanced: %v", sizes)
	}
}
