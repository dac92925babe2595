package classify

import (
	"math"
	"math/rand"
	"sort"
)

func groupByClass(labels []int) [][]int {
	k := 0
	for _, c := range labels {
		k = max(k, c+1)
	}
	groups := make([][]int, k)
	for i, c := range labels {
		groups[c] = append(groups[c], i)
	}
	return groups
}

// StratifiedSplit partitions document indices into train and test sets
// holding roughly testRatio of every class out for testing. Classes with a
// single document stay in training, and every class with two or more keeps
// at least one training document. Both slices are sorted.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	for _, group := range groupByClass(labels) {
		idx := append([]int(nil), group...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := len(idx)
		nTest := int(math.Round(float64(n) * testRatio))
		if nTest >= n {
			nTest = n - 1
		}
		if nTest < 0 {
			nTest = 0
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedKFold deals each class's shuffled documents round-robin into k
// folds and returns the index set of every fold, each sorted.
func StratifiedKFold(labels []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	next := 0
	for _, group := range groupByClass(labels) {
		idx := append([]int(nil), group...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, i := range idx {
			folds[next] = append(folds[next], i)
			next = (next + 1) % k
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}
