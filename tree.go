package classify

import (
	"math"
	"math/rand"
	"sort"
)

// Criterion selects the node impurity measure.
type Criterion string

const (
	Gini    Criterion = "gini"
	Entropy Criterion = "entropy"
)

func (c Criterion) impurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	total := float64(n)
	var out float64
	switch c {
	case Entropy:
		for _, k := range counts {
			if k > 0 {
				p := float64(k) / total
				out -= p * math.Log2(p)
			}
		}
	default:
		out = 1
		for _, k := range counts {
			p := float64(k) / total
			out -= p * p
		}
	}
	return out
}

// treeNode is one entry of a flattened tree. Leaves have Feature == -1.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Class     int     `json:"c"`
}

type decisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *decisionTree) predict(x SparseVector) int {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Class
		}
		if x.At(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks that a decoded tree can be walked without going out of
// bounds or looping.
func (t *decisionTree) validate(dim, numClasses int) error {
	if len(t.Nodes) == 0 {
		return invalidInput("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Class < 0 || n.Class >= numClasses {
			return invalidInput("tree node %d has class %d outside [0,%d)", i, n.Class, numClasses)
		}
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= dim {
			return &DimensionMismatchError{Expected: dim, Got: n.Feature + 1}
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return invalidInput("tree node %d has invalid children", i)
		}
	}
	return nil
}

func (t *decisionTree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// treeBuilder grows one CART tree over a bootstrap sample.
type treeBuilder struct {
	X               []SparseVector
	y               []int
	numClasses      int
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	criterion       Criterion
	rng             *rand.Rand

	nodes []treeNode
}

type sampleValue struct {
	value float64
	label int
	pos   int
}

func (b *treeBuilder) build(samples []int) *decisionTree {
	b.nodes = b.nodes[:0]
	b.grow(samples, 0)
	return &decisionTree{Nodes: b.nodes}
}

// grow appends the subtree for samples and returns its node index.
func (b *treeBuilder) grow(samples []int, depth int) int {
	counts := make([]int, b.numClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	majority := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[majority] {
			majority = c
		}
	}

	self := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Class: majority})

	n := len(samples)
	impurity := b.criterion.impurity(counts, n)
	if impurity == 0 || n < b.minSamplesSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return self
	}

	feature, threshold, ok := b.bestSplit(samples, counts, impurity)
	if !ok {
		return self
	}

	var left, right []int
	for _, s := range samples {
		if b.X[s].At(feature) <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Class: majority}
	return self
}

// minGain is the smallest impurity decrease that justifies a split.
const minGain = 1e-12

// bestSplit draws up to maxFeatures non-constant candidate features in random
// order and returns the midpoint threshold with the largest impurity
// decrease. Features absent from every sample in the node are constant and
// never drawn. A node where no threshold decreases impurity stays a leaf.
func (b *treeBuilder) bestSplit(samples []int, counts []int, parent float64) (int, float64, bool) {
	seen := make(map[int]bool)
	var pool []int
	for _, s := range samples {
		for _, f := range b.X[s].Indices {
			if !seen[f] {
				seen[f] = true
				pool = append(pool, f)
			}
		}
	}
	sort.Ints(pool)

	n := len(samples)
	bestFeature, bestThreshold, bestGain := -1, 0.0, minGain
	values := make([]sampleValue, n)
	left := make([]int, b.numClasses)
	right := make([]int, b.numClasses)

	drawn := 0
	for remaining := len(pool); remaining > 0 && drawn < b.maxFeatures; remaining-- {
		j := b.rng.Intn(remaining)
		f := pool[j]
		pool[j], pool[remaining-1] = pool[remaining-1], pool[j]

		for i, s := range samples {
			values[i] = sampleValue{value: b.X[s].At(f), label: b.y[s], pos: i}
		}
		sort.Slice(values, func(i, j int) bool {
			if values[i].value != values[j].value {
				return values[i].value < values[j].value
			}
			return values[i].pos < values[j].pos
		})
		if values[0].value == values[n-1].value {
			continue
		}
		drawn++

		for c := range left {
			left[c] = 0
			right[c] = counts[c]
		}
		for i := 0; i < n-1; i++ {
			left[values[i].label]++
			right[values[i].label]--
			if values[i].value == values[i+1].value {
				continue
			}
			nl, nr := i+1, n-i-1
			gain := parent -
				(float64(nl)/float64(n))*b.criterion.impurity(left, nl) -
				(float64(nr)/float64(n))*b.criterion.impurity(right, nr)
			if gain > bestGain {
				bestFeature = f
				bestThreshold = (values[i].value + values[i+1].value) / 2
				bestGain = gain
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}
