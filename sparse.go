package classify

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// A SparseVector is a feature vector that stores only its non-zero entries.
// Indices are strictly increasing and all less than Dim. Vocabulary is the
// fingerprint of the vocabulary that produced the vector, empty for vectors
// built by hand.
type SparseVector struct {
	Dim        int       `json:"dim"`
	Indices    []int     `json:"indices"`
	Values     []float64 `json:"values"`
	Vocabulary string    `json:"vocabulary,omitempty"`
}

// NNZ returns the number of stored entries.
func (v SparseVector) NNZ() int {
	return len(v.Indices)
}

// IsZero reports whether every entry of v is zero.
func (v SparseVector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// At returns the value of feature i.
func (v SparseVector) At(i int) float64 {
	j := sort.SearchInts(v.Indices, i)
	if j < len(v.Indices) && v.Indices[j] == i {
		return v.Values[j]
	}
	return 0
}

// Dot returns the inner product of v with the dense weights w.
func (v SparseVector) Dot(w []float64) float64 {
	var sum float64
	for k, i := range v.Indices {
		sum += v.Values[k] * w[i]
	}
	return sum
}

// AddScaledTo adds alpha*v to the dense slice dst.
func (v SparseVector) AddScaledTo(dst []float64, alpha float64) {
	for k, i := range v.Indices {
		dst[i] += alpha * v.Values[k]
	}
}

// SquaredNorm returns the squared Euclidean norm of v.
func (v SparseVector) SquaredNorm() float64 {
	return floats.Dot(v.Values, v.Values)
}

// Dense expands v into a slice of length Dim.
func (v SparseVector) Dense() []float64 {
	out := make([]float64, v.Dim)
	for k, i := range v.Indices {
		out[i] = v.Values[k]
	}
	return out
}

func checkDim(x SparseVector, dim int) error {
	if x.Dim != dim {
		return &DimensionMismatchError{Expected: dim, Got: x.Dim}
	}
	if len(x.Values) != len(x.Indices) {
		return invalidInput("sparse vector has %d indices but %d values", len(x.Indices), len(x.Values))
	}
	prev := -1
	for _, i := range x.Indices {
		if i <= prev {
			return invalidInput("sparse vector indices must be non-negative and strictly increasing, got %d after %d", i, prev)
		}
		prev = i
	}
	if prev >= dim {
		return &DimensionMismatchError{Expected: dim, Got: prev + 1}
	}
	return nil
}

// checkVector checks x against the width and vocabulary of a trained
// classifier. Either fingerprint may be empty when the vector or the
// classifier was built by hand.
func checkVector(x SparseVector, dim int, vocab string) error {
	if err := checkDim(x, dim); err != nil {
		return err
	}
	if x.Vocabulary != "" && vocab != "" && x.Vocabulary != vocab {
		return fmt.Errorf("%w: vector comes from a different vocabulary", ErrVocabularyMismatch)
	}
	return nil
}
