package classify

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// VectorizerConfig controls vocabulary construction.
type VectorizerConfig struct {
	MaxFeatures     int     `json:"max_features" yaml:"max_features"` // 0 keeps every surviving term
	NgramMin        int     `json:"ngram_min" yaml:"ngram_min"`
	NgramMax        int     `json:"ngram_max" yaml:"ngram_max"`
	MinDocFreq      int     `json:"min_doc_freq" yaml:"min_doc_freq"`
	MaxDocFreqRatio float64 `json:"max_doc_freq_ratio" yaml:"max_doc_freq_ratio"`
	SublinearTF     bool    `json:"sublinear_tf" yaml:"sublinear_tf"`
}

// DefaultVectorizerConfig returns unigrams and bigrams, at most 10000
// features, min_df 2 and max_df 0.95.
func DefaultVectorizerConfig() VectorizerConfig {
	return VectorizerConfig{
		MaxFeatures:     10000,
		NgramMin:        1,
		NgramMax:        2,
		MinDocFreq:      2,
		MaxDocFreqRatio: 0.95,
	}
}

func (c VectorizerConfig) withDefaults() VectorizerConfig {
	if c.NgramMin < 1 {
		c.NgramMin = 1
	}
	if c.NgramMax < c.NgramMin {
		c.NgramMax = c.NgramMin
	}
	if c.MinDocFreq < 1 {
		c.MinDocFreq = 1
	}
	if c.MaxDocFreqRatio <= 0 || c.MaxDocFreqRatio > 1 {
		c.MaxDocFreqRatio = 1
	}
	if c.MaxFeatures < 0 {
		c.MaxFeatures = 0
	}
	return c
}

// A Vocabulary is the frozen term to column mapping produced by Fit.
type Vocabulary struct {
	Terms   []string `json:"terms"`
	DocFreq []int    `json:"doc_freq"`
	NumDocs int      `json:"num_docs"`

	index       map[string]int
	fingerprint string
}

func newVocabulary(terms []string, df []int, numDocs int) *Vocabulary {
	v := &Vocabulary{Terms: terms, DocFreq: df, NumDocs: numDocs}
	v.index = make(map[string]int, len(terms))
	for i, t := range terms {
		v.index[t] = i
	}
	v.fingerprint = fingerprintVocabulary(terms, df, numDocs)
	return v
}

// Size returns the number of columns.
func (v *Vocabulary) Size() int {
	return len(v.Terms)
}

// Index returns the column of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// IDF returns the smoothed inverse document frequency of column i,
// ln((1+N)/(1+df)) + 1.
func (v *Vocabulary) IDF(i int) float64 {
	return smoothIDF(v.NumDocs, v.DocFreq[i])
}

// Fingerprint identifies the ordered term list together with the document
// frequencies. Two vocabularies with the same fingerprint map every term to
// the same column with the same idf weight.
func (v *Vocabulary) Fingerprint() string {
	return v.fingerprint
}

func smoothIDF(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

func fingerprintVocabulary(terms []string, df []int, numDocs int) string {
	h := sha256.New()
	var buf [binary.MaxVarintLen64]byte
	h.Write(buf[:binary.PutUvarint(buf[:], uint64(numDocs))])
	for i, t := range terms {
		h.Write([]byte(t))
		h.Write([]byte{0})
		if i < len(df) {
			h.Write(buf[:binary.PutUvarint(buf[:], uint64(df[i]))])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// A Vectorizer maps token sequences to L2-normalized TF-IDF vectors. It is
// fitted once; after that it is read-only and safe for concurrent use.
type Vectorizer struct {
	config VectorizerConfig
	vocab  *Vocabulary
	idf    []float64
}

// NewVectorizer creates an unfitted Vectorizer.
func NewVectorizer(config VectorizerConfig) *Vectorizer {
	return &Vectorizer{config: config.withDefaults()}
}

// NewFittedVectorizer rebuilds a Vectorizer from a stored vocabulary.
func NewFittedVectorizer(config VectorizerConfig, vocab *Vocabulary) (*Vectorizer, error) {
	if vocab == nil || vocab.Size() == 0 {
		return nil, ErrEmptyVocabulary
	}
	if len(vocab.DocFreq) != len(vocab.Terms) {
		return nil, invalidInput("vocabulary has %d terms but %d document frequencies", len(vocab.Terms), len(vocab.DocFreq))
	}
	v := NewVectorizer(config)
	v.setVocabulary(newVocabulary(vocab.Terms, vocab.DocFreq, vocab.NumDocs))
	return v, nil
}

func (v *Vectorizer) setVocabulary(vocab *Vocabulary) {
	v.vocab = vocab
	v.idf = make([]float64, vocab.Size())
	for i := range v.idf {
		v.idf[i] = vocab.IDF(i)
	}
}

// Config returns the effective configuration.
func (v *Vectorizer) Config() VectorizerConfig {
	return v.config
}

// Fitted reports whether Fit has completed.
func (v *Vectorizer) Fitted() bool {
	return v.vocab != nil
}

// Vocabulary returns the fitted vocabulary, or nil before Fit.
func (v *Vectorizer) Vocabulary() *Vocabulary {
	return v.vocab
}

// Dim returns the vocabulary size, or 0 before Fit.
func (v *Vectorizer) Dim() int {
	if v.vocab == nil {
		return 0
	}
	return v.vocab.Size()
}

// Fingerprint returns the vocabulary fingerprint, or "" before Fit.
func (v *Vectorizer) Fingerprint() string {
	if v.vocab == nil {
		return ""
	}
	return v.vocab.Fingerprint()
}

// Fit builds the vocabulary from a tokenized corpus. Terms are ranked by
// document frequency, ties broken by first appearance, and the rank becomes
// the column index.
func (v *Vectorizer) Fit(corpus [][]string) (*Vocabulary, error) {
	if v.vocab != nil {
		return nil, ErrAlreadyFitted
	}
	if len(corpus) == 0 {
		return nil, ErrEmptyTrainingSet
	}

	type termStat struct {
		term      string
		df        int
		firstSeen int
	}
	stats := make(map[string]*termStat)
	var order []*termStat

	for _, tokens := range corpus {
		seen := make(map[string]bool)
		for _, gram := range ngrams(tokens, v.config.NgramMin, v.config.NgramMax) {
			if seen[gram] {
				continue
			}
			seen[gram] = true
			st, ok := stats[gram]
			if !ok {
				st = &termStat{term: gram, firstSeen: len(order)}
				stats[gram] = st
				order = append(order, st)
			}
			st.df++
		}
	}

	n := len(corpus)
	maxDF := v.config.MaxDocFreqRatio * float64(n)
	kept := order[:0:0]
	for _, st := range order {
		if st.df < v.config.MinDocFreq || float64(st.df) > maxDF {
			continue
		}
		kept = append(kept, st)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].df != kept[j].df {
			return kept[i].df > kept[j].df
		}
		return kept[i].firstSeen < kept[j].firstSeen
	})
	if v.config.MaxFeatures > 0 && len(kept) > v.config.MaxFeatures {
		kept = kept[:v.config.MaxFeatures]
	}

	terms := make([]string, len(kept))
	df := make([]int, len(kept))
	for i, st := range kept {
		terms[i] = st.term
		df[i] = st.df
	}
	v.setVocabulary(newVocabulary(terms, df, n))
	return v.vocab, nil
}

// Transform maps tokens to a TF-IDF vector over the fitted vocabulary.
// Unknown n-grams are ignored; an empty sequence yields an all-zero vector.
func (v *Vectorizer) Transform(tokens []string) (SparseVector, error) {
	if v.vocab == nil {
		return SparseVector{}, ErrNotFitted
	}
	counts := make(map[int]float64)
	for _, gram := range ngrams(tokens, v.config.NgramMin, v.config.NgramMax) {
		if i, ok := v.vocab.index[gram]; ok {
			counts[i]++
		}
	}

	out := SparseVector{Dim: v.vocab.Size(), Vocabulary: v.vocab.fingerprint}
	if len(counts) == 0 {
		return out, nil
	}
	out.Indices = make([]int, 0, len(counts))
	for i := range counts {
		out.Indices = append(out.Indices, i)
	}
	sort.Ints(out.Indices)
	out.Values = make([]float64, len(out.Indices))
	for k, i := range out.Indices {
		tf := counts[i]
		if v.config.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		out.Values[k] = tf * v.idf[i]
	}
	if norm := floats.Norm(out.Values, 2); norm > 0 {
		floats.Scale(1/norm, out.Values)
	}
	return out, nil
}

// TransformAll transforms each token sequence in order.
func (v *Vectorizer) TransformAll(corpus [][]string) ([]SparseVector, error) {
	out := make([]SparseVector, len(corpus))
	for i, tokens := range corpus {
		x, err := v.Transform(tokens)
		if err != nil {
			return nil, fmt.Errorf("transform document %d: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}

// FitTransform fits the vocabulary on corpus and transforms it.
func (v *Vectorizer) FitTransform(corpus [][]string) ([]SparseVector, error) {
	if _, err := v.Fit(corpus); err != nil {
		return nil, err
	}
	return v.TransformAll(corpus)
}

// ngrams returns every space-joined n-gram of tokens for n in [min, max],
// in order of n and then position.
func ngrams(tokens []string, min, max int) []string {
	var out []string
	for n := min; n <= max; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if n == 1 {
				out = append(out, tokens[i])
				continue
			}
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
