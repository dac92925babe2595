package classify

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func tokenized(texts ...string) [][]string {
	n := NewNormalizer(UsingStopWords(false), UsingStemming(false))
	return n.NormalizeAll(texts)
}

func TestVectorizerRanking(t *testing.T) {
	corpus := tokenized(
		"apple banana",
		"banana cherry",
		"banana apple",
	)
	v := NewVectorizer(VectorizerConfig{NgramMin: 1, NgramMax: 1, MinDocFreq: 1, MaxDocFreqRatio: 1})
	vocab, err := v.Fit(corpus)
	if err != nil {
		t.Fatal(err)
	}
	// banana df=3, apple df=2, cherry df=1
	want := []string{"banana", "apple", "cherry"}
	if !reflect.DeepEqual(vocab.Terms, want) {
		t.Errorf("terms = %v, want %v", vocab.Terms, want)
	}
	if !reflect.DeepEqual(vocab.DocFreq, []int{3, 2, 1}) {
		t.Errorf("doc freq = %v", vocab.DocFreq)
	}
}

func TestVectorizerTieBreakFirstSeen(t *testing.T) {
	corpus := tokenized("zeta alpha", "mid")
	v := NewVectorizer(VectorizerConfig{NgramMin: 1, NgramMax: 1, MinDocFreq: 1, MaxDocFreqRatio: 1})
	vocab, err := v.Fit(corpus)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(vocab.Terms, want) {
		t.Errorf("terms = %v, want %v", vocab.Terms, want)
	}
}

func TestVectorizerFiltering(t *testing.T) {
	corpus := tokenized(
		"common rare1 shared",
		"common shared",
		"common other",
		"common other",
	)

	t.Run("min and max df", func(t *testing.T) {
		v := NewVectorizer(VectorizerConfig{NgramMin: 1, NgramMax: 1, MinDocFreq: 2, MaxDocFreqRatio: 0.95})
		vocab, err := v.Fit(corpus)
		if err != nil {
			t.Fatal(err)
		}
		// "common" appears in 4/4 > 0.95*4, "rare1" in 1 < 2
		want := []string{"shared", "other"}
		if !reflect.DeepEqual(vocab.Terms, want) {
			t.Errorf("terms = %v, want %v", vocab.Terms, want)
		}
	})

	t.Run("max features", func(t *testing.T) {
		v := NewVectorizer(VectorizerConfig{MaxFeatures: 2, NgramMin: 1, NgramMax: 1, MinDocFreq: 1, MaxDocFreqRatio: 1})
		vocab, err := v.Fit(corpus)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"common", "shared"}
		if !reflect.DeepEqual(vocab.Terms, want) {
			t.Errorf("terms = %v, want %v", vocab.Terms, want)
		}
	})

	t.Run("bigrams", func(t *testing.T) {
		v := NewVectorizer(VectorizerConfig{NgramMin: 1, NgramMax: 2, MinDocFreq: 2, MaxDocFreqRatio: 1})
		vocab, err := v.Fit(corpus)
		if err != nil {
			t.Fatal(err)
		}
		for _, term := range []string{"common other"} {
			if _, ok := vocab.Index(term); !ok {
				t.Errorf("expected bigram %q in %v", term, vocab.Terms)
			}
		}
	})
}

func TestVectorizerErrors(t *testing.T) {
	v := NewVectorizer(DefaultVectorizerConfig())
	if _, err := v.Transform([]string{"a"}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Transform before Fit: got %v, want ErrNotFitted", err)
	}

	// every term appears once, below the default min_df of 2
	if _, err := v.Fit(tokenized("alpha", "beta")); !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("Fit: got %v, want ErrEmptyVocabulary", err)
	}

	v = NewVectorizer(VectorizerConfig{MinDocFreq: 1})
	if _, err := v.Fit(tokenized("alpha")); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Fit(tokenized("beta")); !errors.Is(err, ErrAlreadyFitted) {
		t.Errorf("second Fit: got %v, want ErrAlreadyFitted", err)
	}

	if _, err := NewVectorizer(DefaultVectorizerConfig()).Fit(nil); !errors.Is(err, ErrEmptyTrainingSet) {
		t.Errorf("Fit(nil): got %v, want ErrEmptyTrainingSet", err)
	}
}

func TestVectorizerTransform(t *testing.T) {
	corpus := tokenized(
		"space rocket launch",
		"soccer match score",
		"moon orbit satellite",
		"rocket orbit",
	)
	v := NewVectorizer(VectorizerConfig{NgramMin: 1, NgramMax: 2, MinDocFreq: 1, MaxDocFreqRatio: 1})
	X, err := v.FitTransform(corpus)
	if err != nil {
		t.Fatal(err)
	}
	size := v.Vocabulary().Size()

	for d, x := range X {
		if x.Dim != size {
			t.Errorf("doc %d: dim %d, want %d", d, x.Dim, size)
		}
		for k, i := range x.Indices {
			if i >= size {
				t.Errorf("doc %d: index %d out of range", d, i)
			}
			if k > 0 && x.Indices[k-1] >= i {
				t.Errorf("doc %d: indices not increasing: %v", d, x.Indices)
			}
		}
		if norm := math.Sqrt(x.SquaredNorm()); math.Abs(norm-1) > 1e-9 {
			t.Errorf("doc %d: norm %v, want 1", d, norm)
		}
	}

	t.Run("idf matches doc freq", func(t *testing.T) {
		vocab := v.Vocabulary()
		i, ok := vocab.Index("rocket")
		if !ok {
			t.Fatal("rocket missing from vocabulary")
		}
		if vocab.DocFreq[i] != 2 {
			t.Fatalf("df(rocket) = %d, want 2", vocab.DocFreq[i])
		}
		want := math.Log(float64(1+4)/float64(1+2)) + 1
		if got := vocab.IDF(i); math.Abs(got-want) > 1e-12 {
			t.Errorf("idf(rocket) = %v, want %v", got, want)
		}

		// In "rocket orbit" both unigrams have df 2 and the bigram df 1, so
		// the raw weights are idf values and the ratio survives L2 scaling.
		x := X[3]
		j, _ := vocab.Index("rocket orbit")
		ratio := x.At(i) / x.At(j)
		wantRatio := vocab.IDF(i) / vocab.IDF(j)
		if math.Abs(ratio-wantRatio) > 1e-9 {
			t.Errorf("weight ratio = %v, want %v", ratio, wantRatio)
		}
	})

	t.Run("empty and unknown tokens", func(t *testing.T) {
		for _, tokens := range [][]string{nil, {}, {"unseen", "words"}} {
			x, err := v.Transform(tokens)
			if err != nil {
				t.Fatalf("Transform(%v): %v", tokens, err)
			}
			if !x.IsZero() || x.Dim != size {
				t.Errorf("Transform(%v) = %+v, want zero vector of dim %d", tokens, x, size)
			}
		}
	})
}

func TestVectorizerSublinearTF(t *testing.T) {
	corpus := tokenized("a a a b", "a b")
	v := NewVectorizer(VectorizerConfig{NgramMin: 1, NgramMax: 1, MinDocFreq: 1, MaxDocFreqRatio: 1, SublinearTF: true})
	X, err := v.FitTransform(corpus)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := v.Vocabulary().Index("a")
	b, _ := v.Vocabulary().Index("b")
	// both terms share idf, so the ratio is (1+ln 3)/1
	ratio := X[0].At(a) / X[0].At(b)
	if want := 1 + math.Log(3); math.Abs(ratio-want) > 1e-9 {
		t.Errorf("ratio = %v, want %v", ratio, want)
	}
}

func TestFittedVectorizerFingerprint(t *testing.T) {
	v := NewVectorizer(VectorizerConfig{MinDocFreq: 1})
	vocab, err := v.Fit(tokenized("alpha beta", "beta gamma"))
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := NewFittedVectorizer(v.Config(), &Vocabulary{Terms: vocab.Terms, DocFreq: vocab.DocFreq, NumDocs: vocab.NumDocs})
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.Fingerprint() != v.Fingerprint() {
		t.Error("rebuilt vectorizer should keep the fingerprint")
	}

	other := NewVectorizer(VectorizerConfig{MinDocFreq: 1})
	if _, err := other.Fit(tokenized("gamma beta", "beta alpha")); err != nil {
		t.Fatal(err)
	}
	if other.Fingerprint() == v.Fingerprint() {
		t.Error("different column order should change the fingerprint")
	}

	// same terms in the same columns, but different idf weights
	bumped := append([]int(nil), vocab.DocFreq...)
	bumped[len(bumped)-1]++
	tests := []struct {
		name string
		df   []int
		n    int
	}{
		{"document frequency", bumped, vocab.NumDocs},
		{"document count", vocab.DocFreq, vocab.NumDocs + 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := NewFittedVectorizer(v.Config(), &Vocabulary{Terms: vocab.Terms, DocFreq: tt.df, NumDocs: tt.n})
			if err != nil {
				t.Fatal(err)
			}
			if changed.Fingerprint() == v.Fingerprint() {
				t.Error("fingerprint should depend on the idf statistics")
			}
		})
	}
}
