package classify

import (
	"strings"
)

// NormalizerOptions is the persisted form of a Normalizer's settings.
type NormalizerOptions struct {
	Language    Language `json:"language" yaml:"language"`
	StopWords   bool     `json:"stop_words" yaml:"stop_words"`
	Stemming    bool     `json:"stemming" yaml:"stemming"`
	FoldAccents bool     `json:"fold_accents" yaml:"fold_accents"`
}

// DefaultNormalizerOptions returns English with stop-word removal and
// stemming enabled.
func DefaultNormalizerOptions() NormalizerOptions {
	return NormalizerOptions{Language: English, StopWords: true, Stemming: true}
}

// A Normalizer turns raw text into the token sequence the vectorizer sees.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	opts NormalizerOptions
}

type NormalizerOptFunc func(*Normalizer)

// UsingStopWords enables or disables stop-word removal.
func UsingStopWords(include bool) NormalizerOptFunc {
	return func(n *Normalizer) {
		n.opts.StopWords = include
	}
}

// UsingStemming enables or disables suffix stripping.
func UsingStemming(include bool) NormalizerOptFunc {
	return func(n *Normalizer) {
		n.opts.Stemming = include
	}
}

// UsingLanguage selects the stop-word list and stemmer.
func UsingLanguage(lang Language) NormalizerOptFunc {
	return func(n *Normalizer) {
		n.opts.Language = lang
	}
}

// UsingAccentFolding strips diacritics before the character filter runs, so
// accented letters survive as their base letter instead of becoming spaces.
func UsingAccentFolding(include bool) NormalizerOptFunc {
	return func(n *Normalizer) {
		n.opts.FoldAccents = include
	}
}

// UsingNormalizerOptions replaces every setting at once.
func UsingNormalizerOptions(opts NormalizerOptions) NormalizerOptFunc {
	return func(n *Normalizer) {
		n.opts = opts
	}
}

// NewNormalizer creates a Normalizer. Without options it behaves like
// DefaultNormalizerOptions.
func NewNormalizer(opts ...NormalizerOptFunc) *Normalizer {
	n := &Normalizer{opts: DefaultNormalizerOptions()}
	for _, applyOpt := range opts {
		applyOpt(n)
	}
	if n.opts.Language == "" {
		n.opts.Language = English
	}
	return n
}

// Options returns the settings n was built with.
func (n *Normalizer) Options() NormalizerOptions {
	return n.opts
}

// Normalize lower-cases text, replaces every character outside [a-z0-9 ]
// with a space, splits on whitespace and then applies the optional stop-word
// and stemming passes. Empty input yields a nil slice.
func (n *Normalizer) Normalize(text string) []string {
	if n.opts.FoldAccents {
		text = foldAccents(text)
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if n.opts.StopWords && IsStopWord(tok, n.opts.Language) {
			continue
		}
		if n.opts.Stemming {
			tok = stem(tok, n.opts.Language)
		}
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// NormalizeAll normalizes each text in order.
func (n *Normalizer) NormalizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, text := range texts {
		out[i] = n.Normalize(text)
	}
	return out
}
