package classify

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"gopkg.in/neurosnap/sentences.v1"
	"gopkg.in/neurosnap/sentences.v1/english"
)

// A DocOpt represents a setting that changes the document creation process.
//
// For example, it might disable sentence segmentation:
//
//	doc, err := classify.NewDocument("...", classify.WithSegmentation(false))
type DocOpt func(opts *DocOpts)

// DocOpts controls the Document creation process:
type DocOpts struct {
	Normalizer *Normalizer     // Normalizer producing the token sequence
	Segment    bool            // If true, include segmentation
	Context    context.Context // Context for cancellation
}

// UsingNormalizer specifies the Normalizer to use.
func UsingNormalizer(n *Normalizer) DocOpt {
	return func(opts *DocOpts) {
		opts.Normalizer = n
	}
}

// WithSegmentation can enable (the default) or disable sentence segmentation.
func WithSegmentation(include bool) DocOpt {
	return func(opts *DocOpts) {
		opts.Segment = include
	}
}

// WithContext sets the context for document processing
func WithContext(ctx context.Context) DocOpt {
	return func(opts *DocOpts) {
		opts.Context = ctx
	}
}

// A Document is a piece of text prepared for classification.
type Document struct {
	Text     string
	Metadata DocumentMetadata

	tokens    []string
	sentences []Sentence
}

// Tokens returns the normalized token sequence.
func (doc *Document) Tokens() []string {
	return doc.tokens
}

// Sentences returns `doc`'s sentences.
func (doc *Document) Sentences() []Sentence {
	return doc.sentences
}

var (
	segmenterOnce sync.Once
	segmenter     *sentences.DefaultSentenceTokenizer
	segmenterErr  error
)

func sentenceTokenizer() (*sentences.DefaultSentenceTokenizer, error) {
	segmenterOnce.Do(func() {
		segmenter, segmenterErr = english.NewSentenceTokenizer(nil)
	})
	return segmenter, segmenterErr
}

func segment(text string) ([]Sentence, error) {
	tok, err := sentenceTokenizer()
	if err != nil {
		return nil, err
	}
	var out []Sentence
	for _, s := range tok.Tokenize(text) {
		out = append(out, Sentence{Text: s.Text, Start: s.Start, End: s.End})
	}
	return out, nil
}

// NewDocument creates a Document according to the user-specified options.
//
// For example,
//
//	doc, err := classify.NewDocument("...")
func NewDocument(text string, opts ...DocOpt) (*Document, error) {
	startTime := time.Now()

	base := DocOpts{Segment: true, Context: context.Background()}
	for _, applyOpt := range opts {
		applyOpt(&base)
	}
	if base.Normalizer == nil {
		base.Normalizer = NewNormalizer()
	}
	if err := base.Context.Err(); err != nil {
		return nil, err
	}

	doc := &Document{
		Text: text,
		Metadata: DocumentMetadata{
			Language:    base.Normalizer.Options().Language,
			ProcessedAt: startTime,
			CharCount:   utf8.RuneCountInString(text),
		},
	}

	if base.Segment && text != "" {
		sents, err := segment(text)
		if err != nil {
			return nil, err
		}
		doc.sentences = sents
		doc.Metadata.SentenceCount = len(sents)
	}

	if err := base.Context.Err(); err != nil {
		return nil, err
	}
	doc.tokens = base.Normalizer.Normalize(text)
	doc.Metadata.TokenCount = len(doc.tokens)
	doc.Metadata.ProcessingTime = time.Since(startTime)
	return doc, nil
}
