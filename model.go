package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const (
	manifestFile   = "manifest.json"
	vectorizerFile = "vectorizer.json"
)

func classifierFile(alg Algorithm) string {
	return string(alg) + ".json"
}

// A Model bundles everything needed to classify raw text: the normalizer
// settings, the fitted vectorizer, the label space and the trained
// classifiers. A Model is immutable once built; retraining produces a new
// one.
type Model struct {
	Name string
	Info TrainingInfo

	normalizer  *Normalizer
	vectorizer  *Vectorizer
	labels      *LabelSpace
	classifiers []ProbabilisticClassifier
}

// NewModel assembles a Model and checks that every classifier was trained
// on the vectorizer's vocabulary and predicts over the label space.
func NewModel(name string, normalizer *Normalizer, vectorizer *Vectorizer, labels *LabelSpace, classifiers []ProbabilisticClassifier, info TrainingInfo) (*Model, error) {
	if vectorizer == nil || !vectorizer.Fitted() {
		return nil, ErrNotFitted
	}
	if labels == nil {
		return nil, invalidInput("model needs a label space")
	}
	if len(classifiers) == 0 {
		return nil, fmt.Errorf("%w: model has no classifiers", ErrNotFitted)
	}
	if normalizer == nil {
		normalizer = NewNormalizer()
	}

	seen := make(map[Algorithm]bool)
	sorted := append([]ProbabilisticClassifier(nil), classifiers...)
	for _, c := range sorted {
		if seen[c.Algorithm()] {
			return nil, invalidInput("duplicate %s classifier", c.Algorithm())
		}
		seen[c.Algorithm()] = true
		if c.Dim() != vectorizer.Dim() {
			return nil, fmt.Errorf("%w: %s: %w", ErrVocabularyMismatch, c.Algorithm(),
				&DimensionMismatchError{Expected: vectorizer.Dim(), Got: c.Dim()})
		}
		if c.Vocabulary() != vectorizer.Fingerprint() {
			return nil, fmt.Errorf("%w: %s was trained on a different vocabulary", ErrVocabularyMismatch, c.Algorithm())
		}
		if c.NumClasses() != labels.Len() {
			return nil, invalidInput("%s predicts %d classes but there are %d labels", c.Algorithm(), c.NumClasses(), labels.Len())
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Algorithm().rank() < sorted[j].Algorithm().rank() })

	return &Model{
		Name:        name,
		Info:        info,
		normalizer:  normalizer,
		vectorizer:  vectorizer,
		labels:      labels,
		classifiers: sorted,
	}, nil
}

// Normalizer returns the model's normalizer.
func (m *Model) Normalizer() *Normalizer { return m.normalizer }

// Vectorizer returns the model's fitted vectorizer.
func (m *Model) Vectorizer() *Vectorizer { return m.vectorizer }

// Labels returns the model's label space.
func (m *Model) Labels() *LabelSpace { return m.labels }

// Algorithms returns the algorithms present, in reporting order.
func (m *Model) Algorithms() []Algorithm {
	out := make([]Algorithm, len(m.classifiers))
	for i, c := range m.classifiers {
		out[i] = c.Algorithm()
	}
	return out
}

// Classifier returns the classifier for alg.
func (m *Model) Classifier(alg Algorithm) (ProbabilisticClassifier, bool) {
	for _, c := range m.classifiers {
		if c.Algorithm() == alg {
			return c, true
		}
	}
	return nil, false
}

type manifest struct {
	Format       string            `json:"format"`
	Version      int               `json:"version"`
	Name         string            `json:"name"`
	Labels       []string          `json:"labels"`
	DisplayNames []string          `json:"display_names"`
	Normalizer   NormalizerOptions `json:"normalizer"`
	Algorithms   []Algorithm       `json:"algorithms"`
	Fingerprint  string            `json:"fingerprint"`
	Info         TrainingInfo      `json:"training_info"`
}

// Encode serializes the model into named files.
func (m *Model) Encode() (map[string][]byte, error) {
	files := make(map[string][]byte)
	fingerprint := m.vectorizer.Fingerprint()

	man, err := json.MarshalIndent(manifest{
		Format:       formatName,
		Version:      formatVersion,
		Name:         m.Name,
		Labels:       m.labels.Names(),
		DisplayNames: m.labels.DisplayNames(),
		Normalizer:   m.normalizer.Options(),
		Algorithms:   m.Algorithms(),
		Fingerprint:  fingerprint,
		Info:         m.Info,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	files[manifestFile] = man

	if files[vectorizerFile], err = encodeVectorizer(m.vectorizer); err != nil {
		return nil, fmt.Errorf("encode vectorizer: %w", err)
	}
	for _, c := range m.classifiers {
		data, err := encodeClassifier(c)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.Algorithm(), err)
		}
		files[classifierFile(c.Algorithm())] = data
	}
	return files, nil
}

// DecodeModel rebuilds a model from the files produced by Encode.
func DecodeModel(files map[string][]byte) (*Model, error) {
	return decodeModel(func(name string) ([]byte, error) {
		data, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
		}
		return data, nil
	})
}

func decodeModel(read func(name string) ([]byte, error)) (*Model, error) {
	data, err := read(manifestFile)
	if err != nil {
		return nil, err
	}
	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrUnsupportedFormat, err)
	}
	if man.Format != formatName || man.Version != formatVersion {
		return nil, fmt.Errorf("%w: manifest %q version %d", ErrUnsupportedFormat, man.Format, man.Version)
	}

	labels, err := NewLabelSpace(man.Labels, nil)
	if err != nil {
		return nil, err
	}
	labels.withDisplayNames(man.DisplayNames)

	if data, err = read(vectorizerFile); err != nil {
		return nil, err
	}
	vectorizer, err := decodeVectorizer(data)
	if err != nil {
		return nil, err
	}
	if vectorizer.Fingerprint() != man.Fingerprint {
		return nil, fmt.Errorf("%w: vectorizer does not match manifest", ErrVocabularyMismatch)
	}

	var classifiers []ProbabilisticClassifier
	for _, alg := range man.Algorithms {
		if data, err = read(classifierFile(alg)); err != nil {
			return nil, err
		}
		c, err := decodeClassifier(data, vectorizer.Fingerprint(), vectorizer.Dim())
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", alg, err)
		}
		if c.Algorithm() != alg {
			return nil, fmt.Errorf("%w: %s holds a %s model", ErrUnsupportedFormat, classifierFile(alg), c.Algorithm())
		}
		classifiers = append(classifiers, c)
	}

	normalizer := NewNormalizer(UsingNormalizerOptions(man.Normalizer))
	return NewModel(man.Name, normalizer, vectorizer, labels, classifiers, man.Info)
}

// ModelFromDisk loads a Model from the user-provided location.
func ModelFromDisk(path string) (*Model, error) {
	m, err := modelFromFS(os.DirFS(path))
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(path)
	}
	return m, nil
}

// ModelFromFS loads the model stored in the first directory named name
// within filesys.
func ModelFromFS(name string, filesys fs.FS) (*Model, error) {
	var modelFS fs.FS
	err := fs.WalkDir(filesys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Model located. Exit tree traversal
		if d.IsDir() && d.Name() == name {
			modelFS, err = fs.Sub(filesys, path)
			if err != nil {
				return err
			}
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if modelFS == nil {
		return nil, fmt.Errorf("model %q: %w", name, fs.ErrNotExist)
	}
	return modelFromFS(modelFS)
}

func modelFromFS(filesys fs.FS) (*Model, error) {
	return decodeModel(func(name string) ([]byte, error) {
		return fs.ReadFile(filesys, name)
	})
}

// Write saves a Model to the user-provided location.
func (m *Model) Write(path string) error {
	files, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return err
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(path, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
