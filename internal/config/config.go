package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tsawler/classify"
)

// CorpusConfig describes where the labeled training documents live.
type CorpusConfig struct {
	Path        string   `yaml:"path"`
	Format      string   `yaml:"format"` // csv or jsonl; empty picks by extension
	TextColumn  string   `yaml:"text_column"`
	LabelColumn string   `yaml:"label_column"`
	Categories  []string `yaml:"categories,omitempty"`
}

// TrainingConfig holds every hyperparameter of a training run.
type TrainingConfig struct {
	Name         string                     `yaml:"name"`
	Algorithms   []string                   `yaml:"algorithms"`
	TestSplit    float64                    `yaml:"test_split"`
	Seed         int64                      `yaml:"seed"`
	Folds        int                        `yaml:"folds"`
	Normalizer   classify.NormalizerOptions `yaml:"normalizer"`
	Vectorizer   classify.VectorizerConfig  `yaml:"vectorizer"`
	NaiveBayes   classify.NaiveBayesConfig  `yaml:"naive_bayes"`
	SVM          classify.SVMConfig         `yaml:"svm"`
	Forest       classify.ForestConfig      `yaml:"random_forest"`
	DisplayNames map[string]string          `yaml:"display_names,omitempty"`
}

// ModelConfig locates the saved model directory.
type ModelConfig struct {
	Dir string `yaml:"dir"`
}

// RegistryConfig locates the sqlite database recording training runs.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	MaxUploadMB      int    `yaml:"max_upload_mb"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Training TrainingConfig `yaml:"training"`
	Model    ModelConfig    `yaml:"model"`
	Registry RegistryConfig `yaml:"registry"`
	Server   ServerConfig   `yaml:"server"`
}

// Environment variables that override file settings.
const (
	EnvModelDir = "CLASSIFY_MODEL_DIR"
	EnvAddr     = "CLASSIFY_ADDR"
	EnvRegistry = "CLASSIFY_REGISTRY"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./classify.yaml first, then ~/.config/classify/config.yaml.
// If neither exists, it writes defaults to ~/.config/classify/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "classify.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides file settings with CLASSIFY_* environment variables.
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvModelDir); v != "" {
		cfg.Model.Dir = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvRegistry); v != "" {
		cfg.Registry.Path = v
	}
}

// ClassifierConfig converts the training section into the library's
// TrainingConfig.
func (c *AppConfig) ClassifierConfig() (classify.TrainingConfig, error) {
	tc := classify.DefaultTrainingConfig()
	t := c.Training
	tc.Name = t.Name
	tc.Normalizer = t.Normalizer
	tc.Vectorizer = t.Vectorizer
	tc.NaiveBayes = t.NaiveBayes
	tc.SVM = t.SVM
	tc.Forest = t.Forest
	tc.TestSplit = t.TestSplit
	tc.Seed = t.Seed
	tc.DisplayNames = t.DisplayNames

	if len(t.Algorithms) > 0 {
		tc.Algorithms = nil
		for _, name := range t.Algorithms {
			alg, err := classify.ParseAlgorithm(name)
			if err != nil {
				return tc, err
			}
			tc.Algorithms = append(tc.Algorithms, alg)
		}
	}
	if _, err := classify.ParseLanguage(string(t.Normalizer.Language)); err != nil {
		return tc, err
	}
	return tc, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "classify", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Corpus: CorpusConfig{TextColumn: "text", LabelColumn: "category_name"},
		Training: TrainingConfig{
			Name:       "classify",
			Algorithms: []string{"naive_bayes", "linear_svm", "random_forest"},
			TestSplit:  0.2,
			Seed:       42,
			Folds:      5,
			Normalizer: classify.DefaultNormalizerOptions(),
			Vectorizer: classify.DefaultVectorizerConfig(),
			NaiveBayes: classify.DefaultNaiveBayesConfig(),
			SVM:        classify.DefaultSVMConfig(),
			Forest:     classify.DefaultForestConfig(),
		},
		Model:    ModelConfig{Dir: "models/current"},
		Registry: RegistryConfig{Path: "classify.db"},
		Server:   ServerConfig{Addr: ":8080", MaxUploadMB: 16, ReadTimeoutSecs: 30, WriteTimeoutSecs: 30},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Corpus.TextColumn == "" {
		cfg.Corpus.TextColumn = def.Corpus.TextColumn
	}
	if cfg.Corpus.LabelColumn == "" {
		cfg.Corpus.LabelColumn = def.Corpus.LabelColumn
	}
	cfg.Corpus.Format = strings.ToLower(cfg.Corpus.Format)
	if cfg.Training.Name == "" {
		cfg.Training.Name = def.Training.Name
	}
	if cfg.Training.TestSplit <= 0 || cfg.Training.TestSplit >= 1 {
		cfg.Training.TestSplit = def.Training.TestSplit
	}
	if cfg.Training.Folds < 2 {
		cfg.Training.Folds = def.Training.Folds
	}
	if cfg.Training.Normalizer.Language == "" {
		cfg.Training.Normalizer.Language = classify.English
	}
	if cfg.Training.Vectorizer.NgramMin == 0 {
		cfg.Training.Vectorizer.NgramMin = 1
	}
	if cfg.Training.Vectorizer.NgramMax < cfg.Training.Vectorizer.NgramMin {
		cfg.Training.Vectorizer.NgramMax = cfg.Training.Vectorizer.NgramMin
	}
	if cfg.Training.NaiveBayes.Alpha <= 0 {
		cfg.Training.NaiveBayes.Alpha = def.Training.NaiveBayes.Alpha
	}
	if cfg.Training.SVM.C <= 0 {
		cfg.Training.SVM.C = def.Training.SVM.C
	}
	if cfg.Training.SVM.MaxIter == 0 {
		cfg.Training.SVM.MaxIter = def.Training.SVM.MaxIter
	}
	if cfg.Training.Forest.Estimators == 0 {
		cfg.Training.Forest.Estimators = def.Training.Forest.Estimators
	}
	if cfg.Model.Dir == "" {
		cfg.Model.Dir = def.Model.Dir
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = def.Registry.Path
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = def.Server.ReadTimeoutSecs
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = def.Server.WriteTimeoutSecs
	}
}
