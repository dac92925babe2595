package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tsawler/classify"
	"github.com/tsawler/classify/internal/config"
	"github.com/tsawler/classify/internal/corpus"
	"github.com/tsawler/classify/internal/registry"
)

// corpusFlags are shared by train and evaluate.
type corpusFlags struct {
	config     *string
	path       *string
	format     *string
	categories *string
	algorithms *string
}

func addCorpusFlags(fs *flag.FlagSet) corpusFlags {
	return corpusFlags{
		config:     configFlag(fs),
		path:       fs.String("corpus", "", "Labeled corpus (.csv or .jsonl); overrides corpus.path"),
		format:     fs.String("format", "", "Corpus format: csv or jsonl (default: by extension)"),
		categories: fs.String("categories", "", "Comma-separated categories to keep (default: all)"),
		algorithms: fs.String("algorithms", "", "Comma-separated algorithms: nb, svm, rf (default: from config)"),
	}
}

// load reads the config and corpus and applies the command-line overrides.
func (f corpusFlags) load() (*config.AppConfig, []classify.LabeledDocument, []string, error) {
	cfg, err := loadConfig(*f.config)
	if err != nil {
		return nil, nil, nil, err
	}
	if *f.path != "" {
		cfg.Corpus.Path = *f.path
	}
	if *f.format != "" {
		cfg.Corpus.Format = *f.format
	}
	if cats := splitList(*f.categories); len(cats) > 0 {
		cfg.Corpus.Categories = cats
	}
	if algs := splitList(*f.algorithms); len(algs) > 0 {
		cfg.Training.Algorithms = algs
	}
	if cfg.Corpus.Path == "" {
		return nil, nil, nil, fmt.Errorf("no corpus: pass -corpus or set corpus.path")
	}

	records, err := corpus.LoadFile(cfg.Corpus.Path, cfg.Corpus.Format, corpus.Options{
		TextColumn:  cfg.Corpus.TextColumn,
		LabelColumn: cfg.Corpus.LabelColumn,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	docs, names, err := corpus.SelectCategories(records, cfg.Corpus.Categories)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Printf("loaded %d documents in %d categories from %s", len(docs), len(names), cfg.Corpus.Path)
	for i, n := range corpus.Distribution(docs, len(names)) {
		log.Printf("  %-28s %d", names[i], n)
	}
	return cfg, docs, names, nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cf := addCorpusFlags(fs)
	out := fs.String("out", "", "Directory to write the model to (default: model.dir)")
	noRegistry := fs.Bool("no-registry", false, "Do not record the run in the registry")
	fs.Parse(args)

	cfg, docs, names, err := cf.load()
	if err != nil {
		return err
	}
	if *out != "" {
		cfg.Model.Dir = *out
	}
	tc, err := cfg.ClassifierConfig()
	if err != nil {
		return err
	}
	tc.Context = ctx
	tc.ProgressCallback = func(stage string, done, total int) {
		if done == total {
			log.Printf("%s done", stage)
		}
	}
	tc.WarningCallback = func(w classify.ConvergenceWarning) {
		log.Printf("warning: %v", w)
	}

	model, report, err := classify.NewTrainer(tc).Train(docs, names)
	if err != nil {
		return err
	}
	printTrainingReport(report)

	if err := model.Write(cfg.Model.Dir); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	log.Printf("model written to %s", cfg.Model.Dir)
	if err := report.WriteResults(cfg.Model.Dir); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if *noRegistry || cfg.Registry.Path == "" {
		return nil
	}
	reg, err := registry.Open(ctx, cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()
	id, err := reg.RecordRun(ctx, model, report)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	log.Printf("recorded run %s in %s", id, cfg.Registry.Path)
	return nil
}

func printTrainingReport(report *classify.TrainingReport) {
	info := report.Info
	fmt.Printf("\n%d documents (%d train / %d test), %d features\n\n",
		info.TotalDocuments, info.TrainDocuments, info.TestDocuments, info.Features)
	for _, res := range info.Results {
		fmt.Printf("== %s ==\n", res.Algorithm.DisplayName())
		if m := report.Evaluations[res.Algorithm]; m != nil {
			fmt.Println(m.Report())
			fmt.Println(m.ConfusionReport())
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "algorithm\taccuracy\tmacro f1\ttraining\tprediction\tconverged")
	for _, res := range info.Results {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%s\t%s\t%v\n", res.Algorithm.DisplayName(), res.Accuracy, res.MacroF1,
			res.TrainingTime.Round(time.Millisecond), res.PredictionTime.Round(time.Microsecond), res.Converged)
	}
	w.Flush()
	fmt.Printf("\nbest accuracy: %s, fastest training: %s\n", info.BestAccuracy.DisplayName(), info.FastestTraining.DisplayName())
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	cf := addCorpusFlags(fs)
	folds := fs.Int("folds", 0, "Number of folds (default: training.folds)")
	fs.Parse(args)

	cfg, docs, names, err := cf.load()
	if err != nil {
		return err
	}
	k := cfg.Training.Folds
	if *folds > 0 {
		k = *folds
	}
	tc, err := cfg.ClassifierConfig()
	if err != nil {
		return err
	}
	tc.Context = ctx
	tc.WarningCallback = func(w classify.ConvergenceWarning) {
		log.Printf("warning: %v", w)
	}

	results, err := classify.NewTrainer(tc).CrossValidate(docs, names, k)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "algorithm\taccuracy (%d folds)\tmacro f1\n", k)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.4f ± %.4f\t%.4f ± %.4f\n", r.Algorithm.DisplayName(), r.MeanAccuracy, r.StdAccuracy, r.MeanF1, r.StdF1)
	}
	return w.Flush()
}
