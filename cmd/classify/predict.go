package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tsawler/classify"
	"github.com/tsawler/classify/internal/extract"
	"github.com/tsawler/classify/internal/tui"
)

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cfgPath := configFlag(fs)
	modelDir := fs.String("model", "", "Model directory (default: model.dir)")
	file := fs.String("file", "", "Classify the text of this file (txt, csv, json, pdf, html)")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}

	var text string
	switch {
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		if text, err = extract.File(filepath.Base(*file), data); err != nil {
			return err
		}
	case fs.NArg() > 0:
		text = strings.Join(fs.Args(), " ")
	default:
		data, err := extract.ReadAll(os.Stdin, extract.MaxSize)
		if err != nil {
			return err
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: nothing to classify", classify.ErrInvalidInput)
	}

	model, err := classify.ModelFromDisk(cfg.Model.Dir)
	if err != nil {
		return err
	}
	res, err := model.Classify(ctx, text)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printResult(os.Stdout, res)
}

func printResult(out io.Writer, res *classify.Result) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "algorithm\tcategory\tconfidence\tlevel\ttime")
	for _, p := range res.Predictions {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\n", p.AlgorithmName, p.DisplayLabel, 100*p.Confidence, p.ConfidenceLevel, p.Elapsed)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if c, ok := res.Consensus(); ok {
		fmt.Fprintf(out, "\nconsensus: %s (%d/%d)\n", c.DisplayLabel, c.Votes, c.Of)
	}
	fmt.Fprintf(out, "%d characters, %d tokens, %d features, %s total\n", res.TextLength, res.TokenCount, res.Features, res.Timing.Total)
	return nil
}

func runTUI(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	cfgPath := configFlag(fs)
	modelDir := fs.String("model", "", "Model directory (default: model.dir)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}
	model, err := classify.ModelFromDisk(cfg.Model.Dir)
	if err != nil {
		return err
	}

	algs := make([]string, 0, len(model.Algorithms()))
	for _, a := range model.Algorithms() {
		algs = append(algs, a.DisplayName())
	}
	summary := fmt.Sprintf("%s: %d categories, %d features, %s", model.Name, model.Labels().Len(), model.Vectorizer().Dim(), strings.Join(algs, ", "))

	m := tui.New(classify.NewPredictor(model), summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return nil
}
