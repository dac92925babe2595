package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tsawler/classify/internal/registry"
)

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := configFlag(fs)
	limit := fs.Int("limit", 20, "Number of runs to list")
	show := fs.String("show", "", "Print the per-algorithm reports of this run")
	restore := fs.String("restore", "", "Write the model of this run to -to")
	to := fs.String("to", "", "Destination directory for -restore (default: model.dir)")
	del := fs.String("delete", "", "Delete this run")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	reg, err := registry.Open(ctx, cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	switch {
	case *show != "":
		return showRun(ctx, reg, *show)
	case *restore != "":
		dir := cfg.Model.Dir
		if *to != "" {
			dir = *to
		}
		model, err := reg.LoadModel(ctx, *restore)
		if err != nil {
			return err
		}
		if err := model.Write(dir); err != nil {
			return err
		}
		log.Printf("restored run %s to %s", *restore, dir)
		return nil
	case *del != "":
		if err := reg.DeleteRun(ctx, *del); err != nil {
			return err
		}
		log.Printf("deleted run %s", *del)
		return nil
	}

	runs, err := reg.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No training runs recorded.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tname\ttrained\tdocs\tcategories\tbest\taccuracy")
	for _, run := range runs {
		best := run.Info.BestAccuracy
		res, _ := run.Info.Result(best)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%.4f\n", run.ID, run.Name, run.CreatedAt.Local().Format(time.DateTime),
			run.Info.TotalDocuments, len(run.Info.Labels), best.DisplayName(), res.Accuracy)
	}
	return w.Flush()
}

func showRun(ctx context.Context, reg *registry.Registry, id string) error {
	run, err := reg.GetRun(ctx, id)
	if err != nil {
		return err
	}
	metrics, err := reg.Metrics(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("run %s (%s), trained %s\n", run.ID, run.Name, run.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("%d documents, %d features, categories: %v\n\n", run.Info.TotalDocuments, run.Info.Features, run.Info.Labels)
	for _, m := range metrics {
		fmt.Printf("== %s: accuracy %.4f, macro f1 %.4f, trained in %s ==\n", m.Algorithm.DisplayName(), m.Accuracy, m.MacroF1, m.TrainingTime.Round(time.Millisecond))
		if m.Report != "" {
			fmt.Println(m.Report)
		}
	}
	return nil
}
