package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tsawler/classify/internal/config"
)

const usage = `Usage: classify <command> [flags]

Commands:
  train     fit the vectorizer and classifiers on a labeled corpus
  predict   classify text from arguments, a file or stdin
  evaluate  k-fold cross-validation on a labeled corpus
  serve     run the HTTP API
  tui       classify interactively in the terminal
  runs      list, inspect or restore recorded training runs

Run "classify <command> -h" for the flags of a command.
`

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "train":
		err = runTrain(ctx, args)
	case "predict":
		err = runPredict(ctx, args)
	case "evaluate":
		err = runEvaluate(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "tui":
		err = runTUI(ctx, args)
	case "runs":
		err = runRuns(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		stop()
		log.Fatalf("%s: %v", cmd, err)
	}
}

// loadConfig reads the file named by -config, or the default locations, and
// applies environment overrides.
func loadConfig(path string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyEnv(cfg)
	return cfg, nil
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Path to YAML config file (optional; uses ./classify.yaml or ~/.config/classify/config.yaml)")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
