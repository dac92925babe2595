package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tsawler/classify"
	"github.com/tsawler/classify/internal/registry"
	"github.com/tsawler/classify/internal/server"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := configFlag(fs)
	addr := fs.String("addr", "", "Listen address (default: server.addr)")
	modelDir := fs.String("model", "", "Model directory (default: model.dir)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}

	// Start without a model rather than fail: the API answers 503 until a
	// model is trained and reloaded.
	predictor := classify.NewPredictor(nil)
	if model, err := classify.ModelFromDisk(cfg.Model.Dir); err != nil {
		log.Printf("no model loaded: %v", err)
	} else {
		predictor.Swap(model)
		log.Printf("loaded model %q (%d categories)", model.Name, model.Labels().Len())
	}

	opts := server.Options{
		ModelDir:       cfg.Model.Dir,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Logger:         log.New(os.Stderr, "", log.LstdFlags),
	}
	if cfg.Registry.Path != "" {
		reg, err := registry.Open(ctx, cfg.Registry.Path)
		if err != nil {
			log.Printf("run registry unavailable: %v", err)
		} else {
			defer reg.Close()
			opts.Runs = reg
		}
	}

	srv := server.New(predictor, opts)
	err = srv.ListenAndServe(ctx, cfg.Server.Addr,
		time.Duration(cfg.Server.ReadTimeoutSecs)*time.Second,
		time.Duration(cfg.Server.WriteTimeoutSecs)*time.Second)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
