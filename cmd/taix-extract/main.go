package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/taix/internal/app"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/record"
)

func main() {
	var (
		qcfg    = flag.String("config", "", "extraction question set file")
		version = flag.String("version", "", "built-in question set version")
		timeout = flag.Duration("timeout", 3*time.Minute, "overall timeout")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: taix-extract [-config file] [-version v2] <invoice.pdf|png|jpg>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if *qcfg != "" {
		cfg.Extraction.Path = *qcfg
	}
	if *version != "" {
		cfg.Extraction.Version = *version
	}
	logger := common.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ec, err := app.ExtractionConfig(cfg)
	if err != nil {
		logger.Error("load extraction config", "error", err)
		os.Exit(2)
	}

	image, err := app.NewRenderer(cfg, logger).Render(ctx, path)
	if err != nil {
		logger.Error("render failed", "path", path, "error", err)
		os.Exit(1)
	}
	answers, err := app.NewExtractor(cfg, ec, logger).Extract(ctx, image)
	if err != nil {
		logger.Error("extract failed", "path", path, "error", err)
		os.Exit(1)
	}

	rec, err := record.NewBuilder(ec, logger).Build(record.Source{Path: path, ImagePath: image}, answers)
	if err != nil {
		logger.Error("build failed", "path", path, "error", err)
		os.Exit(1)
	}

	out := rec.Properties()
	for _, field := range ec.Fields() {
		fa, _ := answers.Get(field)
		logger.Info("extract.answer", "field", field, "value", fa.Value, "score", fa.Score, "status", fa.Status, "error", fa.Err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
}
