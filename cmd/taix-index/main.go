package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/app"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/indexer"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of invoices to index (overrides SOURCE_DIR)")
		qcfg    = flag.String("config", "", "extraction question set file (overrides EXTRACTION_CONFIG)")
		version = flag.String("version", "", "built-in question set version (overrides EXTRACTION_VERSION)")
		out     = flag.String("export", "", "write an XLSX export to this path after indexing")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if *dir != "" {
		cfg.Indexer.SourceDir = *dir
	}
	if *qcfg != "" {
		cfg.Extraction.Path = *qcfg
	}
	if *version != "" {
		cfg.Extraction.Version = *version
	}

	logger := common.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err := cfg.ValidateIndexer(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder := app.NewEmbedder(cfg, logger)
	res, err := app.OpenStore(ctx, cfg, embedder, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer res.Cleanup()

	ix, err := app.NewIndexer(ctx, cfg, res.Client, logger,
		indexer.WithStateObserver(func(s constants.IndexState) {
			logger.Info("indexer.state", "state", s)
		}),
	)
	if err != nil {
		logger.Error("failed to wire indexer", "error", err)
		os.Exit(2)
	}

	rep, err := ix.Run(ctx)
	printReport(rep)
	if err != nil {
		logger.Error("index run failed", "state", rep.State, "error", err)
		os.Exit(1)
	}

	if *out != "" {
		gw := app.NewGateway(cfg, res.Client, logger)
		data, err := app.NewExporter(cfg, gw, logger).ExportXLSX(ctx, nil)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			logger.Error("write export", "path", *out, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Exported to %s\n", *out)
	}

	if rep.PurgeFailed() || rep.WriteFailures > 0 {
		os.Exit(3)
	}
}

func printReport(rep indexer.Report) {
	fmt.Printf("State:      %s\n", rep.State)
	fmt.Printf("Documents:  %d\n", rep.Documents)
	fmt.Printf("Rendered:   %d\n", rep.Rendered)
	fmt.Printf("Built:      %d\n", rep.Built)
	fmt.Printf("Written:    %d\n", rep.Written)
	fmt.Printf("Tax limit:  %t\n", rep.LimitWritten)
	fmt.Printf("Elapsed:    %s\n", rep.Elapsed.Round(1e6))
	for _, p := range rep.Purges {
		if p.Err != nil {
			fmt.Printf("Purge %s failed: %v\n", p.Collection, p.Err)
			continue
		}
		fmt.Printf("Purged %s: %d\n", p.Collection, p.Deleted)
	}
	if len(rep.Failures) > 0 {
		fmt.Printf("Failures (%d):\n", len(rep.Failures))
		for _, f := range rep.Failures {
			fmt.Printf("  [%s] %s: %v\n", f.Stage, f.Path, f.Err)
		}
	}
}
