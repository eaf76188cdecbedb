package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/app"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/store"
)

func main() {
	var (
		mode       = flag.String("mode", "find", "find|similar|tool|export|health")
		collection = flag.String("collection", constants.InvoiceCollection, "collection to read")
		field      = flag.String("field", "", "filter property path")
		op         = flag.String("op", string(store.Equal), "filter operator")
		value      = flag.String("value", "", "filter value")
		props      = flag.String("props", "", "comma-separated properties to return")
		limit      = flag.Int("limit", 0, "page size (find)")
		cursor     = flag.String("cursor", "", "continuation cursor (find)")
		text       = flag.String("text", "", "query text (similar, tool)")
		k          = flag.Int("k", 0, "result count (similar, tool)")
		tool       = flag.String("tool", "invoice_tool", "tool name (tool)")
		out        = flag.String("out", "invoices.xlsx", "output path (export)")
		timeout    = flag.Duration("timeout", time.Minute, "overall timeout")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	needsEmbedder := *mode == "similar" || *mode == "tool"
	if needsEmbedder {
		if err := cfg.ValidateQuery(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var embedder store.Embedder
	if needsEmbedder {
		embedder = app.NewEmbedder(cfg, logger)
	}
	res, err := app.OpenStore(ctx, cfg, embedder, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer res.Cleanup()
	gw := app.NewGateway(cfg, res.Client, logger)

	var where *store.Filter
	if *field != "" {
		operator, err := store.ParseOperator(*op)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		where = store.Where(*field, operator, *value)
	}
	var properties []string
	if *props != "" {
		properties = strings.Split(*props, ",")
	}

	switch *mode {
	case "health":
		if err := res.Client.Ping(ctx); err != nil {
			logger.Error("store unhealthy", "backend", res.Backend, "error", err)
			os.Exit(1)
		}
		fmt.Printf("ok (%s)\n", res.Backend)
	case "find":
		page, err := gw.Find(ctx, gateway.FindRequest{
			Collection: *collection,
			Properties: properties,
			Where:      where,
			Limit:      *limit,
			Cursor:     *cursor,
		})
		exitOn(err)
		printJSON(page)
	case "similar":
		hits, err := gw.Similar(ctx, gateway.SimilarRequest{
			Collection: *collection,
			Text:       *text,
			K:          *k,
			Properties: properties,
			Where:      where,
		})
		exitOn(err)
		printJSON(hits)
	case "tool":
		t, ok := gateway.Tools(gw, gateway.WithK(*k))[*tool]
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown tool %q\n", *tool)
			os.Exit(2)
		}
		output, err := t.Run(ctx, *text)
		exitOn(err)
		fmt.Println(output)
	case "export":
		data, err := app.NewExporter(cfg, gw, logger).ExportXLSX(ctx, where)
		exitOn(err)
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			exitOn(err)
		}
		fmt.Printf("Exported to %s\n", *out)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitOn(err)
	}
}
