// Package app wires configuration into the concrete store, extraction and
// indexing components shared by the binaries.
package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/taix/internal/archive"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/export"
	"github.com/joseph-ayodele/taix/internal/extract"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/indexer"
	"github.com/joseph-ayodele/taix/internal/inference"
	"github.com/joseph-ayodele/taix/internal/inference/openai"
	"github.com/joseph-ayodele/taix/internal/money"
	"github.com/joseph-ayodele/taix/internal/record"
	"github.com/joseph-ayodele/taix/internal/render"
	"github.com/joseph-ayodele/taix/internal/store"
	"github.com/joseph-ayodele/taix/internal/store/postgres"
	"github.com/joseph-ayodele/taix/internal/store/sqlite"
)

// StoreResult holds an opened store and its cleanup.
type StoreResult struct {
	Client  store.Client
	Backend string
	Cleanup func()
}

// Backend reports which store implementation a URL selects.
func Backend(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// OpenStore connects to the configured backend and ensures the default
// collections exist. embedder may be nil for callers that never near-text.
func OpenStore(ctx context.Context, cfg *common.Config, embedder store.Embedder, logger *slog.Logger) (*StoreResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	backend := Backend(cfg.Store.URL)

	var (
		client store.Client
		err    error
	)
	switch backend {
	case "postgres":
		client, err = postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Store.URL,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
			MaxConnIdleTime: cfg.Store.MaxConnIdleTime,
			DialTimeout:     cfg.Store.DialTimeout,
		}, embedder, logger)
	default:
		client, err = sqlite.Open(ctx, cfg.Store.URL, embedder, logger)
	}
	if err != nil {
		return nil, common.WrapError(err, "open "+backend+" store")
	}

	for _, c := range store.DefaultCollections() {
		if err := client.EnsureCollection(ctx, c); err != nil {
			_ = client.Close()
			return nil, common.WrapError(err, "ensure collection "+c.Name)
		}
	}
	logger.Info("app.store.ready", "backend", backend)

	return &StoreResult{
		Client:  client,
		Backend: backend,
		Cleanup: func() {
			if err := client.Close(); err != nil {
				logger.Warn("app.store.close.failed", "error", err)
			}
		},
	}, nil
}

func NewEmbedder(cfg *common.Config, logger *slog.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:  cfg.Embedder.APIKey,
		BaseURL: cfg.Embedder.BaseURL,
		Model:   cfg.Embedder.Model,
		Timeout: cfg.Embedder.Timeout,
	}, logger)
}

// ExtractionConfig loads the question set from file when one is configured,
// otherwise picks a built-in version. The oracle's MinScore overrides the set's.
func ExtractionConfig(cfg *common.Config) (extract.Config, error) {
	var (
		ec  extract.Config
		err error
	)
	if cfg.Extraction.Path != "" {
		ec, err = extract.LoadConfig(cfg.Extraction.Path)
	} else {
		ec, err = extract.Lookup(cfg.Extraction.Version)
	}
	if err != nil {
		return extract.Config{}, err
	}
	if cfg.Oracle.MinScore > 0 {
		ec.MinScore = cfg.Oracle.MinScore
	}
	return ec, nil
}

func NewRenderer(cfg *common.Config, logger *slog.Logger) *render.Renderer {
	return render.NewRenderer(render.Config{
		Pdftoppm:  cfg.Indexer.Pdftoppm,
		DPI:       cfg.Indexer.RenderDPI,
		OutputDir: cfg.Indexer.ImageDir,
		Enhance:   cfg.Indexer.EnhanceImages,
	}, logger)
}

func NewExtractor(cfg *common.Config, ec extract.Config, logger *slog.Logger) *extract.Extractor {
	oracle := inference.NewDocQAClient(inference.DocQAConfig{
		URL:     cfg.Oracle.URL,
		Token:   cfg.Oracle.Token,
		Timeout: cfg.Oracle.Timeout,
	}, logger)
	return extract.NewExtractor(oracle, ec, logger)
}

// NewArchiver returns nil when archiving is disabled.
func NewArchiver(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*archive.MinioArchiver, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	a, err := archive.NewMinioArchiver(archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := a.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// NewIndexer wires a full batch run against st.
func NewIndexer(ctx context.Context, cfg *common.Config, st store.Client, logger *slog.Logger, options ...indexer.Option) (*indexer.Indexer, error) {
	ec, err := ExtractionConfig(cfg)
	if err != nil {
		return nil, err
	}
	limit, err := record.NewLimit(cfg.TaxLimit.Value, cfg.TaxLimit.Currency, cfg.TaxLimit.Rule)
	if err != nil {
		return nil, err
	}
	options = append(options, indexer.WithLimit(limit))

	archiver, err := NewArchiver(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		options = append(options, indexer.WithArchiver(archiver))
	}

	return indexer.New(st,
		NewRenderer(cfg, logger),
		NewExtractor(cfg, ec, logger),
		record.NewBuilder(ec, logger),
		indexer.Options{
			SourceDir:    cfg.Indexer.SourceDir,
			ChunkSize:    cfg.Indexer.ChunkSize,
			MaxRetries:   cfg.Indexer.WriteRetries,
			Backoff:      cfg.Indexer.WriteBackoff,
			Workers:      cfg.Indexer.Workers,
			FlushWorkers: cfg.Indexer.FlushWorkers,
			DocTimeout:   cfg.Indexer.DocTimeout,
		},
		logger,
		options...,
	), nil
}

func NewGateway(cfg *common.Config, st store.Client, logger *slog.Logger) *gateway.Gateway {
	return gateway.New(st, gateway.Config{
		PageSize:    cfg.Gateway.PageSize,
		SimilarityK: cfg.Gateway.SimilarityK,
	}, logger)
}

// AmountStyle maps the configured export style name.
func AmountStyle(name string) money.Style {
	if strings.EqualFold(strings.TrimSpace(name), "dot") {
		return money.DotDecimal
	}
	return money.CommaDecimal
}

func NewExporter(cfg *common.Config, gw *gateway.Gateway, logger *slog.Logger) *export.Service {
	return export.NewService(gw, AmountStyle(cfg.Export.AmountStyle), logger)
}
