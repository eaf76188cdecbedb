// Package gateway is the read side: filtered exact reads, filtered similarity
// reads, and the retriever tools an agent calls.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/store"
)

const (
	DefaultPageSize    = 20
	DefaultSimilarityK = 20
	MaxPageSize        = 100
)

type Config struct {
	PageSize    int
	SimilarityK int
}

type FindRequest struct {
	Collection string
	Properties []string
	Where      *store.Filter
	Limit      int
	Cursor     string
}

type SimilarRequest struct {
	Collection string
	Text       string
	K          int
	Properties []string
	Where      *store.Filter
}

// Gateway holds no per-request state and is safe for concurrent use.
type Gateway struct {
	store  store.Client
	cfg    Config
	logger *slog.Logger
}

func New(st store.Client, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	cfg.PageSize = min(cfg.PageSize, MaxPageSize)
	if cfg.SimilarityK <= 0 {
		cfg.SimilarityK = DefaultSimilarityK
	}
	return &Gateway{store: st, cfg: cfg, logger: logger}
}

// Find returns one page of objects matching req.Where, in insertion order.
func (g *Gateway) Find(ctx context.Context, req FindRequest) (store.Page, error) {
	start := time.Now()
	if err := validCollection(req.Collection); err != nil {
		return store.Page{}, queryError("find", req.Collection, err)
	}
	after, err := decodeCursor(req.Cursor)
	if err != nil {
		return store.Page{}, queryError("find", req.Collection, err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = g.cfg.PageSize
	}
	limit = min(limit, MaxPageSize)

	page, err := g.store.Get(ctx, store.GetRequest{
		Collection: req.Collection,
		Properties: req.Properties,
		Where:      req.Where,
		Limit:      limit,
		After:      after,
	})
	if err != nil {
		g.logger.Warn("gateway.find.failed", "collection", req.Collection, "error", err)
		return store.Page{}, queryError("find", req.Collection, err)
	}
	if page.Objects == nil {
		page.Objects = []store.Object{}
	}
	g.logger.Debug("gateway.find.ok",
		"collection", req.Collection,
		"objects", len(page.Objects),
		"has_more", page.HasMore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return page, nil
}

// Similar ranks objects by similarity to req.Text. Fewer matches than K
// returns all of them; none returns an empty slice.
func (g *Gateway) Similar(ctx context.Context, req SimilarRequest) ([]store.Object, error) {
	start := time.Now()
	if err := validCollection(req.Collection); err != nil {
		return nil, queryError("similar", req.Collection, err)
	}
	k := req.K
	if k <= 0 {
		k = g.cfg.SimilarityK
	}

	hits, err := g.store.NearText(ctx, store.NearTextRequest{
		Collection: req.Collection,
		Text:       req.Text,
		K:          k,
		Properties: req.Properties,
		Where:      req.Where,
	})
	if err != nil {
		g.logger.Warn("gateway.similar.failed", "collection", req.Collection, "error", err)
		return nil, queryError("similar", req.Collection, err)
	}
	if hits == nil {
		hits = []store.Object{}
	}
	g.logger.Debug("gateway.similar.ok",
		"collection", req.Collection,
		"k", k,
		"hits", len(hits),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return hits, nil
}

// All walks every page of a collection.
func (g *Gateway) All(ctx context.Context, collection string, properties []string) ([]store.Object, error) {
	var out []store.Object
	cursor := ""
	for {
		page, err := g.Find(ctx, FindRequest{Collection: collection, Properties: properties, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Objects...)
		if !page.HasMore {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func validCollection(name string) error {
	return common.NewValidator().Field("collection", name, common.Required).Error()
}

// decodeCursor accepts only cursors minted by the store: base64url object ids.
func decodeCursor(cursor string) (string, error) {
	id, err := store.DecodeCursor(cursor)
	if err != nil || id == "" {
		return id, err
	}
	if _, perr := uuid.Parse(id); perr != nil {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidCursor, cursor)
	}
	return id, nil
}
