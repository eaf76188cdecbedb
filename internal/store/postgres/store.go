package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/taix/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS taix_collections (
	name       TEXT PRIMARY KEY,
	definition JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS taix_objects (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	properties JSONB NOT NULL,
	vector     BYTEA
);
CREATE INDEX IF NOT EXISTS taix_objects_collection_id ON taix_objects (collection, id);
`

type dialect struct{}

func (dialect) Field(name string, dt store.DataType) string {
	if dt == store.Number {
		return "(properties->>'" + name + "')::double precision"
	}
	return "(properties->>'" + name + "')"
}
func (dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (dialect) LikeOperator() string     { return "ILIKE" }

type Store struct {
	pool     *pgxpool.Pool
	embedder store.Embedder
	logger   *slog.Logger

	mu          sync.RWMutex
	collections map[string]store.Collection
}

var _ store.Client = (*Store)(nil)

func Open(ctx context.Context, cfg Config, embedder store.Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		logger.Error("store.postgres.migrate.failed", "error", err)
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool, embedder: embedder, logger: logger, collections: map[string]store.Collection{}}, nil
}

func (s *Store) Close() error {
	s.logger.Info("store.postgres.close")
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) EnsureCollection(ctx context.Context, c store.Collection) error {
	def, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO taix_collections (name, definition) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET definition = EXCLUDED.definition`, c.Name, def)
	if err != nil {
		s.logger.Error("store.postgres.ensure_collection.failed", "collection", c.Name, "error", err)
		return err
	}
	s.mu.Lock()
	s.collections[c.Name] = c
	s.mu.Unlock()
	return nil
}

func (s *Store) collection(ctx context.Context, name string) (store.Collection, error) {
	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	var def []byte
	err := s.pool.QueryRow(ctx, `SELECT definition FROM taix_collections WHERE name = $1`, name).Scan(&def)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Collection{}, fmt.Errorf("%w: %q", store.ErrUnknownCollection, name)
	}
	if err != nil {
		return store.Collection{}, err
	}
	if err := json.Unmarshal(def, &c); err != nil {
		return store.Collection{}, fmt.Errorf("decode collection %q: %w", name, err)
	}
	s.mu.Lock()
	s.collections[name] = c
	s.mu.Unlock()
	return c, nil
}

func (s *Store) BatchWrite(ctx context.Context, collection string, objects []store.Object) error {
	if len(objects) == 0 {
		return nil
	}
	start := time.Now()
	c, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	for _, o := range objects {
		if err := c.CheckProperties(o.Properties); err != nil {
			return err
		}
	}

	var vectors [][]float32
	if s.embedder != nil {
		texts := make([]string, len(objects))
		for i, o := range objects {
			texts[i] = c.VectorText(o.Properties)
		}
		if vectors, err = s.embedder.Embed(ctx, texts); err != nil {
			return fmt.Errorf("embed objects: %w", err)
		}
		if len(vectors) != len(objects) {
			return fmt.Errorf("embedder returned %d vectors for %d objects", len(vectors), len(objects))
		}
	}

	batch := &pgx.Batch{}
	for i, o := range objects {
		id := o.ID
		if id == "" {
			u, err := uuid.NewV7()
			if err != nil {
				return err
			}
			id = u.String()
		}
		props, err := json.Marshal(o.Properties)
		if err != nil {
			return fmt.Errorf("encode properties: %w", err)
		}
		var vec []byte
		if vectors != nil {
			vec = store.EncodeVector(vectors[i])
		}
		batch.Queue(`INSERT INTO taix_objects (id, collection, properties, vector) VALUES ($1, $2, $3, $4)`,
			id, collection, props, vec)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		s.logger.Error("store.postgres.batch_write.failed", "collection", collection, "objects", len(objects), "error", err)
		return err
	}
	s.logger.Info("store.postgres.batch_write.ok",
		"collection", collection,
		"objects", len(objects),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection string, where store.Filter) (int64, error) {
	c, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	cond, args, err := store.BuildWhere(c, where, dialect{}, []any{collection})
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM taix_objects WHERE collection = $1 AND `+cond, args...)
	if err != nil {
		s.logger.Error("store.postgres.delete.failed", "collection", collection, "error", err)
		return 0, err
	}
	s.logger.Info("store.postgres.delete.ok", "collection", collection, "deleted", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

func (s *Store) Get(ctx context.Context, req store.GetRequest) (store.Page, error) {
	c, err := s.collection(ctx, req.Collection)
	if err != nil {
		return store.Page{}, err
	}
	if err := c.CheckFields(req.Properties...); err != nil {
		return store.Page{}, err
	}
	if req.Limit <= 0 {
		return store.Page{}, fmt.Errorf("%w: limit must be positive", store.ErrInvalidFilter)
	}

	var b strings.Builder
	args := []any{req.Collection}
	b.WriteString(`SELECT id, properties FROM taix_objects WHERE collection = $1`)
	if req.After != "" {
		args = append(args, req.After)
		b.WriteString(" AND id > $" + strconv.Itoa(len(args)))
	}
	if req.Where != nil {
		cond, next, err := store.BuildWhere(c, *req.Where, dialect{}, args)
		if err != nil {
			return store.Page{}, err
		}
		args = next
		b.WriteString(" AND (" + cond + ")")
	}
	args = append(args, req.Limit)
	b.WriteString(" ORDER BY id LIMIT $" + strconv.Itoa(len(args)))

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return store.Page{}, err
	}
	defer rows.Close()

	var page store.Page
	for rows.Next() {
		var id string
		var props []byte
		if err := rows.Scan(&id, &props); err != nil {
			return store.Page{}, err
		}
		o, err := decodeObject(req.Collection, id, props, req.Properties)
		if err != nil {
			return store.Page{}, err
		}
		page.Objects = append(page.Objects, o)
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, err
	}
	if n := len(page.Objects); n > 0 {
		page.Cursor = store.EncodeCursor(page.Objects[n-1].ID)
		page.HasMore = n == req.Limit
	}
	return page, nil
}

// NearText filters in SQL, then ranks the candidates by cosine in Go.
func (s *Store) NearText(ctx context.Context, req store.NearTextRequest) ([]store.Object, error) {
	c, err := s.collection(ctx, req.Collection)
	if err != nil {
		return nil, err
	}
	if err := c.CheckFields(req.Properties...); err != nil {
		return nil, err
	}
	if s.embedder == nil {
		return nil, store.ErrNoEmbedder
	}
	if req.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", store.ErrInvalidFilter)
	}

	q := `SELECT id, properties, vector FROM taix_objects WHERE collection = $1 AND vector IS NOT NULL`
	args := []any{req.Collection}
	if req.Where != nil {
		cond, next, err := store.BuildWhere(c, *req.Where, dialect{}, args)
		if err != nil {
			return nil, err
		}
		args = next
		q += " AND (" + cond + ")"
	}

	vecs, err := s.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}
	query := vecs[0]

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Object{}
	for rows.Next() {
		var id string
		var props, blob []byte
		if err := rows.Scan(&id, &props, &blob); err != nil {
			return nil, err
		}
		v, err := store.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		score, err := store.Cosine(query, v)
		if err != nil {
			return nil, err
		}
		o, err := decodeObject(req.Collection, id, props, req.Properties)
		if err != nil {
			return nil, err
		}
		o.Score = score
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > req.K {
		out = out[:req.K]
	}
	return out, nil
}

func decodeObject(collection, id string, raw []byte, projection []string) (store.Object, error) {
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return store.Object{}, fmt.Errorf("decode object %s: %w", id, err)
	}
	return store.Object{ID: id, Collection: collection, Properties: store.Project(props, projection)}, nil
}
