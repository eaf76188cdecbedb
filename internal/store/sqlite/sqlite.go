// Package sqlite is the embedded document store backend. Objects live in one
// table as JSON properties plus a float32 vector blob, and near-text reads are
// ranked in SQL through the vec_cosine scalar function.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"

	"github.com/joseph-ayodele/taix/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	definition TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS objects (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	properties TEXT NOT NULL,
	vector     BLOB
);
CREATE INDEX IF NOT EXISTS objects_collection_id ON objects (collection, id);
`

var registerOnce sync.Once

func registerFunctions() {
	registerOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
}

func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, aok := args[0].([]byte)
	b, bok := args[1].([]byte)
	if !aok || !bok {
		return nil, nil
	}
	va, err := store.DecodeVector(a)
	if err != nil {
		return nil, err
	}
	vb, err := store.DecodeVector(b)
	if err != nil {
		return nil, err
	}
	return store.Cosine(va, vb)
}

type dialect struct{}

func (dialect) Field(name string, _ store.DataType) string {
	return "json_extract(properties, '$." + name + "')"
}
func (dialect) Placeholder(int) string { return "?" }
func (dialect) LikeOperator() string   { return "LIKE" }

type Store struct {
	db       *sql.DB
	embedder store.Embedder
	logger   *slog.Logger

	mu          sync.RWMutex
	collections map[string]store.Collection
}

var _ store.Client = (*Store)(nil)

// Open opens or creates the database at dsn. The embedder may be nil, in
// which case objects are stored without vectors and NearText fails.
func Open(ctx context.Context, dsn string, embedder store.Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registerFunctions()

	logger.Info("store.sqlite.open", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers; sqlite has a single write lock anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		logger.Error("store.sqlite.migrate.failed", "error", err)
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, embedder: embedder, logger: logger, collections: map[string]store.Collection{}}, nil
}

func (s *Store) Close() error {
	s.logger.Info("store.sqlite.close")
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureCollection(ctx context.Context, c store.Collection) error {
	def, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (name, definition) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET definition = excluded.definition`, c.Name, string(def))
	if err != nil {
		s.logger.Error("store.sqlite.ensure_collection.failed", "collection", c.Name, "error", err)
		return err
	}
	s.mu.Lock()
	s.collections[c.Name] = c
	s.mu.Unlock()
	s.logger.Debug("store.sqlite.ensure_collection.ok", "collection", c.Name, "properties", len(c.Properties))
	return nil
}

func (s *Store) collection(ctx context.Context, name string) (store.Collection, error) {
	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	var def string
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM collections WHERE name = ?`, name).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Collection{}, fmt.Errorf("%w: %q", store.ErrUnknownCollection, name)
	}
	if err != nil {
		return store.Collection{}, err
	}
	if err := json.Unmarshal([]byte(def), &c); err != nil {
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

	vectors, err := s.vectors(ctx, c, objects)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO objects (id, collection, properties, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

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
		var vec any
		if vectors != nil {
			vec = store.EncodeVector(vectors[i])
		}
		if _, err := stmt.ExecContext(ctx, id, collection, string(props), vec); err != nil {
			return fmt.Errorf("insert object: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("store.sqlite.batch_write.ok",
		"collection", collection,
		"objects", len(objects),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Store) vectors(ctx context.Context, c store.Collection, objects []store.Object) ([][]float32, error) {
	if s.embedder == nil {
		return nil, nil
	}
	texts := make([]string, len(objects))
	for i, o := range objects {
		texts[i] = c.VectorText(o.Properties)
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed objects: %w", err)
	}
	if len(vecs) != len(objects) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d objects", len(vecs), len(objects))
	}
	return vecs, nil
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE collection = ? AND `+cond, args...)
	if err != nil {
		s.logger.Error("store.sqlite.delete.failed", "collection", collection, "error", err)
		return 0, err
	}
	n, _ := res.RowsAffected()
	s.logger.Info("store.sqlite.delete.ok", "collection", collection, "deleted", n)
	return n, nil
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
	b.WriteString(`SELECT id, properties FROM objects WHERE collection = ?`)
	if req.After != "" {
		b.WriteString(` AND id > ?`)
		args = append(args, req.After)
	}
	if req.Where != nil {
		cond, next, err := store.BuildWhere(c, *req.Where, dialect{}, args)
		if err != nil {
			return store.Page{}, err
		}
		args = next
		b.WriteString(" AND (" + cond + ")")
	}
	b.WriteString(` ORDER BY id LIMIT ?`)
	args = append(args, req.Limit)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return store.Page{}, err
	}
	defer func() { _ = rows.Close() }()

	var page store.Page
	for rows.Next() {
		var id, props string
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

	var args []any
	where := ""
	if req.Where != nil {
		cond, filterArgs, err := store.BuildWhere(c, *req.Where, dialect{}, nil)
		if err != nil {
			return nil, err
		}
		args = filterArgs
		where = " AND (" + cond + ")"
	}

	vecs, err := s.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}

	q := `SELECT id, properties, vec_cosine(vector, ?) AS score FROM objects
		WHERE collection = ? AND vector IS NOT NULL` + where + `
		ORDER BY score DESC, id LIMIT ?`
	all := append([]any{store.EncodeVector(vecs[0]), req.Collection}, args...)
	all = append(all, req.K)

	rows, err := s.db.QueryContext(ctx, q, all...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []store.Object{}
	for rows.Next() {
		var id, props string
		var score sql.NullFloat64
		if err := rows.Scan(&id, &props, &score); err != nil {
			return nil, err
		}
		o, err := decodeObject(req.Collection, id, props, req.Properties)
		if err != nil {
			return nil, err
		}
		o.Score = score.Float64
		out = append(out, o)
	}
	return out, rows.Err()
}

func decodeObject(collection, id, raw string, projection []string) (store.Object, error) {
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return store.Object{}, fmt.Errorf("decode object %s: %w", id, err)
	}
	return store.Object{ID: id, Collection: collection, Properties: store.Project(props, projection)}, nil
}
