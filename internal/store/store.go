// Package store defines the document store the indexer writes to and the
// gateway reads from, plus the pieces shared by its SQL backends.
package store

import (
	"context"
	"errors"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrNoEmbedder        = errors.New("no embedder configured")
)

// Object is one stored document. Score is set by near-text reads only.
type Object struct {
	ID         string
	Collection string
	Properties map[string]any
	Score      float64
}

// GetRequest is an exact, filtered, paged read. After is a raw object id; empty starts at the beginning.
type GetRequest struct {
	Collection string
	Properties []string // projection; empty returns every property
	Where      *Filter
	Limit      int
	After      string
}

// Page is one page of a Get. Cursor continues after the last object and is
// empty only when the page is empty.
type Page struct {
	Objects []Object
	Cursor  string
	HasMore bool
}

// NearTextRequest ranks objects by similarity of their vector to the embedded Text.
type NearTextRequest struct {
	Collection string
	Text       string
	K          int
	Properties []string
	Where      *Filter
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Client interface {
	EnsureCollection(ctx context.Context, c Collection) error
	BatchWrite(ctx context.Context, collection string, objects []Object) error
	DeleteWhere(ctx context.Context, collection string, where Filter) (int64, error)
	Get(ctx context.Context, req GetRequest) (Page, error)
	NearText(ctx context.Context, req NearTextRequest) ([]Object, error)
	Ping(ctx context.Context) error
	Close() error
}

// Project keeps only the named properties. An empty list keeps everything.
func Project(props map[string]any, names []string) map[string]any {
	if len(names) == 0 {
		return props
	}
	out := make(map[string]any, len(names))
	for _, n := range names {
		if v, ok := props[n]; ok {
			out[n] = v
		}
	}
	return out
}
