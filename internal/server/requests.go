package server

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/store"
)

// FilterBody is the wire form of a store.Filter.
type FilterBody struct {
	Path     string       `json:"path,omitempty"`
	Operator string       `json:"operator"`
	Value    any          `json:"value,omitempty"`
	Operands []FilterBody `json:"operands,omitempty"`
}

func (f *FilterBody) toFilter() (*store.Filter, error) {
	if f == nil {
		return nil, nil
	}
	op, err := store.ParseOperator(f.Operator)
	if err != nil {
		return nil, err
	}
	out := &store.Filter{Path: f.Path, Operator: op, Value: f.Value}
	for i := range f.Operands {
		sub, err := f.Operands[i].toFilter()
		if err != nil {
			return nil, err
		}
		out.Operands = append(out.Operands, *sub)
	}
	return out, nil
}

type FindBody struct {
	Collection string      `json:"collection,omitempty"`
	Properties []string    `json:"properties,omitempty"`
	Where      *FilterBody `json:"where,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Cursor     string      `json:"cursor,omitempty"`
}

func (b FindBody) request() (gateway.FindRequest, error) {
	where, err := b.Where.toFilter()
	if err != nil {
		return gateway.FindRequest{}, err
	}
	return gateway.FindRequest{
		Collection: b.Collection,
		Properties: b.Properties,
		Where:      where,
		Limit:      b.Limit,
		Cursor:     b.Cursor,
	}, nil
}

type SimilarBody struct {
	Collection string      `json:"collection,omitempty"`
	Text       string      `json:"text"`
	K          int         `json:"k,omitempty"`
	Properties []string    `json:"properties,omitempty"`
	Where      *FilterBody `json:"where,omitempty"`
}

func (b SimilarBody) request() (gateway.SimilarRequest, error) {
	where, err := b.Where.toFilter()
	if err != nil {
		return gateway.SimilarRequest{}, err
	}
	return gateway.SimilarRequest{
		Collection: b.Collection,
		Text:       b.Text,
		K:          b.K,
		Properties: b.Properties,
		Where:      where,
	}, nil
}

type ToolBody struct {
	Tool  string `json:"tool,omitempty"`
	Query string `json:"query"`
}

// ObjectBody is the wire form of a store.Object.
type ObjectBody struct {
	ID         string         `json:"id"`
	Score      float64        `json:"score,omitempty"`
	Properties map[string]any `json:"properties"`
}

type PageBody struct {
	Objects []ObjectBody `json:"objects"`
	Cursor  string       `json:"cursor,omitempty"`
	HasMore bool         `json:"has_more"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

func objectBodies(objs []store.Object) []ObjectBody {
	out := make([]ObjectBody, 0, len(objs))
	for _, o := range objs {
		out = append(out, ObjectBody{ID: o.ID, Score: o.Score, Properties: o.Properties})
	}
	return out
}

// remarshal moves a value between shapes through JSON.
func remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
