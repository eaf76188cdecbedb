package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/store"
)

const (
	InvoiceToolName  = "invoice_tool"
	TaxLimitToolName = "tax_limit_tool"
)

// Tool is what an agent sees: a name, a description to route on, and a
// text-in text-out Run.
type Tool interface {
	Name() string
	Description() string
	Retrieve(ctx context.Context, query string) ([]store.Object, error)
	Run(ctx context.Context, query string) (string, error)
}

// RetrieverTool answers a query with a similarity read over one collection.
// The fixed prefix steers the query embedding toward the collection.
type RetrieverTool struct {
	name        string
	description string
	collection  string
	prefix      string
	properties  []string
	k           int
	gateway     *Gateway
}

var _ Tool = (*RetrieverTool)(nil)

type ToolOption func(*RetrieverTool)

// WithK sets how many objects a tool retrieves. Zero or less keeps the
// gateway's SimilarityK.
func WithK(k int) ToolOption {
	return func(t *RetrieverTool) {
		if k > 0 {
			t.k = k
		}
	}
}

func (t *RetrieverTool) apply(opts []ToolOption) *RetrieverTool {
	t.k = t.gateway.cfg.SimilarityK
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func NewInvoiceTool(g *Gateway, opts ...ToolOption) *RetrieverTool {
	t := &RetrieverTool{
		name:        InvoiceToolName,
		description: "useful for when you need to get information about an invoices",
		collection:  constants.InvoiceCollection,
		prefix:      "Invoice information: ",
		properties: []string{
			constants.PropFileName,
			constants.PropInvoiceNumber,
			constants.PropValue,
			constants.PropCurrency,
			constants.PropAmountError,
			constants.PropAmountRaw,
			constants.PropRecipientAddress,
			constants.PropCountry,
			constants.PropInvoiceItems,
		},
		gateway: g,
	}
	return t.apply(opts)
}

func NewTaxLimitTool(g *Gateway, opts ...ToolOption) *RetrieverTool {
	t := &RetrieverTool{
		name:        TaxLimitToolName,
		description: "useful for when you need to know the tax deductible limits",
		collection:  constants.TaxLimitCollection,
		prefix:      "Tax limit rule: ",
		properties:  []string{constants.PropLimitValue, constants.PropCurrency, constants.PropRule},
		gateway:     g,
	}
	return t.apply(opts)
}

// Tools returns every retriever tool keyed by name.
func Tools(g *Gateway, opts ...ToolOption) map[string]Tool {
	out := map[string]Tool{}
	for _, t := range []Tool{NewInvoiceTool(g, opts...), NewTaxLimitTool(g, opts...)} {
		out[t.Name()] = t
	}
	return out
}

func (t *RetrieverTool) Name() string        { return t.name }
func (t *RetrieverTool) Description() string { return t.description }

func (t *RetrieverTool) Retrieve(ctx context.Context, query string) ([]store.Object, error) {
	return t.gateway.Similar(ctx, SimilarRequest{
		Collection: t.collection,
		Text:       t.prefix + query,
		K:          t.k,
		Properties: t.properties,
	})
}

// Run renders the hits as plain text, one block per object.
func (t *RetrieverTool) Run(ctx context.Context, query string) (string, error) {
	hits, err := t.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "No matching documents found.", nil
	}
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, renderObject(h.Properties, t.properties))
	}
	return strings.Join(blocks, "\n\n"), nil
}

func renderObject(props map[string]any, order []string) string {
	keys := order
	if len(keys) == 0 {
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	var lines []string
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil || v == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", k, v))
	}
	return strings.Join(lines, "\n")
}
