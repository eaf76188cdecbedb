package gateway

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/store"
	"github.com/joseph-ayodele/taix/internal/store/sqlite"
	"github.com/joseph-ayodele/taix/internal/store/storetest"
)

func newTestGateway(t *testing.T, cfg Config) (*Gateway, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, "file:"+filepath.Join(t.TempDir(), "gw.db"), &storetest.HashEmbedder{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	for _, c := range store.DefaultCollections() {
		if err := st.EnsureCollection(ctx, c); err != nil {
			t.Fatalf("EnsureCollection failed: %v", err)
		}
	}

	var objs []store.Object
	for i, country := range []string{"Germany", "France", "Germany", "Spain", "Italy"} {
		objs = append(objs, store.Object{Properties: map[string]any{
			constants.PropFileName:      fmt.Sprintf("inv-%d.pdf", i),
			constants.PropInvoiceNumber: fmt.Sprintf("INV-%d", i),
			constants.PropCountry:       country,
			constants.PropValue:         float64(10 * (i + 1)),
			constants.PropCurrency:      "EUR",
			constants.PropPDF:           "JVBERi0=",
		}})
	}
	if err := st.BatchWrite(ctx, constants.InvoiceCollection, objs); err != nil {
		t.Fatalf("BatchWrite failed: %v", err)
	}
	limit := store.Object{Properties: map[string]any{
		constants.PropLimitValue: 50.0,
		constants.PropCurrency:   "EUR",
		constants.PropRule:       "Gifts to business partners are deductible up to this amount",
	}}
	if err := st.BatchWrite(ctx, constants.TaxLimitCollection, []store.Object{limit}); err != nil {
		t.Fatalf("BatchWrite failed: %v", err)
	}
	return New(st, cfg, nil), st
}

func TestFindByCountry(t *testing.T) {
	g, _ := newTestGateway(t, Config{})

	page, err := g.Find(context.Background(), FindRequest{
		Collection: constants.InvoiceCollection,
		Properties: []string{constants.PropFileName, constants.PropCountry},
		Where:      store.Where(constants.PropCountry, store.Equal, "Germany"),
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(page.Objects) != 2 {
		t.Fatalf("Expected 2 German invoices, got %d", len(page.Objects))
	}
	if page.Cursor == "" {
		t.Error("Expected a continuation cursor")
	}

	next, err := g.Find(context.Background(), FindRequest{
		Collection: constants.InvoiceCollection,
		Where:      store.Where(constants.PropCountry, store.Equal, "Germany"),
		Cursor:     page.Cursor,
	})
	if err != nil {
		t.Fatalf("Find with cursor failed: %v", err)
	}
	if len(next.Objects) != 0 {
		t.Errorf("Expected no objects after the last German invoice, got %d", len(next.Objects))
	}
}

func TestFindZeroMatches(t *testing.T) {
	g, _ := newTestGateway(t, Config{})
	page, err := g.Find(context.Background(), FindRequest{
		Collection: constants.InvoiceCollection,
		Where:      store.Where(constants.PropCountry, store.Equal, "Atlantis"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.Objects == nil || len(page.Objects) != 0 {
		t.Errorf("Expected an empty, non-nil page, got %+v", page.Objects)
	}
}

func TestFindPagesWithDefaultSize(t *testing.T) {
	g, _ := newTestGateway(t, Config{PageSize: 2})
	all, err := g.All(context.Background(), constants.InvoiceCollection, []string{constants.PropFileName})
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Expected 5 invoices, got %d", len(all))
	}
	if all[0].Properties[constants.PropFileName] != "inv-0.pdf" || all[4].Properties[constants.PropFileName] != "inv-4.pdf" {
		t.Errorf("Expected insertion order, got %v .. %v", all[0].Properties, all[4].Properties)
	}
}

func TestFindErrors(t *testing.T) {
	g, _ := newTestGateway(t, Config{})
	tests := []struct {
		name  string
		req   FindRequest
		cause error
	}{
		{"unknown filter field", FindRequest{Collection: constants.InvoiceCollection, Where: store.Where("colour", store.Equal, "red")}, store.ErrUnknownField},
		{"unknown projection", FindRequest{Collection: constants.InvoiceCollection, Properties: []string{"colour"}}, store.ErrUnknownField},
		{"unknown collection", FindRequest{Collection: "Receipt"}, store.ErrUnknownCollection},
		{"bad cursor", FindRequest{Collection: constants.InvoiceCollection, Cursor: "bm90LWEtdXVpZA"}, store.ErrInvalidCursor},
		{"missing collection", FindRequest{}, common.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Find(context.Background(), tt.req)
			var qerr *QueryError
			if !errors.As(err, &qerr) {
				t.Fatalf("Expected *QueryError, got %T (%v)", err, err)
			}
			if !errors.Is(err, common.ErrQuery) || !errors.Is(err, tt.cause) {
				t.Errorf("Expected ErrQuery wrapping %v, got %v", tt.cause, err)
			}
			if !qerr.InvalidInput() {
				t.Error("Expected caller fault")
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	g, _ := newTestGateway(t, Config{})

	hits, err := g.Similar(context.Background(), SimilarRequest{Collection: constants.InvoiceCollection, Text: "Germany", K: 20})
	if err != nil {
		t.Fatalf("Similar failed: %v", err)
	}
	if len(hits) != 5 {
		t.Errorf("Expected all 5 invoices when k=20, got %d", len(hits))
	}

	hits, err = g.Similar(context.Background(), SimilarRequest{
		Collection: constants.InvoiceCollection,
		Text:       "Germany",
		Where:      store.Where(constants.PropValue, store.GreaterThan, 1000),
	})
	if err != nil {
		t.Fatalf("Expected no error for zero matches, got %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", hits)
	}
}

type brokenStore struct{ store.Client }

func (brokenStore) NearText(context.Context, store.NearTextRequest) ([]store.Object, error) {
	return nil, errors.New("connection reset")
}

func TestSimilarPropagatesStoreFault(t *testing.T) {
	g := New(brokenStore{}, Config{}, nil)
	_, err := g.Similar(context.Background(), SimilarRequest{Collection: constants.InvoiceCollection, Text: "x"})
	var qerr *QueryError
	if !errors.As(err, &qerr) || qerr.InvalidInput() {
		t.Errorf("Expected a store-side QueryError, got %v", err)
	}
}

func TestTools(t *testing.T) {
	g, _ := newTestGateway(t, Config{})
	tools := Tools(g)

	inv, ok := tools[InvoiceToolName]
	if !ok {
		t.Fatal("Expected invoice_tool")
	}
	out, err := inv.Run(context.Background(), "invoices sent to Germany")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out, "country: Germany") {
		t.Errorf("Expected invoice details in output, got %q", out)
	}
	if strings.Contains(out, "JVBERi0=") {
		t.Error("Expected the raw document to be left out")
	}

	tax := tools[TaxLimitToolName]
	if tax.Description() != "useful for when you need to know the tax deductible limits" {
		t.Errorf("Unexpected description %q", tax.Description())
	}
	out, err = tax.Run(context.Background(), "gift limit")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out, "limit_value: 50") || !strings.Contains(out, "currency: EUR") {
		t.Errorf("Expected the limit in output, got %q", out)
	}
}

type limitStore struct {
	store.Client
	limits []int
}

func (s *limitStore) Get(_ context.Context, req store.GetRequest) (store.Page, error) {
	s.limits = append(s.limits, req.Limit)
	return store.Page{}, nil
}

func TestFindClampsLimit(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		limit    int
		expected int
	}{
		{"default page size", Config{}, 0, DefaultPageSize},
		{"caller limit kept", Config{}, 7, 7},
		{"caller limit clamped", Config{}, 1000, MaxPageSize},
		{"configured page size clamped", Config{PageSize: 500}, 0, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &limitStore{}
			g := New(st, tt.cfg, nil)
			if _, err := g.Find(context.Background(), FindRequest{Collection: constants.InvoiceCollection, Limit: tt.limit}); err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if len(st.limits) != 1 || st.limits[0] != tt.expected {
				t.Errorf("Expected store limit %d, got %v", tt.expected, st.limits)
			}
		})
	}
}

func TestToolK(t *testing.T) {
	g, _ := newTestGateway(t, Config{SimilarityK: 3})

	hits, err := NewInvoiceTool(g).Retrieve(context.Background(), "Germany")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("Expected the configured 3 hits, got %d", len(hits))
	}

	hits, err = Tools(g, WithK(2))[InvoiceToolName].Retrieve(context.Background(), "Germany")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("Expected 2 hits with WithK(2), got %d", len(hits))
	}

	if tool := NewTaxLimitTool(g, WithK(0)); tool.k != 3 {
		t.Errorf("Expected WithK(0) to keep k=3, got %d", tool.k)
	}
}
