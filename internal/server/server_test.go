package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/store"
	"github.com/joseph-ayodele/taix/internal/store/sqlite"
	"github.com/joseph-ayodele/taix/internal/store/storetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func seededGateway(t *testing.T) (*gateway.Gateway, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, "file:"+filepath.Join(t.TempDir(), "srv.db"), &storetest.HashEmbedder{}, nil)
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
	for _, country := range []string{"Germany", "France", "Germany", "Spain", "Italy"} {
		objs = append(objs, store.Object{Properties: map[string]any{
			constants.PropFileName: strings.ToLower(country) + ".pdf",
			constants.PropCountry:  country,
			constants.PropValue:    42.0,
			constants.PropCurrency: "EUR",
		}})
	}
	if err := st.BatchWrite(ctx, constants.InvoiceCollection, objs); err != nil {
		t.Fatalf("BatchWrite failed: %v", err)
	}
	return gateway.New(st, gateway.Config{}, nil), st
}

type stubExporter struct{ where *store.Filter }

func (s *stubExporter) ExportXLSX(_ context.Context, where *store.Filter) ([]byte, error) {
	s.where = where
	return []byte("PK"), nil
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHTTPFind(t *testing.T) {
	gw, st := seededGateway(t)
	router := NewRouter(gw, gateway.Tools(gw), nil, st, nil)

	w := doJSON(t, router, http.MethodPost, "/v1/collections/Invoice/find", FindBody{
		Where: &FilterBody{Path: "country", Operator: "Equal", Value: "Germany"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page PageBody
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Objects) != 2 || page.Cursor == "" {
		t.Errorf("Expected 2 objects with a cursor, got %d / %q", len(page.Objects), page.Cursor)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("Expected a request id header")
	}

	w = doJSON(t, router, http.MethodPost, "/v1/collections/Invoice/find", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected an empty body to list everything, got %d", w.Code)
	}
}

func TestHTTPErrors(t *testing.T) {
	gw, _ := seededGateway(t)
	router := NewRouter(gw, gateway.Tools(gw), nil, nil, nil)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown field", "/v1/collections/Invoice/find", FindBody{Where: &FilterBody{Path: "colour", Operator: "Equal", Value: "red"}}, http.StatusBadRequest},
		{"bad operator", "/v1/collections/Invoice/find", FindBody{Where: &FilterBody{Path: "country", Operator: "Near", Value: "x"}}, http.StatusBadRequest},
		{"unknown collection", "/v1/collections/Receipt/find", FindBody{}, http.StatusBadRequest},
		{"bad cursor", "/v1/collections/Invoice/find", FindBody{Cursor: "%%%"}, http.StatusBadRequest},
		{"unknown tool", "/v1/tools/weather_tool", ToolBody{Query: "rain"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHTTPSimilarAndTools(t *testing.T) {
	gw, _ := seededGateway(t)
	router := NewRouter(gw, gateway.Tools(gw), nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/v1/collections/Invoice/similar", SimilarBody{Text: "Germany", K: 20})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page PageBody
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if len(page.Objects) != 5 {
		t.Errorf("Expected 5 hits, got %d", len(page.Objects))
	}

	w = doJSON(t, router, http.MethodPost, "/v1/tools/invoice_tool", ToolBody{Query: "Germany"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res ToolResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !strings.Contains(res.Output, "country: Germany") {
		t.Errorf("Expected invoice details, got %q", res.Output)
	}
}

func TestHTTPHealthAndExport(t *testing.T) {
	gw, st := seededGateway(t)
	exp := &stubExporter{}
	router := NewRouter(gw, nil, exp, st, nil)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected healthy store, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/export.xlsx?country=Germany", nil)
	if w.Code != http.StatusOK || w.Body.String() != "PK" {
		t.Errorf("Expected workbook bytes, got %d %q", w.Code, w.Body.String())
	}
	if exp.where == nil || exp.where.Value != "Germany" {
		t.Errorf("Expected the country filter to reach the exporter, got %+v", exp.where)
	}

	_ = st.Close()
	w = doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 after the store closed, got %d", w.Code)
	}
}

func dialQuery(t *testing.T, svc QueryServer) *QueryClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor(slogDiscard())))
	RegisterQueryServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewQueryClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGRPCQueryService(t *testing.T) {
	gw, _ := seededGateway(t)
	client := dialQuery(t, NewQueryService(gw, gateway.Tools(gw), nil))
	ctx := context.Background()

	out, err := client.Find(ctx, mustStruct(t, map[string]any{
		"collection": "Invoice",
		"where":      map[string]any{"path": "country", "operator": "Equal", "value": "Germany"},
	}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if n := len(out.Fields["objects"].GetListValue().GetValues()); n != 2 {
		t.Errorf("Expected 2 objects, got %d", n)
	}
	if out.Fields["cursor"].GetStringValue() == "" {
		t.Error("Expected a cursor")
	}

	out, err = client.Similar(ctx, mustStruct(t, map[string]any{"collection": "Invoice", "text": "Germany", "k": 20}))
	if err != nil {
		t.Fatalf("Similar failed: %v", err)
	}
	if n := len(out.Fields["objects"].GetListValue().GetValues()); n != 5 {
		t.Errorf("Expected 5 hits, got %d", n)
	}

	out, err = client.RunTool(ctx, mustStruct(t, map[string]any{"tool": "invoice_tool", "query": "Germany"}))
	if err != nil {
		t.Fatalf("RunTool failed: %v", err)
	}
	if !strings.Contains(out.Fields["output"].GetStringValue(), "Germany") {
		t.Errorf("Unexpected tool output %v", out.Fields["output"])
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	gw, _ := seededGateway(t)
	client := dialQuery(t, NewQueryService(gw, gateway.Tools(gw), nil))
	ctx := context.Background()

	_, err := client.Find(ctx, mustStruct(t, map[string]any{
		"collection": "Invoice",
		"where":      map[string]any{"path": "colour", "operator": "Equal", "value": "red"},
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument for an unknown field, got %v", err)
	}

	_, err = client.Find(ctx, mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument without a collection, got %v", err)
	}

	_, err = client.RunTool(ctx, mustStruct(t, map[string]any{"tool": "nope"}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound for an unknown tool, got %v", err)
	}
}

func TestToStatusInternal(t *testing.T) {
	err := toStatus(&gateway.QueryError{Op: "similar", Collection: "Invoice", Err: errors.New("connection reset")})
	if status.Code(err) != codes.Internal {
		t.Errorf("Expected Internal for a store fault, got %v", err)
	}
}
