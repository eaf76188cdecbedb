package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/money"
	"github.com/joseph-ayodele/taix/internal/store"
)

func TestBackend(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost/taix":   "postgres",
		"postgresql://u:p@localhost/taix": "postgres",
		"file:taix.db":                    "sqlite",
		":memory:":                        "sqlite",
	}
	for url, want := range tests {
		if got := Backend(url); got != want {
			t.Errorf("Backend(%q): expected %s, got %s", url, want, got)
		}
	}
}

func TestOpenStoreEnsuresCollections(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Store.URL = "file:" + filepath.Join(t.TempDir(), "app.db")

	res, err := OpenStore(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer res.Cleanup()

	for _, name := range []string{constants.InvoiceCollection, constants.TaxLimitCollection} {
		page, err := res.Client.Get(context.Background(), store.GetRequest{Collection: name, Limit: 1})
		if err != nil {
			t.Errorf("Expected collection %s to exist, got %v", name, err)
		}
		if len(page.Objects) != 0 {
			t.Errorf("Expected empty collection %s, got %d objects", name, len(page.Objects))
		}
	}
}

func TestOpenStoreNamesBackendOnFailure(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Store.URL = "file:" + filepath.Join(t.TempDir(), "missing", "dir", "app.db")

	_, err := OpenStore(context.Background(), cfg, nil, nil)
	if err == nil {
		t.Fatal("Expected an error for an unreachable database file")
	}
	if !strings.HasPrefix(err.Error(), "open sqlite store: ") {
		t.Errorf("Expected error prefixed with the backend, got %q", err)
	}
}

func TestExtractionConfig(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Extraction.Version = "v1"
	cfg.Oracle.MinScore = 0.25

	ec, err := ExtractionConfig(cfg)
	if err != nil {
		t.Fatalf("ExtractionConfig failed: %v", err)
	}
	if ec.Version != "v1" || ec.MinScore != 0.25 {
		t.Errorf("Expected v1 with min score 0.25, got %s %v", ec.Version, ec.MinScore)
	}

	path := filepath.Join(t.TempDir(), "questions.yaml")
	doc := "version: custom\nquestions:\n  - question: What is the invoice number?\n    target_field: invoice_number\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Extraction.Path = path
	ec, err = ExtractionConfig(cfg)
	if err != nil {
		t.Fatalf("ExtractionConfig from file failed: %v", err)
	}
	if ec.Version != "custom" || len(ec.Questions) != 1 {
		t.Errorf("Expected the file question set, got %+v", ec)
	}
}

func TestAmountStyle(t *testing.T) {
	if AmountStyle("dot") != money.DotDecimal {
		t.Error("Expected dot style")
	}
	if AmountStyle("") != money.CommaDecimal {
		t.Error("Expected comma style by default")
	}
}

func TestNewIndexerRejectsBadLimit(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.TaxLimit.Value = "fifty"
	if _, err := NewIndexer(context.Background(), cfg, nil, nil); err == nil {
		t.Error("Expected a configuration error for an unparsable tax limit")
	}
}
