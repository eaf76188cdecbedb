package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestObjectKey(t *testing.T) {
	a := ObjectKey("invoices", "/data/a.pdf", []byte("same"))
	b := ObjectKey("invoices", "/other/a.pdf", []byte("same"))
	c := ObjectKey("invoices", "/data/a.pdf", []byte("changed"))
	if a != b {
		t.Errorf("Expected identical content to share a key, got %q and %q", a, b)
	}
	if a == c {
		t.Error("Expected different content to get different keys")
	}
	if !strings.HasPrefix(a, "invoices/") || !strings.HasSuffix(a, "/a.pdf") {
		t.Errorf("Unexpected key layout %q", a)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"x.PDF":  "application/pdf",
		"x.png":  "image/png",
		"x.jpeg": "image/jpeg",
		"x.bin":  "application/octet-stream",
	}
	for in, want := range tests {
		if got := ContentType(in); got != want {
			t.Errorf("ContentType(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestArchiveUploads(t *testing.T) {
	var mu sync.Mutex
	var puts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			puts = append(puts, r.URL.Path)
			mu.Unlock()
			w.Header().Set("ETag", `"abc"`)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "inv.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := NewMinioArchiver(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "invoices",
		Region:    "us-east-1",
	}, nil)
	if err != nil {
		t.Fatalf("NewMinioArchiver failed: %v", err)
	}
	key, err := a.Archive(context.Background(), src)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if len(puts) != 1 || puts[0] != "/invoices/"+key {
		t.Errorf("Expected one PUT to /invoices/%s, got %v", key, puts)
	}

	if _, err := a.Archive(context.Background(), filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
