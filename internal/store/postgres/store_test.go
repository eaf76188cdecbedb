package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/store"
	"github.com/joseph-ayodele/taix/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TAIX_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TAIX_TEST_POSTGRES_URL not set")
	}
	s, err := Open(context.Background(), Config{DSN: dsn}, &storetest.HashEmbedder{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	for _, c := range store.DefaultCollections() {
		if err := s.EnsureCollection(context.Background(), c); err != nil {
			t.Fatalf("EnsureCollection failed: %v", err)
		}
		if _, err := s.DeleteWhere(context.Background(), c.Name, store.MatchAll); err != nil {
			t.Fatalf("DeleteWhere failed: %v", err)
		}
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var objs []store.Object
	for _, c := range []string{"Germany", "France", "Germany", "Spain", "Italy"} {
		objs = append(objs, store.Object{Properties: map[string]any{
			constants.PropFileName: c + ".pdf",
			constants.PropCountry:  c,
			constants.PropValue:    12.5,
		}})
	}
	if err := s.BatchWrite(ctx, constants.InvoiceCollection, objs); err != nil {
		t.Fatalf("BatchWrite failed: %v", err)
	}

	page, err := s.Get(ctx, store.GetRequest{
		Collection: constants.InvoiceCollection,
		Where:      store.Where(constants.PropCountry, store.Equal, "Germany"),
		Limit:      20,
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(page.Objects) != 2 || page.Cursor == "" {
		t.Errorf("Expected 2 objects and a cursor, got %d / %q", len(page.Objects), page.Cursor)
	}

	hits, err := s.NearText(ctx, store.NearTextRequest{Collection: constants.InvoiceCollection, Text: "Germany", K: 20})
	if err != nil {
		t.Fatalf("NearText failed: %v", err)
	}
	if len(hits) != 5 {
		t.Errorf("Expected 5 hits, got %d", len(hits))
	}

	n, err := s.DeleteWhere(ctx, constants.InvoiceCollection, store.MatchAll)
	if err != nil || n != 5 {
		t.Errorf("Expected 5 deleted, got %d (%v)", n, err)
	}
}
