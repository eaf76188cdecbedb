package common

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_URL", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("PAGE_SIZE", "")

	cfg := LoadConfig()

	if cfg.Store.URL != "file:taix.db" {
		t.Errorf("Expected default store url file:taix.db, got %s", cfg.Store.URL)
	}
	if cfg.Indexer.ChunkSize != 100 {
		t.Errorf("Expected chunk size 100, got %d", cfg.Indexer.ChunkSize)
	}
	if cfg.Indexer.WriteRetries != 3 {
		t.Errorf("Expected 3 write retries, got %d", cfg.Indexer.WriteRetries)
	}
	if cfg.Gateway.PageSize != 20 {
		t.Errorf("Expected page size 20, got %d", cfg.Gateway.PageSize)
	}
	if cfg.ArchiveEnabled() {
		t.Error("Expected archiving to be disabled without MINIO_ENDPOINT")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_URL", "postgres://localhost/taix")
	t.Setenv("CHUNK_SIZE", "25")
	t.Setenv("WRITE_BACKOFF", "2s")
	t.Setenv("ENHANCE_IMAGES", "true")
	t.Setenv("DOCQA_MIN_SCORE", "0.35")

	cfg := LoadConfig()

	if cfg.Store.URL != "postgres://localhost/taix" {
		t.Errorf("Expected postgres url, got %s", cfg.Store.URL)
	}
	if cfg.Indexer.ChunkSize != 25 {
		t.Errorf("Expected chunk size 25, got %d", cfg.Indexer.ChunkSize)
	}
	if cfg.Indexer.WriteBackoff != 2*time.Second {
		t.Errorf("Expected backoff 2s, got %s", cfg.Indexer.WriteBackoff)
	}
	if !cfg.Indexer.EnhanceImages {
		t.Error("Expected image enhancement to be enabled")
	}
	if cfg.Oracle.MinScore != 0.35 {
		t.Errorf("Expected min score 0.35, got %f", cfg.Oracle.MinScore)
	}
}

func TestValidateIndexer(t *testing.T) {
	valid := func() *Config {
		cfg := LoadConfig()
		cfg.Store.URL = "file:test.db"
		cfg.Embedder.APIKey = "sk-test"
		cfg.Oracle.URL = "http://localhost:5000/docqa"
		cfg.Oracle.Token = ""
		cfg.Indexer.SourceDir = "./data"
		cfg.Indexer.ChunkSize = 100
		cfg.Archive.Endpoint = ""
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing openai key", mutate: func(c *Config) { c.Embedder.APIKey = "" }, wantErr: true},
		{name: "missing store url", mutate: func(c *Config) { c.Store.URL = " " }, wantErr: true},
		{name: "hosted oracle without token", mutate: func(c *Config) {
			c.Oracle.URL = "https://api-inference.huggingface.co/models/x"
		}, wantErr: true},
		{name: "hosted oracle with token", mutate: func(c *Config) {
			c.Oracle.URL = "https://api-inference.huggingface.co/models/x"
			c.Oracle.Token = "hf_x"
		}},
		{name: "bad oracle url", mutate: func(c *Config) { c.Oracle.URL = "not a url" }, wantErr: true},
		{name: "zero chunk size", mutate: func(c *Config) { c.Indexer.ChunkSize = 0 }, wantErr: true},
		{name: "archive without keys", mutate: func(c *Config) { c.Archive.Endpoint = "localhost:9000" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.ValidateIndexer()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected configuration error, got nil")
				}
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("Expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("file_name", "", Required).
		Field("currency", "eur", CurrencyCode).
		Field("currency2", UnknownCurrency, CurrencyCode).
		Field("prop", "country", Identifier)

	if len(v.Errors()) != 2 {
		t.Fatalf("Expected 2 validation errors, got %d: %s", len(v.Errors()), v.ErrorMessage())
	}
	if !IsValidationError(v.Error()) {
		t.Errorf("Expected error to wrap ErrValidation, got %v", v.Error())
	}
}
