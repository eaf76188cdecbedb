package common

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Store      StoreConfig
	Embedder   EmbedderConfig
	Oracle     OracleConfig
	Extraction ExtractionConfig
	Indexer    IndexerConfig
	TaxLimit   TaxLimitConfig
	Gateway    GatewayConfig
	Server     ServerConfig
	Archive    ArchiveConfig
	Export     ExportConfig
	Log        LogConfig
}

// StoreConfig holds document store configuration. The URL scheme selects the backend.
type StoreConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// EmbedderConfig configures the OpenAI embeddings client used for near-text search.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OracleConfig configures the document question-answering endpoint.
type OracleConfig struct {
	URL      string
	Token    string
	MinScore float64
	Timeout  time.Duration
}

// ExtractionConfig selects the question set.
type ExtractionConfig struct {
	Path    string
	Version string
}

// IndexerConfig holds batch run configuration
type IndexerConfig struct {
	SourceDir     string
	ImageDir      string
	Pdftoppm      string
	RenderDPI     int
	EnhanceImages bool
	ChunkSize     int
	WriteRetries  int
	WriteBackoff  time.Duration
	Workers       int
	FlushWorkers  int
	DocTimeout    time.Duration
}

// TaxLimitConfig is the reference record written on every rebuild.
type TaxLimitConfig struct {
	Value    string
	Currency string
	Rule     string
}

// GatewayConfig holds read defaults
type GatewayConfig struct {
	PageSize    int
	SimilarityK int
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// ArchiveConfig is optional; an empty endpoint disables archiving.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ExportConfig controls XLSX rendering. AmountStyle is "dot" or "comma".
type ExportConfig struct {
	AmountStyle string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

const hostedInferenceHost = "api-inference.huggingface.co"

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			URL:             getEnv("STORE_URL", "file:taix.db"),
			MaxConns:        getEnvAsInt32("STORE_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("STORE_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("STORE_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("STORE_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("STORE_DIAL_TIMEOUT", 5*time.Second),
		},
		Embedder: EmbedderConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		Oracle: OracleConfig{
			URL:      getEnv("DOCQA_URL", "https://"+hostedInferenceHost+"/models/magorshunov/layoutlm-invoices"),
			Token:    getEnv("DOCQA_TOKEN", ""),
			MinScore: getEnvAsFloat64("DOCQA_MIN_SCORE", 0.1),
			Timeout:  getEnvAsDuration("DOCQA_TIMEOUT", 60*time.Second),
		},
		Extraction: ExtractionConfig{
			Path:    getEnv("EXTRACTION_CONFIG", ""),
			Version: getEnv("EXTRACTION_VERSION", "v2"),
		},
		Indexer: IndexerConfig{
			SourceDir:     getEnv("SOURCE_DIR", "./data/invoices"),
			ImageDir:      getEnv("IMAGE_DIR", "./tmp/images"),
			Pdftoppm:      getEnv("PDFTOPPM", "pdftoppm"),
			RenderDPI:     getEnvAsInt("RENDER_DPI", 150),
			EnhanceImages: getEnvAsBool("ENHANCE_IMAGES", false),
			ChunkSize:     getEnvAsInt("CHUNK_SIZE", 100),
			WriteRetries:  getEnvAsInt("WRITE_RETRIES", 3),
			WriteBackoff:  getEnvAsDuration("WRITE_BACKOFF", 500*time.Millisecond),
			Workers:       getEnvAsInt("INDEX_WORKERS", 4),
			FlushWorkers:  getEnvAsInt("FLUSH_WORKERS", 2),
			DocTimeout:    getEnvAsDuration("DOC_TIMEOUT", 3*time.Minute),
		},
		TaxLimit: TaxLimitConfig{
			Value:    getEnv("TAX_LIMIT_VALUE", "50"),
			Currency: getEnv("TAX_LIMIT_CURRENCY", "EUR"),
			Rule:     getEnv("TAX_LIMIT_RULE", "Gifts to business partners are deductible up to this amount per recipient and year"),
		},
		Gateway: GatewayConfig{
			PageSize:    getEnvAsInt("PAGE_SIZE", 20),
			SimilarityK: getEnvAsInt("SIMILARITY_K", 20),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":9090"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "invoices"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Export: ExportConfig{
			AmountStyle: getEnv("EXPORT_AMOUNT_STYLE", "comma"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ArchiveEnabled reports whether source documents should be copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return strings.TrimSpace(c.Archive.Endpoint) != ""
}

// ValidateQuery checks what every store reader needs.
func (c *Config) ValidateQuery() error {
	if strings.TrimSpace(c.Store.URL) == "" {
		return NewConfigurationError("STORE_URL is required")
	}
	if c.Embedder.APIKey == "" {
		return NewConfigurationError("OPENAI_API_KEY is required")
	}
	if c.Gateway.PageSize <= 0 {
		return NewConfigurationError("PAGE_SIZE must be positive")
	}
	return nil
}

// ValidateIndexer checks everything a batch run needs before any work starts.
func (c *Config) ValidateIndexer() error {
	if err := c.ValidateQuery(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Oracle.URL) == "" {
		return NewConfigurationError("DOCQA_URL is required")
	}
	u, err := url.Parse(c.Oracle.URL)
	if err != nil || u.Host == "" {
		return NewConfigurationError("DOCQA_URL is not a valid URL")
	}
	if u.Host == hostedInferenceHost && c.Oracle.Token == "" {
		return NewConfigurationError("DOCQA_TOKEN is required for the hosted inference API")
	}
	if strings.TrimSpace(c.Indexer.SourceDir) == "" {
		return NewConfigurationError("SOURCE_DIR is required")
	}
	if c.Indexer.ChunkSize <= 0 {
		return NewConfigurationError("CHUNK_SIZE must be positive")
	}
	if c.Indexer.WriteRetries < 0 {
		return NewConfigurationError("WRITE_RETRIES must not be negative")
	}
	if c.ArchiveEnabled() && (c.Archive.AccessKey == "" || c.Archive.SecretKey == "") {
		return NewConfigurationError("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}
