package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/joseph-ayodele/taix/internal/extract"
)

// DocQAConfig configures a document-question-answering endpoint speaking the
// Hugging Face inference format.
type DocQAConfig struct {
	URL     string
	Token   string // optional bearer token
	Timeout time.Duration
	TopK    int // candidates requested per question, default 3
}

// DocQAClient implements extract.Oracle over HTTP.
type DocQAClient struct {
	cfg    DocQAConfig
	http   *http.Client
	logger *slog.Logger
}

var _ extract.Oracle = (*DocQAClient)(nil)

func NewDocQAClient(cfg DocQAConfig, logger *slog.Logger) *DocQAClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &DocQAClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type docQARequest struct {
	Inputs struct {
		Image    string `json:"image"`
		Question string `json:"question"`
	} `json:"inputs"`
	Parameters struct {
		TopK int `json:"top_k"`
	} `json:"parameters"`
}

// Ask posts the base64 image and question, and returns candidates sorted by score.
func (c *DocQAClient) Ask(ctx context.Context, image []byte, question string) ([]extract.Answer, error) {
	var body docQARequest
	body.Inputs.Image = base64.StdEncoding.EncodeToString(image)
	body.Inputs.Question = question
	body.Parameters.TopK = c.cfg.TopK

	headers := map[string]string{}
	if c.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + c.cfg.Token
	}

	raw, status, err := SendJSON(ctx, c.http, c.cfg.URL, body, headers, c.logger)
	if err != nil {
		return nil, fmt.Errorf("docqa request (status %d): %w", status, err)
	}

	answers, err := decodeAnswers(raw)
	if err != nil {
		c.logger.Error("inference.docqa.decode_error", "error", err, "raw_bytes", len(raw))
		return nil, err
	}
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].Score > answers[j].Score })
	return answers, nil
}

// decodeAnswers accepts either a list of candidates or a single candidate object.
func decodeAnswers(raw []byte) ([]extract.Answer, error) {
	var list []extract.Answer
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one extract.Answer
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode docqa response: %w", err)
	}
	if one.Answer == "" && one.Score == 0 {
		return nil, nil
	}
	return []extract.Answer{one}, nil
}
