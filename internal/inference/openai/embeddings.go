package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taix/internal/inference"
)

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	rid := uuid.New().String()
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	out := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += c.cfg.BatchSize {
		hi := min(lo+c.cfg.BatchSize, len(texts))
		batch := texts[lo:hi]

		body := map[string]any{"model": c.cfg.Model, "input": batch}
		raw, status, err := inference.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
		if err != nil {
			c.logger.Error("openai.embed.http_error", "req_id", rid, "status", status, "error", err)
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}

		var resp embeddingResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("decode openai embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(batch), len(resp.Data))
		}
		vecs := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		out = append(out, vecs...)
	}

	c.logger.Info("openai.embed.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"inputs", len(texts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
