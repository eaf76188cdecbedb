// Package extract asks a configured battery of questions about an invoice
// image and collects the best answer per field.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/common"
)

type Extractor struct {
	oracle Oracle
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(oracle Oracle, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{oracle: oracle, cfg: cfg, logger: logger}
}

// Config returns the active question set.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract reads the page image at imagePath and asks every configured question.
func (e *Extractor) Extract(ctx context.Context, imagePath string) (Answers, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		e.logger.Error("extract.read_image.failed", "image_path", imagePath, "error", err)
		return Answers{}, fmt.Errorf("read image: %w", err)
	}
	return e.ExtractImage(ctx, imagePath, img)
}

// ExtractImage asks every configured question about img. Per-question failures are
// recorded on the FieldAnswer; only context cancellation aborts.
func (e *Extractor) ExtractImage(ctx context.Context, name string, img []byte) (Answers, error) {
	start := time.Now()
	out := Answers{Version: e.cfg.Version, Fields: make(map[string]FieldAnswer, len(e.cfg.Questions))}

	for _, q := range e.cfg.Questions {
		if err := ctx.Err(); err != nil {
			return Answers{}, err
		}
		fa := e.ask(ctx, name, img, q)
		if fa.Err != nil && ctx.Err() != nil {
			return Answers{}, ctx.Err()
		}
		out.Fields[q.TargetField] = fa
	}

	missing := out.Unextracted(e.cfg.Fields())
	e.logger.Info("extract.ok",
		"image", name,
		"version", e.cfg.Version,
		"questions", len(e.cfg.Questions),
		"unextracted", len(missing),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (e *Extractor) ask(ctx context.Context, name string, img []byte, q Question) FieldAnswer {
	fa := FieldAnswer{Question: q.Question, Field: q.TargetField, Status: constants.FieldUnextracted}

	answers, err := e.oracle.Ask(ctx, img, q.Question)
	if err != nil {
		fa.Err = common.NewExtractionUnavailable(q.TargetField, err.Error())
		e.logger.Warn("extract.question.failed", "image", name, "field", q.TargetField, "error", err)
		return fa
	}

	best, ok := top(answers)
	switch {
	case !ok:
		fa.Err = common.NewExtractionUnavailable(q.TargetField, "no answer")
	case strings.TrimSpace(best.Answer) == "":
		fa.Score = best.Score
		fa.Err = common.NewExtractionUnavailable(q.TargetField, "empty answer")
	case best.Score < e.cfg.MinScore:
		fa.Score = best.Score
		fa.Err = common.NewExtractionUnavailable(q.TargetField, fmt.Sprintf("score %.3f below %.3f", best.Score, e.cfg.MinScore))
	default:
		fa.Value = strings.TrimSpace(best.Answer)
		fa.Score = best.Score
		fa.Status = constants.FieldExtracted
		fa.Err = nil
	}

	if fa.Err != nil {
		lvl := slog.LevelInfo
		if q.Required {
			lvl = slog.LevelWarn
		}
		e.logger.Log(ctx, lvl, "extract.question.unextracted", "image", name, "field", q.TargetField, "required", q.Required, "reason", fa.Err)
	}
	return fa
}

// top returns the highest scored answer. Oracles usually sort already.
func top(answers []Answer) (Answer, bool) {
	if len(answers) == 0 {
		return Answer{}, false
	}
	best := answers[0]
	for _, a := range answers[1:] {
		if a.Score > best.Score {
			best = a
		}
	}
	return best, true
}
