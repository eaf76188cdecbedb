// Package render turns a source document into the single page image the
// document-QA oracle reads.
package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	DPI       int    // rasterization DPI, default 150
	OutputDir string // where page images are written, default "./tmp/images"

	Enhance      bool // grayscale/contrast/sharpen before QA
	MaxDimension int  // longest edge after enhancement, default 2000
}

type Renderer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRenderer(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./tmp/images"
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 2000
	}
	return &Renderer{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Render returns the path of the representative page image for path.
// PDFs are rasterized (first page); images pass through unless enhancement is on.
// Every failure is a RenderFailure.
func (r *Renderer) Render(ctx context.Context, path string) (string, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))

	if _, err := os.Stat(path); err != nil {
		return "", r.fail(path, err)
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", r.fail(path, fmt.Errorf("create output dir: %w", err))
	}

	var (
		img string
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		img, err = r.pdfFirstPage(ctx, path)
	case constants.IMAGE:
		img = path
	default:
		err = fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return "", r.fail(path, err)
	}

	if r.cfg.Enhance {
		img, err = r.enhance(img, r.outputPath(path, "-enhanced.png"))
		if err != nil {
			return "", r.fail(path, err)
		}
	}

	r.logger.Info("render.ok",
		"path", path,
		"image_path", img,
		"enhanced", r.cfg.Enhance,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return img, nil
}

func (r *Renderer) pdfFirstPage(ctx context.Context, path string) (string, error) {
	prefix := r.outputPath(path, "")
	// pdftoppm -r 150 -png -f 1 -l 1 -singlefile <in.pdf> <out/stem>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, r.logger,
		"-r", fmt.Sprintf("%d", r.cfg.DPI), "-png", "-f", "1", "-l", "1", "-singlefile", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}

	out := prefix + ".png"
	info, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("pdftoppm produced an empty image")
	}
	return out, nil
}

// outputPath derives a per-document file name in OutputDir. The hash of the
// absolute source path keeps same-stem documents (scan.png, scan.jpg,
// 2023/invoice.pdf, 2024/invoice.pdf) from sharing an image.
func (r *Renderer) outputPath(path, suffix string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(r.cfg.OutputDir, stem+"-"+hex.EncodeToString(sum[:4])+suffix)
}

func (r *Renderer) fail(path string, err error) error {
	r.logger.Error("render.failed", "path", path, "error", err)
	return common.NewRenderError(path, err)
}
