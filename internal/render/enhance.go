package render

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// enhance prepares a page image for document QA and writes it to dst.
func (r *Renderer) enhance(src, dst string) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 1.0)

	b := out.Bounds()
	if b.Dx() > r.cfg.MaxDimension || b.Dy() > r.cfg.MaxDimension {
		out = imaging.Fit(out, r.cfg.MaxDimension, r.cfg.MaxDimension, imaging.Lanczos)
	}

	if err := imaging.Save(out, dst); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return dst, nil
}
