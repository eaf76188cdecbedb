// Package storetest provides deterministic helpers for tests that need a document store.
package storetest

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a bag-of-words embedder: each lower-cased word bumps one
// of Dim buckets. Texts sharing words end up close under cosine.
type HashEmbedder struct {
	Dim   int
	Calls int
}

func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = 1024
	}
	h.Calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		for _, w := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(w))
			v[f.Sum32()%uint32(dim)]++
		}
		out[i] = v
	}
	return out, nil
}
