package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/anima-sh/anima/internal/embed"
)

// FakeEmbedder produces deterministic unit vectors from the text hash,
// so identical texts embed identically and tests need no network.
type FakeEmbedder struct {
	// Err, when set, is returned by every Embed call.
	Err error
}

// Embed implements embed.Embedder.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, embed.Dimension)
	var norm float64
	for i := range vec {
		// xorshift keeps the sequence deterministic per seed.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
