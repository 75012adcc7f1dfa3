package faq

import (
	"errors"
	"math/rand"
	"sync"
)

const (
	defaultSemanticHashPlanes = 64
	defaultSemanticHashSeed   = 1337
)

// semanticHasher buckets embedding vectors with random projection planes so that
// near-duplicate questions share a 64-bit hash. Planes are generated once per vector
// dimension from a fixed seed, so hashes are stable across processes.
type semanticHasher struct {
	planeCount int
	seed       int64

	mu     sync.Mutex
	planes map[int][][]float32
}

func newSemanticHasher(planeCount int, seed int64) *semanticHasher {
	if planeCount <= 0 || planeCount > 64 {
		planeCount = defaultSemanticHashPlanes
	}
	return &semanticHasher{
		planeCount: planeCount,
		seed:       seed,
		planes:     make(map[int][][]float32),
	}
}

// Hash returns the bucket for vector; ok is false when vector is empty.
func (h *semanticHasher) Hash(vector []float32) (hash uint64, ok bool, err error) {
	if h == nil || len(vector) == 0 {
		return 0, false, nil
	}
	planes, err := h.planesFor(len(vector))
	if err != nil {
		return 0, false, err
	}
	for i, plane := range planes {
		if dot(vector, plane) >= 0 {
			hash |= 1 << (63 - i)
		}
	}
	return hash, true, nil
}

func (h *semanticHasher) planesFor(dims int) ([][]float32, error) {
	if dims <= 0 {
		return nil, errors.New("semantic hasher requires positive dimension")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if planes, ok := h.planes[dims]; ok {
		return planes, nil
	}
	rng := rand.New(rand.NewSource(h.seed))
	planes := make([][]float32, h.planeCount)
	for i := range planes {
		plane := make([]float32, dims)
		for j := range plane {
			plane[j] = float32(rng.NormFloat64())
		}
		planes[i] = plane
	}
	h.planes[dims] = planes
	return planes, nil
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
