package imgcipher

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"img-chaos/internal/fractal"
	"img-chaos/internal/hilbert"
	"img-chaos/internal/perm"
)

const defaultCacheSize = 8

type fractalKey struct {
	order, length int
}

// tableCache holds the key-independent tables. Callers must copy before
// handing a table out; cached slices are shared across goroutines.
type tableCache struct {
	size     int
	mu       sync.Mutex
	hilberts *lru.Cache[int, hilbert.Table]
	fractals *lru.Cache[fractalKey, perm.Linear]
}

func (tc *tableCache) init() error {
	var err error
	if tc.hilberts, err = lru.New[int, hilbert.Table](tc.size); err != nil {
		return err
	}
	tc.fractals, err = lru.New[fractalKey, perm.Linear](tc.size)
	return err
}

func (tc *tableCache) hilbert(n int) (hilbert.Table, error) {
	if t, ok := tc.hilberts.Get(n); ok {
		return t, nil
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if t, ok := tc.hilberts.Get(n); ok {
		return t, nil
	}
	t, err := hilbert.BuildTable(n)
	if err != nil {
		return nil, err
	}
	tc.hilberts.Add(n, t)
	return t, nil
}

// fractal returns the hybrid-mode permutation: the order-`order` matrix tiled
// over length values.
func (tc *tableCache) fractal(order, length int) (perm.Linear, error) {
	key := fractalKey{order: order, length: length}
	if p, ok := tc.fractals.Get(key); ok {
		return p, nil
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if p, ok := tc.fractals.Get(key); ok {
		return p, nil
	}
	m, err := fractal.Build(order)
	if err != nil {
		return nil, err
	}
	p, err := fractal.TiledPermutation(m, length)
	if err != nil {
		return nil, err
	}
	tc.fractals.Add(key, p)
	return p, nil
}
