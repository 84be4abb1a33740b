package embedding

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// MemoOptions customize the memoizing wrapper.
type MemoOptions struct {
	// MaxEntries bounds the cache size. When the bound is reached the
	// cache is cleared wholesale before admitting the new entry.
	// Zero means unbounded.
	MaxEntries int
}

// Memo wraps an Embedder with an in-memory cache keyed by the exact text.
// Concurrent requests for the same uncached text are collapsed into a
// single upstream call.
type Memo struct {
	inner Embedder
	opts  MemoOptions

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewMemo creates a memoizing wrapper around inner.
func NewMemo(inner Embedder, optFns ...func(o *MemoOptions)) *Memo {
	opts := MemoOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Memo{
		inner: inner,
		opts:  opts,
		cache: make(map[string][]float32),
	}
}

// Dimension returns the wrapped embedder's dimensionality.
func (m *Memo) Dimension() int {
	return m.inner.Dimension()
}

// Embed returns the cached vector for text, calling the wrapped embedder
// on a miss. Errors are never cached. A caller whose context is cancelled
// stops waiting; an in-flight upstream call keeps serving the remaining
// collapsed callers.
func (m *Memo) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	vec, ok := m.cache[text]
	m.mu.RUnlock()

	if ok {
		return cloneVector(vec), nil
	}

	ch := m.group.DoChan(text, func() (any, error) {
		// The flight is detached from the first caller's cancellation so
		// one caller aborting does not fail every collapsed waiter. A
		// deadline on the caller's context still bounds the flight.
		fctx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			fctx, cancel = context.WithDeadline(fctx, deadline)
			defer cancel()
		}

		vec, err := m.inner.Embed(fctx, text)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.opts.MaxEntries > 0 && len(m.cache) >= m.opts.MaxEntries {
			clear(m.cache)
		}
		m.cache[text] = vec
		m.mu.Unlock()

		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneVector(res.Val.([]float32)), nil
	}
}

// Len reports the number of cached entries.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.cache)
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
