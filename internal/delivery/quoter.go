package delivery

import (
	"context"
	"errors"
	"sync"
)

// ErrStaleQuote is returned to a request that was overtaken by a newer one
// for the same key.
var ErrStaleQuote = errors.New("delivery quote superseded by a newer request")

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Quoter prices deliveries from a fixed origin and keeps only the latest
// request per key alive. A new request cancels the previous one, so a slow
// answer for an old address never replaces the fee for the current one.
type Quoter struct {
	estimator Estimator
	origin    Coordinates

	mu      sync.Mutex
	gen     uint64
	pending map[string]inflight
}

func NewQuoter(estimator Estimator, origin Coordinates) *Quoter {
	return &Quoter{
		estimator: estimator,
		origin:    origin,
		pending:   make(map[string]inflight),
	}
}

func (q *Quoter) Quote(ctx context.Context, key string, dest Coordinates) (Quote, error) {
	if err := dest.Validate(); err != nil {
		return Quote{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q.mu.Lock()
	q.gen++
	mine := q.gen
	if prev, ok := q.pending[key]; ok {
		prev.cancel()
	}
	q.pending[key] = inflight{gen: mine, cancel: cancel}
	q.mu.Unlock()

	quote, err := q.estimator.Quote(ctx, q.origin, dest)

	q.mu.Lock()
	defer q.mu.Unlock()
	current, ok := q.pending[key]
	if !ok || current.gen != mine {
		return Quote{}, ErrStaleQuote
	}
	delete(q.pending, key)

	if err != nil {
		return Quote{}, err
	}
	return quote, nil
}
