// Package service owns the live cart of every session: it loads carts from
// the cache or the durable store, applies mutations one at a time per
// session and saves the result on a best-effort basis.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aderut/moridam/internal/cart"
	"github.com/aderut/moridam/internal/cart/cache"
	"github.com/aderut/moridam/internal/cart/repository"
	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/options"
	"github.com/aderut/moridam/internal/pricing"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// WarningNotSaved is reported when a mutation succeeded but could not be persisted.
const WarningNotSaved = "cart changes could not be saved and may be lost"

const persistTimeout = 2 * time.Second

// Catalog is the part of the product catalog the cart needs.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// View is the state of a cart after an operation.
type View struct {
	SessionID string            `json:"session_id"`
	Lines     []domain.CartLine `json:"lines"`
	Count     int               `json:"count"`
	Total     float64           `json:"total"`
	Warning   string            `json:"warning,omitempty"`
}

type session struct {
	mu         sync.Mutex
	cart       *cart.Cart
	dropped    bool
	lastAccess time.Time

	// save queue: only the newest pending state is written
	pending *saveOp
	saving  bool
	done    chan struct{}
	saveErr error
	release bool
}

type saveOp struct {
	doc   *cart.Document
	clear bool
}

type Service struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	logger  *zap.Logger
	sfg     singleflight.Group
	saves   sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
}

func NewService(repo repository.CartRepository, cache cache.CartCache, catalog Catalog, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		catalog:  catalog,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

func (s *Service) Get(ctx context.Context, sessionID string) (*View, error) {
	return s.mutate(ctx, sessionID, func(*cart.Cart) bool { return false })
}

// AddItem prices productID with the selection against the catalog's option
// schema and adds the line, merging with an identical one.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, sel domain.Selection) (*View, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, err)
		}
		return nil, &domain.DependencyError{Dependency: "catalog", Err: err}
	}

	line, err := pricing.Calculate(product.ID, product.Price, options.Normalize(product.RawOptions), sel)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, sessionID, func(c *cart.Cart) bool {
		c.Add(line, cart.ItemInfo{Title: product.Title, Image: product.Image, Category: product.Category})
		return true
	})
}

func (s *Service) SetQuantity(ctx context.Context, sessionID, lineID string, qty float64) (*View, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Cart) bool {
		return c.SetQuantity(lineID, qty)
	})
}

func (s *Service) Remove(ctx context.Context, sessionID, lineID string) (*View, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Cart) bool {
		return c.Remove(lineID)
	})
}

// Clear empties the cart, discards its persisted copies and forgets the
// session once the discard has landed. It waits for the discard so a failure
// can be reported as a warning.
func (s *Service) Clear(ctx context.Context, sessionID string) (*View, error) {
	sess := s.lockSession(sessionID)
	sess.cart = cart.New()
	sess.lastAccess = time.Now()
	view := newView(sessionID, sess.cart)
	s.enqueue(sessionID, sess, &saveOp{clear: true})
	sess.release = true
	done := sess.done
	sess.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		view.Warning = WarningNotSaved
		return view, nil
	}

	sess.mu.Lock()
	if sess.saveErr != nil {
		view.Warning = WarningNotSaved
	}
	sess.mu.Unlock()
	return view, nil
}

// Drop forgets the in-memory cart of a session once its pending saves have
// landed. Persisted copies stay and are loaded again on the next access.
func (s *Service) Drop(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.saving {
		sess.release = true
		return
	}
	s.forget(sessionID, sess)
}

// EvictIdle forgets sessions not touched for maxIdle and returns how many
// were evicted. Sessions with a save in flight or a failed last save are kept
// so no change is lost.
func (s *Service) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	candidates := make(map[string]*session, len(s.sessions))
	for id, sess := range s.sessions {
		candidates[id] = sess
	}
	s.mu.Unlock()

	now := time.Now()
	evicted := 0
	for id, sess := range candidates {
		sess.mu.Lock()
		if !sess.dropped && sess.cart != nil && !sess.saving && sess.saveErr == nil &&
			now.Sub(sess.lastAccess) >= maxIdle {
			s.forget(id, sess)
			evicted++
		}
		sess.mu.Unlock()
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (s *Service) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.logger.Debug("evicted idle carts", zap.Int("count", n))
			}
		}
	}
}

// Flush waits until every queued save has been written.
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.saves.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sessionCount reports how many sessions are held in memory.
func (s *Service) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// mutate runs fn on the session's cart while holding the session lock. When
// fn reports a change a snapshot is queued for saving; the caller does not
// wait for it. A failed earlier save surfaces as a warning on the view.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(c *cart.Cart) bool) (*View, error) {
	sess, err := s.loadedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	sess.lastAccess = time.Now()
	if fn(sess.cart) {
		s.enqueue(sessionID, sess, &saveOp{doc: sess.cart.Snapshot(sessionID)})
		sess.release = false
	}
	view := newView(sessionID, sess.cart)
	if sess.saveErr != nil {
		view.Warning = WarningNotSaved
	}
	return view, nil
}

// enqueue replaces the session's pending save with op and starts the save
// loop if it is not running. sess.mu must be held.
func (s *Service) enqueue(sessionID string, sess *session, op *saveOp) {
	sess.pending = op
	if sess.saving {
		return
	}
	sess.saving = true
	sess.done = make(chan struct{})
	s.saves.Add(1)
	go s.saveLoop(sessionID, sess)
}

// saveLoop writes pending states of one session in order until none is left.
func (s *Service) saveLoop(sessionID string, sess *session) {
	defer s.saves.Done()

	for {
		sess.mu.Lock()
		op := sess.pending
		sess.pending = nil
		if op == nil {
			sess.saving = false
			close(sess.done)
			if sess.release && sess.saveErr == nil {
				s.forget(sessionID, sess)
			}
			sess.mu.Unlock()
			return
		}
		sess.mu.Unlock()

		err := s.write(sessionID, op)
		if err != nil {
			s.logger.Warn("failed to persist cart", zap.String("session_id", sessionID), zap.Error(err))
		}

		sess.mu.Lock()
		sess.saveErr = err
		sess.mu.Unlock()
	}
}

// forget marks sess dropped and removes it from the session map.
// sess.mu must be held.
func (s *Service) forget(sessionID string, sess *session) {
	sess.dropped = true
	sess.cart = nil

	s.mu.Lock()
	if s.sessions[sessionID] == sess {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
}

// loadedSession returns the locked session with its cart loaded. The lock is
// not held while loading.
func (s *Service) loadedSession(ctx context.Context, sessionID string) (*session, error) {
	for {
		sess := s.lockSession(sessionID)
		if sess.cart != nil {
			return sess, nil
		}
		sess.mu.Unlock()

		loaded, err := s.load(ctx, sessionID)
		if err != nil {
			sess.mu.Lock()
			if !sess.dropped && sess.cart == nil {
				s.forget(sessionID, sess)
			}
			sess.mu.Unlock()
			return nil, err
		}

		sess.mu.Lock()
		if sess.dropped {
			sess.mu.Unlock()
			continue
		}
		if sess.cart == nil {
			sess.cart = loaded
		}
		return sess, nil
	}
}

// lockSession returns the live session for sessionID with its lock held.
func (s *Service) lockSession(sessionID string) *session {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[sessionID]
		if !ok {
			sess = &session{}
			s.sessions[sessionID] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if !sess.dropped {
			return sess
		}
		sess.mu.Unlock()
	}
}

// load reads a cart from the cache, falling back to the durable store.
// Concurrent loads of one session share a single read.
func (s *Service) load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.String("session_id", sessionID), zap.Error(err))
		}

		doc, err := s.repo.GetCart(ctx, sessionID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return cart.New(), nil
		}
		if err != nil {
			return nil, &domain.DependencyError{Dependency: "cart store", Err: err}
		}

		// the fill finishes before the cart goes live, so it cannot land
		// after a newer save has invalidated the key
		if err := s.cache.Set(ctx, sessionID, doc); err != nil {
			s.logger.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
		}

		return cart.RestoreLines(doc.Lines), nil
	})
	if err != nil {
		return nil, err
	}
	// every caller gets its own copy of the shared result
	return cart.RestoreLines(v.(*cart.Cart).Lines()), nil
}

// write applies op to the durable store and invalidates the cached copy.
func (s *Service) write(sessionID string, op *saveOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if op.clear {
		if err := s.repo.DeleteCart(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
			return fmt.Errorf("delete stored cart: %w", err)
		}
	} else if err := s.repo.UpsertCart(ctx, op.doc); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	if err := s.cache.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("invalidate cached cart: %w", err)
	}
	return nil
}

func newView(sessionID string, c *cart.Cart) *View {
	return &View{
		SessionID: sessionID,
		Lines:     c.Lines(),
		Count:     c.Count(),
		Total:     c.Total(),
	}
}
