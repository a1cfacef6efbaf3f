package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps orders in process. It enforces the same unique
// payment reference as the Postgres schema, and WithTransaction rolls back
// every write made inside a failed callback.
type MemoryRepository struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	seq     int64
	orders  map[uuid.UUID]*domain.Order
	byRef   map[string]uuid.UUID
	lineIdx map[uuid.UUID]uuid.UUID // line id -> order id
}

type memTxKey struct{}

var _ OrderRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: memoryState{
			orders:  make(map[uuid.UUID]*domain.Order),
			byRef:   make(map[string]uuid.UUID),
			lineIdx: make(map[uuid.UUID]uuid.UUID),
		},
	}
}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(memTxKey{}).(bool)
	return ok && v
}

func (m *MemoryRepository) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *MemoryRepository) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *MemoryRepository) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryRepository) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

// WithTransaction holds the write lock for the whole callback and restores
// the previous state if it fails.
func (m *MemoryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.state = saved
		return err
	}
	return nil
}

func (m *MemoryRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, dup := m.state.byRef[order.PaymentReference]; dup {
		return ErrDuplicatePaymentReference
	}

	m.state.seq++
	order.OrderNumber = formatOrderNumber(m.state.seq)
	order.CreatedAt = time.Now().UTC()

	stored := copyOrder(order)
	stored.Lines = nil
	m.state.orders[order.ID] = stored
	m.state.byRef[order.PaymentReference] = order.ID
	return nil
}

func (m *MemoryRepository) CreateOrderLines(ctx context.Context, orderID uuid.UUID, lines []domain.OrderLine) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	o, ok := m.state.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	for i := range lines {
		lines[i].OrderID = orderID
		o.Lines = append(o.Lines, copyLine(lines[i]))
		m.state.lineIdx[lines[i].ID] = orderID
	}
	return nil
}

func (m *MemoryRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	o, ok := m.state.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryRepository) GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	id, ok := m.state.byRef[ref]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(m.state.orders[id]), nil
}

func (m *MemoryRepository) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := make([]*domain.Order, 0, len(m.state.orders))
	for _, o := range m.state.orders {
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].OrderNumber > out[j].OrderNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	o, ok := m.state.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrStatusChanged
	}
	o.Status = to
	return nil
}

func (m *MemoryRepository) SetLineChecked(ctx context.Context, lineID uuid.UUID, checked bool) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	orderID, ok := m.state.lineIdx[lineID]
	if !ok {
		return ErrLineNotFound
	}
	o := m.state.orders[orderID]
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			o.Lines[i].Checked = checked
			return nil
		}
	}
	return ErrLineNotFound
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		seq:     s.seq,
		orders:  make(map[uuid.UUID]*domain.Order, len(s.orders)),
		byRef:   make(map[string]uuid.UUID, len(s.byRef)),
		lineIdx: make(map[uuid.UUID]uuid.UUID, len(s.lineIdx)),
	}
	for k, v := range s.orders {
		out.orders[k] = copyOrder(v)
	}
	for k, v := range s.byRef {
		out.byRef[k] = v
	}
	for k, v := range s.lineIdx {
		out.lineIdx[k] = v
	}
	return out
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	if o.Lines != nil {
		cp.Lines = make([]domain.OrderLine, len(o.Lines))
		for i, l := range o.Lines {
			cp.Lines[i] = copyLine(l)
		}
	}
	return &cp
}

func copyLine(l domain.OrderLine) domain.OrderLine {
	if l.SelectedOptions != nil {
		opts := make([]domain.SelectedDetail, len(l.SelectedOptions))
		copy(opts, l.SelectedOptions)
		l.SelectedOptions = opts
	}
	return l
}
