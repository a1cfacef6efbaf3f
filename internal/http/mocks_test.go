package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	cartservice "github.com/aderut/moridam/internal/cart/service"
	"github.com/aderut/moridam/internal/delivery"
	"github.com/aderut/moridam/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testAdminToken = "s3cret"

type mockCatalog struct {
	products map[string]*domain.Product
	saved    domain.ProductOptionSchema
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalog) ListProducts(context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalog) SaveOptions(_ context.Context, id string, schema domain.ProductOptionSchema) error {
	if _, ok := m.products[id]; !ok {
		return domain.ErrNotFound
	}
	if len(schema) > 0 && schema[0].Name == "" {
		return domain.NewValidationError("options", "every option group must have a title")
	}
	m.saved = schema
	return nil
}

type mockCarts struct {
	mu       sync.Mutex
	sessions []string
	added    []string
	qty      float64
	lineIDs  []string
	cleared  []string
	err      error
}

func (m *mockCarts) view(sessionID string) *cartservice.View {
	return &cartservice.View{SessionID: sessionID, Lines: []domain.CartLine{}}
}

func (m *mockCarts) record(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, sessionID)
}

func (m *mockCarts) Get(_ context.Context, sessionID string) (*cartservice.View, error) {
	m.record(sessionID)
	if m.err != nil {
		return nil, m.err
	}
	return m.view(sessionID), nil
}

func (m *mockCarts) AddItem(_ context.Context, sessionID, productID string, _ domain.Selection) (*cartservice.View, error) {
	m.record(sessionID)
	if m.err != nil {
		return nil, m.err
	}
	m.added = append(m.added, productID)
	v := m.view(sessionID)
	v.Count = 1
	return v, nil
}

func (m *mockCarts) SetQuantity(_ context.Context, sessionID, lineID string, qty float64) (*cartservice.View, error) {
	m.record(sessionID)
	m.lineIDs = append(m.lineIDs, lineID)
	m.qty = qty
	return m.view(sessionID), m.err
}

func (m *mockCarts) Remove(_ context.Context, sessionID, lineID string) (*cartservice.View, error) {
	m.record(sessionID)
	m.lineIDs = append(m.lineIDs, lineID)
	return m.view(sessionID), m.err
}

func (m *mockCarts) Clear(_ context.Context, sessionID string) (*cartservice.View, error) {
	m.mu.Lock()
	m.cleared = append(m.cleared, sessionID)
	m.mu.Unlock()
	return m.view(sessionID), nil
}

type mockOrders struct {
	ref     *domain.OrderRef
	err     error
	orders  map[uuid.UUID]*domain.Order
	checked map[uuid.UUID]bool
	limit   int
	draft   domain.OrderDraft
}

func (m *mockOrders) PlaceOrder(_ context.Context, draft domain.OrderDraft, _ string, _ bool) (*domain.OrderRef, error) {
	m.draft = draft
	if m.err != nil {
		return nil, m.err
	}
	return m.ref, nil
}

func (m *mockOrders) ListOrders(_ context.Context, limit int) ([]*domain.Order, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrders) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (m *mockOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	to, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := m.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(o.Status, to) {
		return nil, domain.ErrIllegalTransition
	}
	o.Status = to
	return o, nil
}

func (m *mockOrders) SetLineChecked(_ context.Context, id uuid.UUID, checked bool) error {
	if m.checked == nil {
		return domain.ErrNotFound
	}
	m.checked[id] = checked
	return nil
}

type mockQuoter struct {
	key  string
	dest delivery.Coordinates
	err  error
}

func (m *mockQuoter) Quote(_ context.Context, key string, dest delivery.Coordinates) (delivery.Quote, error) {
	m.key, m.dest = key, dest
	if m.err != nil {
		return delivery.Quote{}, m.err
	}
	return delivery.Quote{DistanceKm: 4, Fee: delivery.Fee(4)}, nil
}

func (m *mockQuoter) Geocode(_ context.Context, address string) (delivery.Place, error) {
	if strings.TrimSpace(address) == "" {
		return delivery.Place{}, domain.NewValidationError("address", "Address is required")
	}
	return delivery.Place{Label: address + ", Port Harcourt", At: delivery.Coordinates{Lng: 7.01, Lat: 4.82}}, nil
}

type testServer struct {
	handler  http.Handler
	catalog  *mockCatalog
	carts    *mockCarts
	orders   *mockOrders
	delivery *mockQuoter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		catalog: &mockCatalog{products: map[string]*domain.Product{
			"shake": {
				ID:         "shake",
				Title:      "Milkshake",
				Price:      1500,
				RawOptions: []byte(`[{"name": "Flavor", "mode": "single", "required": true, "choices": "Vanilla, Chocolate"}]`),
			},
		}},
		carts:    &mockCarts{},
		orders:   &mockOrders{orders: map[uuid.UUID]*domain.Order{}},
		delivery: &mockQuoter{},
	}

	logger := zap.NewNop()
	timeout := 5 * time.Second
	ts.handler = NewRouter(RouterConfig{
		RequestTimeout:     timeout,
		MaxRequestBodySize: 1 << 20,
		AdminToken:         testAdminToken,
	}, Handlers{
		Products: NewProductHandler(ts.catalog, timeout, logger),
		Cart:     NewCartHandler(ts.carts, timeout, logger),
		Checkout: NewCheckoutHandler(ts.orders, ts.carts, timeout, logger),
		Delivery: NewDeliveryHandler(ts.delivery, ts.delivery, timeout, logger),
		Orders:   NewOrdersHandler(ts.orders, timeout, logger),
	}, logger)
	return ts
}

func (ts *testServer) do(method, target, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func withSession(id string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	}
}

func asAdmin(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+testAdminToken)
}
