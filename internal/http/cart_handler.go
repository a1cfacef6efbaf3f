package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	cartservice "github.com/aderut/moridam/internal/cart/service"
	"github.com/aderut/moridam/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	Get(ctx context.Context, sessionID string) (*cartservice.View, error)
	AddItem(ctx context.Context, sessionID, productID string, sel domain.Selection) (*cartservice.View, error)
	SetQuantity(ctx context.Context, sessionID, lineID string, qty float64) (*cartservice.View, error)
	Remove(ctx context.Context, sessionID, lineID string) (*cartservice.View, error)
	Clear(ctx context.Context, sessionID string) (*cartservice.View, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductID       string           `json:"product_id"`
	SelectedOptions domain.Selection `json:"selected_options"`
}

type UpdateQuantityRequestDTO struct {
	Qty *float64 `json:"qty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	view, err := h.carts.AddItem(ctx, getSessionID(r.Context()), req.ProductID, req.SelectedOptions)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// UpdateQuantity sets a line's quantity; anything below 1 removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Qty == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "qty is required")
		return
	}

	view, err := h.carts.SetQuantity(ctx, getSessionID(r.Context()), lineIDParam(r), *req.Qty)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.Remove(ctx, getSessionID(r.Context()), lineIDParam(r))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.carts.Clear(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// lineIDParam returns the decoded line id. Line ids embed the selection JSON,
// so clients send them percent-encoded.
func lineIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "line_id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}
