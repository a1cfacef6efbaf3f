package http

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"go.uber.org/zap"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, draft domain.OrderDraft, paymentRef string, paid bool) (*domain.OrderRef, error)
}

type CheckoutHandler struct {
	orders  OrderPlacer
	carts   CartService
	timeout time.Duration
	logger  *zap.Logger
}

func NewCheckoutHandler(orders OrderPlacer, carts CartService, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		orders:  orders,
		carts:   carts,
		timeout: timeout,
		logger:  logger,
	}
}

type PlaceOrderItemDTO struct {
	Title           string                  `json:"title"`
	Qty             float64                 `json:"qty"`
	UnitPrice       float64                 `json:"unit_price"`
	SelectedOptions []domain.SelectedDetail `json:"selected_options"`
}

type PlaceOrderRequestDTO struct {
	FullName         string              `json:"full_name"`
	FullNameCamel    string              `json:"fullName"`
	Phone            string              `json:"phone"`
	Method           string              `json:"method"`
	Address          string              `json:"address"`
	Note             string              `json:"note"`
	Items            []PlaceOrderItemDTO `json:"items"`
	Total            float64             `json:"total"`
	DeliveryFee      float64             `json:"delivery_fee"`
	Paid             bool                `json:"paid"`
	PaymentProvider  string              `json:"payment_provider"`
	PaymentReference string              `json:"payment_reference"`
}

func (req PlaceOrderRequestDTO) draft() domain.OrderDraft {
	name := req.FullName
	if strings.TrimSpace(name) == "" {
		name = req.FullNameCamel
	}

	lines := make([]domain.DraftLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.DraftLine{
			Title:                 it.Title,
			Qty:                   int(math.Floor(it.Qty)),
			UnitPrice:             it.UnitPrice,
			SelectedOptionDetails: it.SelectedOptions,
		})
	}

	return domain.OrderDraft{
		FullName:        name,
		Phone:           req.Phone,
		Method:          domain.FulfillmentMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		Address:         req.Address,
		Note:            req.Note,
		Lines:           lines,
		Total:           req.Total,
		DeliveryFee:     req.DeliveryFee,
		PaymentProvider: req.PaymentProvider,
	}
}

// PlaceOrder answers 201 for a new order and 200 when the payment reference
// already had one. Both carry the same body.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ref, err := h.orders.PlaceOrder(ctx, req.draft(), req.PaymentReference, req.Paid)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if sessionID := getSessionID(r.Context()); sessionID != "" {
		if _, err := h.carts.Clear(ctx, sessionID); err != nil {
			requestLogger(r, h.logger).Warn("failed to clear cart after checkout",
				zap.String("order_id", ref.OrderID.String()),
				zap.Error(err),
			)
		}
	}

	status := http.StatusOK
	if ref.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, ref)
}
