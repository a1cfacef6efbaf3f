// Package service assembles orders from submitted carts. Every payment
// reference yields at most one order no matter how often checkout is
// retried, and the notification goes out only for the call that created it.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/orders/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPaymentProvider = "paystack"
	defaultLineTitle       = "Item"
	defaultListLimit       = 200
	notifyTimeout          = 5 * time.Second
)

// Notifier is the outbound order notification channel.
type Notifier interface {
	Notify(ctx context.Context, summary domain.OrderSummary) error
}

type Service struct {
	repo     repository.OrderRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewService(repo repository.OrderRepository, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// PlaceOrder turns a paid draft into an order. An order that already exists
// for paymentRef is returned unchanged with Created false.
func (s *Service) PlaceOrder(ctx context.Context, draft domain.OrderDraft, paymentRef string, paid bool) (*domain.OrderRef, error) {
	draft, paymentRef, err := validateDraft(draft, paymentRef, paid)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetOrderByPaymentReference(ctx, paymentRef)
	if err == nil {
		return existing.Ref(), nil
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, &domain.DependencyError{Dependency: "order store", Err: err}
	}

	order := buildOrder(draft, paymentRef)
	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		return s.repo.CreateOrderLines(ctx, order.ID, order.Lines)
	})
	if errors.Is(err, repository.ErrDuplicatePaymentReference) {
		return s.resolveConflict(ctx, &domain.ConflictError{PaymentReference: paymentRef, Err: err})
	}
	if err != nil {
		return nil, &domain.DependencyError{Dependency: "order store", Err: err}
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.Total),
	)
	s.notify(ctx, order)

	ref := order.Ref()
	ref.Created = true
	return ref, nil
}

// resolveConflict handles a concurrent checkout that created the order
// between our lookup and our insert: the winner's order is the answer.
func (s *Service) resolveConflict(ctx context.Context, conflict *domain.ConflictError) (*domain.OrderRef, error) {
	s.logger.Info("payment reference raced, returning existing order",
		zap.String("payment_reference", conflict.PaymentReference))

	existing, err := s.repo.GetOrderByPaymentReference(ctx, conflict.PaymentReference)
	if err != nil {
		return nil, &domain.DependencyError{Dependency: "order store", Err: fmt.Errorf("%w: refetch failed: %v", conflict, err)}
	}
	return existing.Ref(), nil
}

func (s *Service) notify(ctx context.Context, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, Summarize(order)); err != nil {
		s.logger.Warn("order notification failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func validateDraft(d domain.OrderDraft, paymentRef string, paid bool) (domain.OrderDraft, string, error) {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Method = domain.FulfillmentMethod(strings.ToLower(strings.TrimSpace(string(d.Method))))
	d.Address = strings.TrimSpace(d.Address)
	d.Note = strings.TrimSpace(d.Note)
	d.PaymentProvider = strings.TrimSpace(d.PaymentProvider)
	paymentRef = strings.TrimSpace(paymentRef)

	switch {
	case d.FullName == "":
		return d, "", domain.NewValidationError("full_name", "Full name is required")
	case d.Phone == "":
		return d, "", domain.NewValidationError("phone", "Phone is required")
	case d.Method == "":
		return d, "", domain.NewValidationError("method", "Method is required")
	case d.Method != domain.MethodDelivery && d.Method != domain.MethodPickup:
		return d, "", domain.NewValidationError("method", "Method must be delivery or pickup")
	case d.Method == domain.MethodDelivery && d.Address == "":
		return d, "", domain.NewValidationError("address", "Address is required for delivery")
	case len(d.Lines) == 0:
		return d, "", domain.NewValidationError("items", "Cart is empty")
	case !validAmount(d.Total):
		return d, "", domain.NewValidationError("total", "Invalid total")
	case !validAmount(d.DeliveryFee):
		return d, "", domain.NewValidationError("delivery_fee", "Invalid delivery fee")
	case !paid:
		return d, "", domain.NewValidationError("paid", "Payment required")
	case paymentRef == "":
		return d, "", domain.NewValidationError("payment_reference", "Missing payment reference")
	}

	lines := make([]domain.DraftLine, len(d.Lines))
	for i, l := range d.Lines {
		if !validAmount(l.UnitPrice) {
			return d, "", domain.NewValidationError(fmt.Sprintf("items[%d].unit_price", i), "Invalid unit price")
		}
		l.Title = strings.TrimSpace(l.Title)
		if l.Title == "" {
			l.Title = defaultLineTitle
		}
		if l.Qty < 1 {
			l.Qty = 1
		}
		lines[i] = l
	}
	d.Lines = lines

	if d.PaymentProvider == "" {
		d.PaymentProvider = defaultPaymentProvider
	}
	if d.Method == domain.MethodPickup {
		d.Address = ""
	}
	return d, paymentRef, nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func buildOrder(d domain.OrderDraft, paymentRef string) *domain.Order {
	order := &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusNew,
		FullName:         d.FullName,
		Phone:            d.Phone,
		Method:           d.Method,
		Address:          d.Address,
		Note:             d.Note,
		DeliveryFee:      d.DeliveryFee,
		Total:            d.Total,
		Paid:             true,
		PaymentProvider:  d.PaymentProvider,
		PaymentReference: paymentRef,
		Lines:            make([]domain.OrderLine, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		order.Subtotal += l.UnitPrice * float64(l.Qty)
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:              uuid.New(),
			OrderID:         order.ID,
			Title:           l.Title,
			Qty:             l.Qty,
			UnitPrice:       l.UnitPrice,
			SelectedOptions: l.SelectedOptionDetails,
		})
	}
	return order
}

// Summarize builds the notification payload for an order.
func Summarize(o *domain.Order) domain.OrderSummary {
	items := make([]domain.SummaryItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, domain.SummaryItem{
			Title:     l.Title,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice,
			Options:   describeOptions(l.SelectedOptions),
		})
	}
	return domain.OrderSummary{
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		FullName:    o.FullName,
		Phone:       o.Phone,
		Method:      o.Method,
		Address:     o.Address,
		Note:        o.Note,
		Subtotal:    o.Subtotal,
		DeliveryFee: o.DeliveryFee,
		Total:       o.Total,
		Items:       items,
		PlacedAt:    o.CreatedAt,
	}
}

// describeOptions renders "Extras: Oreo, Extra Cream; Flavor: Vanilla".
func describeOptions(details []domain.SelectedDetail) string {
	if len(details) == 0 {
		return ""
	}
	byGroup := make(map[string][]string)
	var groups []string
	for _, d := range details {
		if _, ok := byGroup[d.Group]; !ok {
			groups = append(groups, d.Group)
		}
		byGroup[d.Group] = append(byGroup[d.Group], d.Label)
	}
	sort.Strings(groups)

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, g+": "+strings.Join(byGroup[g], ", "))
	}
	return strings.Join(parts, "; ")
}

// UpdateStatus moves an order along the fulfillment workflow. Setting the
// current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error) {
	to, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if from == to {
		return order, nil
	}
	if !domain.CanTransitionTo(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}

	if err := s.repo.UpdateStatus(ctx, orderID, from, to); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusChanged):
			return nil, fmt.Errorf("%w: %v", domain.ErrIllegalTransition, err)
		case errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		return nil, &domain.DependencyError{Dependency: "order store", Err: err}
	}

	s.logger.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	order.Status = to
	return order, nil
}

// SetLineChecked ticks a line off the kitchen checklist.
func (s *Service) SetLineChecked(ctx context.Context, lineID uuid.UUID, checked bool) error {
	if err := s.repo.SetLineChecked(ctx, lineID, checked); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.DependencyError{Dependency: "order store", Err: err}
	}
	return nil
}

func (s *Service) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	orders, err := s.repo.ListOrders(ctx, limit)
	if err != nil {
		return nil, &domain.DependencyError{Dependency: "order store", Err: err}
	}
	return orders, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, &domain.DependencyError{Dependency: "order store", Err: err}
	}
	return order, nil
}
