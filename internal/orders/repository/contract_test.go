package repository

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/aderut/moridam/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(ref string) *domain.Order {
	return &domain.Order{
		ID:               uuid.New(),
		Status:           domain.OrderStatusNew,
		FullName:         "Ada Obi",
		Phone:            "+2348012345678",
		Method:           domain.MethodDelivery,
		Address:          "12 Allen Avenue, Ikeja",
		Subtotal:         4000,
		DeliveryFee:      1250,
		Total:            5250,
		Paid:             true,
		PaymentProvider:  "paystack",
		PaymentReference: ref,
	}
}

func newTestLines() []domain.OrderLine {
	return []domain.OrderLine{
		{
			ID:        uuid.New(),
			Title:     "Milkshake",
			Qty:       2,
			UnitPrice: 1800,
			SelectedOptions: []domain.SelectedDetail{
				{Group: "Extras", Label: "Oreo", Price: 300},
			},
		},
		{ID: uuid.New(), Title: "Bottled Water", Qty: 2, UnitPrice: 200},
	}
}

func createWithLines(t *testing.T, repo OrderRepository, order *domain.Order) {
	t.Helper()
	err := repo.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		return repo.CreateOrderLines(ctx, order.ID, newTestLines())
	})
	require.NoError(t, err)
}

// runContract exercises behavior every OrderRepository must share.
func runContract(t *testing.T, newRepo func(t *testing.T) OrderRepository) {
	t.Run("create and fetch", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("ref-" + uuid.NewString())
		createWithLines(t, repo, order)

		assert.Regexp(t, regexp.MustCompile(`^MD-\d{6}$`), order.OrderNumber)
		assert.False(t, order.CreatedAt.IsZero())

		fetched, err := repo.GetOrderByID(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderNumber, fetched.OrderNumber)
		assert.Equal(t, order.PaymentReference, fetched.PaymentReference)
		assert.Equal(t, domain.OrderStatusNew, fetched.Status)
		assert.Equal(t, 5250.0, fetched.Total)
		require.Len(t, fetched.Lines, 2)
		assert.Equal(t, "Milkshake", fetched.Lines[0].Title)
		assert.Equal(t, order.ID, fetched.Lines[0].OrderID)
		assert.Equal(t, []domain.SelectedDetail{{Group: "Extras", Label: "Oreo", Price: 300}}, fetched.Lines[0].SelectedOptions)
		assert.Empty(t, fetched.Lines[1].SelectedOptions)

		byRef, err := repo.GetOrderByPaymentReference(context.Background(), order.PaymentReference)
		require.NoError(t, err)
		assert.Equal(t, order.ID, byRef.ID)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetOrderByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.GetOrderByPaymentReference(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("duplicate payment reference", func(t *testing.T) {
		repo := newRepo(t)
		ref := "ref-" + uuid.NewString()
		createWithLines(t, repo, newTestOrder(ref))

		second := newTestOrder(ref)
		err := repo.WithTransaction(context.Background(), func(ctx context.Context) error {
			return repo.CreateOrder(ctx, second)
		})
		assert.ErrorIs(t, err, ErrDuplicatePaymentReference)

		_, err = repo.GetOrderByID(context.Background(), second.ID)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("failed transaction leaves nothing behind", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("ref-" + uuid.NewString())
		boom := errors.New("lines failed")

		err := repo.WithTransaction(context.Background(), func(ctx context.Context) error {
			if err := repo.CreateOrder(ctx, order); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.GetOrderByPaymentReference(context.Background(), order.PaymentReference)
		assert.ErrorIs(t, err, ErrOrderNotFound)

		// the reference is free again
		createWithLines(t, repo, newTestOrder(order.PaymentReference))
	})

	t.Run("concurrent creates with one reference", func(t *testing.T) {
		repo := newRepo(t)
		ref := "ref-" + uuid.NewString()

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		created, duplicates := 0, 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				order := newTestOrder(ref)
				err := repo.WithTransaction(context.Background(), func(ctx context.Context) error {
					if err := repo.CreateOrder(ctx, order); err != nil {
						return err
					}
					return repo.CreateOrderLines(ctx, order.ID, newTestLines())
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, ErrDuplicatePaymentReference):
					duplicates++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Equal(t, workers-1, duplicates)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		first := newTestOrder("ref-" + uuid.NewString())
		second := newTestOrder("ref-" + uuid.NewString())
		createWithLines(t, repo, first)
		createWithLines(t, repo, second)

		orders, err := repo.ListOrders(context.Background(), 10)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(orders), 2)
		assert.Equal(t, second.ID, orders[0].ID)
		assert.Equal(t, first.ID, orders[1].ID)
		assert.Len(t, orders[0].Lines, 2)

		limited, err := repo.ListOrders(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("update status", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("ref-" + uuid.NewString())
		createWithLines(t, repo, order)
		ctx := context.Background()

		require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusNew, domain.OrderStatusPrepping))
		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPrepping, fetched.Status)

		err = repo.UpdateStatus(ctx, order.ID, domain.OrderStatusNew, domain.OrderStatusCancelled)
		assert.ErrorIs(t, err, ErrStatusChanged)

		err = repo.UpdateStatus(ctx, uuid.New(), domain.OrderStatusNew, domain.OrderStatusPrepping)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("check line", func(t *testing.T) {
		repo := newRepo(t)
		order := newTestOrder("ref-" + uuid.NewString())
		createWithLines(t, repo, order)
		ctx := context.Background()

		fetched, err := repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		lineID := fetched.Lines[1].ID

		require.NoError(t, repo.SetLineChecked(ctx, lineID, true))
		fetched, err = repo.GetOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.False(t, fetched.Lines[0].Checked)
		assert.True(t, fetched.Lines[1].Checked)

		assert.ErrorIs(t, repo.SetLineChecked(ctx, uuid.New(), true), ErrLineNotFound)
	})
}
