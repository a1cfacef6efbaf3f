package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aderut/moridam/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	uniqueViolation            = "23505"
	paymentReferenceConstraint = "orders_payment_reference_key"
	orderColumns               = `id, order_number, status, full_name, phone, method, address, note, subtotal, delivery_fee, total, paid, payment_provider, payment_reference, created_at`
	lineColumns                = `id, order_id, title, qty, unit_price, selected_options, checked`
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c *Credentials) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

type PostgresRepository struct {
	db *sqlx.DB
}

type txKey struct{}

func NewPostgresRepository(ctx context.Context, cred *Credentials) (*PostgresRepository, error) {
	db, err := sqlx.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// WithTransaction runs fn in a database transaction carried by ctx. Nested
// calls join the outer transaction.
func (r *PostgresRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, order_number, status, full_name, phone, method, address, note,
	                              subtotal, delivery_fee, total, paid, payment_provider, payment_reference)
	          VALUES ($1, 'MD-' || lpad(nextval('order_number_seq')::text, 6, '0'), $2, $3, $4, $5, $6, $7,
	                  $8, $9, $10, $11, $12, $13)
	          RETURNING order_number, created_at`

	err := r.ext(ctx).QueryRowxContext(ctx, query,
		order.ID,
		order.Status,
		order.FullName,
		order.Phone,
		order.Method,
		order.Address,
		order.Note,
		order.Subtotal,
		order.DeliveryFee,
		order.Total,
		order.Paid,
		order.PaymentProvider,
		order.PaymentReference,
	).Scan(&order.OrderNumber, &order.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == paymentReferenceConstraint {
			return ErrDuplicatePaymentReference
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

type lineRow struct {
	ID              uuid.UUID `db:"id"`
	OrderID         uuid.UUID `db:"order_id"`
	Position        int       `db:"position"`
	Title           string    `db:"title"`
	Qty             int       `db:"qty"`
	UnitPrice       float64   `db:"unit_price"`
	SelectedOptions string    `db:"selected_options"`
	Checked         bool      `db:"checked"`
}

func (r *PostgresRepository) CreateOrderLines(ctx context.Context, orderID uuid.UUID, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([]lineRow, 0, len(lines))
	for i := range lines {
		opts := lines[i].SelectedOptions
		if opts == nil {
			opts = []domain.SelectedDetail{}
		}
		b, err := json.Marshal(opts)
		if err != nil {
			return fmt.Errorf("marshal selected options: %w", err)
		}
		lines[i].OrderID = orderID
		rows = append(rows, lineRow{
			ID:              lines[i].ID,
			OrderID:         orderID,
			Position:        i,
			Title:           lines[i].Title,
			Qty:             lines[i].Qty,
			UnitPrice:       lines[i].UnitPrice,
			SelectedOptions: string(b),
			Checked:         lines[i].Checked,
		})
	}

	query := `INSERT INTO order_items (id, order_id, position, title, qty, unit_price, selected_options, checked)
	          VALUES (:id, :order_id, :position, :title, :qty, :unit_price, CAST(:selected_options AS JSONB), :checked)`

	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, rows); err != nil {
		return fmt.Errorf("insert order lines: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *PostgresRepository) GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, ref)
}

func (r *PostgresRepository) getOrder(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var order domain.Order
	err := sqlx.GetContext(ctx, r.ext(ctx), &order, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := r.attachLines(ctx, []*domain.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns the newest orders first, with their lines.
func (r *PostgresRepository) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, order_number DESC LIMIT $1`

	var orders []*domain.Order
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &orders, query, limit); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *PostgresRepository) attachLines(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID.String())
		byID[o.ID] = o
		o.Lines = []domain.OrderLine{}
	}

	query := `SELECT ` + lineColumns + ` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`

	var rows []lineRow
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}

	for _, row := range rows {
		line := domain.OrderLine{
			ID:        row.ID,
			OrderID:   row.OrderID,
			Title:     row.Title,
			Qty:       row.Qty,
			UnitPrice: row.UnitPrice,
			Checked:   row.Checked,
		}
		if err := json.Unmarshal([]byte(row.SelectedOptions), &line.SelectedOptions); err != nil {
			return fmt.Errorf("unmarshal selected options: %w", err)
		}
		if o, ok := byID[row.OrderID]; ok {
			o.Lines = append(o.Lines, line)
		}
	}
	return nil
}

// UpdateStatus moves an order from one status to another. It fails with
// ErrStatusChanged when the order is no longer in from.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	res, err := r.ext(ctx).ExecContext(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.ext(ctx), &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrStatusChanged
}

func (r *PostgresRepository) SetLineChecked(ctx context.Context, lineID uuid.UUID, checked bool) error {
	res, err := r.ext(ctx).ExecContext(ctx, `UPDATE order_items SET checked = $2 WHERE id = $1`, lineID, checked)
	if err != nil {
		return fmt.Errorf("update order line: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order line: %w", err)
	}
	if n == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
