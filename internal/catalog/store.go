// Package catalog is the product catalog adapter. Products and their raw
// option definitions live in SQLite; option schemas are normalized by the
// caller when a product is priced.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/options"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	SaveOptions(ctx context.Context, id string, schema domain.ProductOptionSchema) error
}

type SQLiteStore struct {
	db *sqlx.DB
}

// productRow mirrors the products table. Options is nullable TEXT.
type productRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Price       float64        `db:"price"`
	Category    string         `db:"category"`
	Image       string         `db:"image"`
	Options     sql.NullString `db:"options"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r productRow) toDomain() *domain.Product {
	p := &domain.Product{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Image:       r.Image,
		CreatedAt:   r.CreatedAt,
	}
	if r.Options.Valid {
		p.RawOptions = json.RawMessage(r.Options.String)
	}
	return p
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: SQLite has a single writer and ":memory:" databases
	// are private to the connection that opened them
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, title, description, price, category, image, options, created_at
		FROM products
		WHERE id = ?
	`

	var row productRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return row.toDomain(), nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, title, description, price, category, image, options, created_at
		FROM products
		ORDER BY category, title
	`

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*domain.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toDomain())
	}
	return products, nil
}

// SaveOptions replaces a product's option groups after checking them the way
// the admin editor does.
func (s *SQLiteStore) SaveOptions(ctx context.Context, id string, schema domain.ProductOptionSchema) error {
	if err := options.Validate(schema); err != nil {
		return err
	}

	var raw any
	if len(schema) > 0 {
		b, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("failed to marshal options: %w", err)
		}
		raw = string(b)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE products SET options = ? WHERE id = ?`, raw, id)
	if err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
