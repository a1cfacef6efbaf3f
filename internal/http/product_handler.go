package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/options"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Catalog is what the product routes need from the catalog store.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	SaveOptions(ctx context.Context, id string, schema domain.ProductOptionSchema) error
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewProductHandler(catalog Catalog, timeout time.Duration, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
		logger:  logger,
	}
}

// ProductDTO carries the normalized option schema so clients never see the
// legacy shapes stored in the catalog.
type ProductDTO struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description,omitempty"`
	Price       float64                    `json:"price"`
	Category    string                     `json:"category,omitempty"`
	Image       string                     `json:"image,omitempty"`
	Options     domain.ProductOptionSchema `json:"options"`
}

func toProductDTO(p *domain.Product) ProductDTO {
	schema := options.Normalize(p.RawOptions)
	if schema == nil {
		schema = domain.ProductOptionSchema{}
	}
	return ProductDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Image:       p.Image,
		Options:     schema,
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleError(w, r, h.logger, &domain.DependencyError{Dependency: "catalog", Err: err})
		return
	}

	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toProductDTO(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, catalogError(err))
		return
	}
	respondJSON(w, http.StatusOK, toProductDTO(p))
}

type SaveOptionsRequestDTO struct {
	Options domain.ProductOptionSchema `json:"options"`
}

// SaveOptions replaces a product's option schema (admin).
func (h *ProductHandler) SaveOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SaveOptionsRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.catalog.SaveOptions(ctx, id, req.Options); err != nil {
		handleError(w, r, h.logger, catalogError(err))
		return
	}

	p, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleError(w, r, h.logger, catalogError(err))
		return
	}
	respondJSON(w, http.StatusOK, toProductDTO(p))
}

func catalogError(err error) error {
	if errorsIsClient(err) {
		return err
	}
	return &domain.DependencyError{Dependency: "catalog", Err: err}
}
