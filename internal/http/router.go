package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	AdminToken         string
	SecureCookies      bool
}

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Delivery *DeliveryHandler
	Orders   *OrdersHandler
}

func NewRouter(cfg RouterConfig, hs Handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", hs.Products.ListProducts)
		r.Get("/products/{id}", hs.Products.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.SecureCookies))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", hs.Cart.GetCart)
				r.Delete("/", hs.Cart.ClearCart)
				r.Post("/items", hs.Cart.AddItem)
				r.Put("/items/{line_id}", hs.Cart.UpdateQuantity)
				r.Delete("/items/{line_id}", hs.Cart.RemoveItem)
			})

			r.Post("/delivery/quote", hs.Delivery.Quote)
			r.Post("/geocode", hs.Delivery.Geocode)
			r.Post("/checkout/place-order", hs.Checkout.PlaceOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))

			r.Get("/orders", hs.Orders.ListOrders)
			r.Get("/orders/{id}", hs.Orders.GetOrder)
			r.Patch("/orders/{id}/status", hs.Orders.UpdateStatus)
			r.Patch("/orders/items/{line_id}/check", hs.Orders.CheckItem)
			r.Put("/products/{id}/options", hs.Products.SaveOptions)
		})
	})

	return otelhttp.NewHandler(r, "moridam-api")
}
