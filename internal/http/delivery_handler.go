package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aderut/moridam/internal/delivery"
	"go.uber.org/zap"
)

type Quoter interface {
	Quote(ctx context.Context, key string, dest delivery.Coordinates) (delivery.Quote, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (delivery.Place, error)
}

type DeliveryHandler struct {
	quoter   Quoter
	geocoder Geocoder
	timeout  time.Duration
	logger   *zap.Logger
}

func NewDeliveryHandler(quoter Quoter, geocoder Geocoder, timeout time.Duration, logger *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		quoter:   quoter,
		geocoder: geocoder,
		timeout:  timeout,
		logger:   logger,
	}
}

type QuoteRequestDTO struct {
	To *delivery.Coordinates `json:"to"`
}

type QuoteResponseDTO struct {
	DistanceKm float64              `json:"distanceKm"`
	Fee        float64              `json:"fee"`
	UsedTo     delivery.Coordinates `json:"usedTo"`
}

// Quote prices delivery to a [lng, lat] pair. Quotes are keyed by session,
// so only the shopper's latest request gets a fee back.
func (h *DeliveryHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req QuoteRequestDTO
	if err := decodeBody(r, &req); err != nil || req.To == nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Missing/invalid 'to' coordinates. Expected [lng, lat].",
			Code:    "validation_error",
			Details: "to",
		})
		return
	}

	q, err := h.quoter.Quote(ctx, getSessionID(r.Context()), *req.To)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, QuoteResponseDTO{DistanceKm: q.DistanceKm, Fee: q.Fee, UsedTo: *req.To})
}

type GeocodeRequestDTO struct {
	Address string `json:"address"`
}

type GeocodeResponseDTO struct {
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
	Label string  `json:"label"`
}

func (h *DeliveryHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req GeocodeRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	place, err := h.geocoder.Geocode(ctx, req.Address)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, GeocodeResponseDTO{Lng: place.At.Lng, Lat: place.At.Lat, Label: place.Label})
}
