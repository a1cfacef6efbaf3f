package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/pricing"
)

const (
	// StorageVersion is written into every persisted cart document.
	StorageVersion = 2
	// StorageKey namespaces persisted carts.
	StorageKey = "moridam_cart_v2"
)

var ErrMalformedDocument = errors.New("malformed cart document")

// Document is the persisted form of a cart.
type Document struct {
	Version   int               `json:"version" bson:"version"`
	SessionID string            `json:"session_id" bson:"session_id"`
	Lines     []domain.CartLine `json:"lines" bson:"lines"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

// StoredLine is a lenient view of a persisted line. Every field may be
// missing in carts written by older versions of the storefront.
type StoredLine struct {
	LineID          string                  `json:"lineId"`
	ProductID       string                  `json:"id"`
	Title           string                  `json:"title"`
	Image           string                  `json:"image"`
	Category        string                  `json:"category"`
	Price           *float64                `json:"price"`
	BasePrice       *float64                `json:"basePrice"`
	AddonsTotal     *float64                `json:"addonsTotal"`
	Selection       domain.Selection        `json:"selectedOptions"`
	SelectedDetails []domain.SelectedDetail `json:"selectedOptionDetails"`
	Qty             *float64                `json:"qty"`
}

// Snapshot builds the document to persist for a session.
func (c *Cart) Snapshot(sessionID string) *Document {
	return &Document{
		Version:   StorageVersion,
		SessionID: sessionID,
		Lines:     c.Lines(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Encode serializes a document for the cache.
func Encode(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return b, nil
}

// Decode accepts a versioned document or a bare array of lines (version 1)
// and repairs every line. Lines that cannot be decoded are dropped.
func Decode(data []byte) (*Cart, error) {
	trimmed := strings.TrimSpace(string(data))
	var rawLines []json.RawMessage

	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal([]byte(trimmed), &rawLines); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var doc struct {
			Lines []json.RawMessage `json:"lines"`
		}
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		rawLines = doc.Lines
	default:
		return nil, ErrMalformedDocument
	}

	records := make([]StoredLine, 0, len(rawLines))
	for _, raw := range rawLines {
		var rec StoredLine
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return Restore(records), nil
}

// RestoreLines repairs lines read from a typed store.
func RestoreLines(lines []domain.CartLine) *Cart {
	records := make([]StoredLine, 0, len(lines))
	for _, l := range lines {
		basePrice, addons, qty := l.BasePrice, l.AddonsTotal, float64(l.Quantity)
		records = append(records, StoredLine{
			LineID:          l.LineID,
			ProductID:       l.ProductID,
			Title:           l.Title,
			Image:           l.Image,
			Category:        l.Category,
			BasePrice:       &basePrice,
			AddonsTotal:     &addons,
			Selection:       l.Selection,
			SelectedDetails: l.SelectedDetails,
			Qty:             &qty,
		})
	}
	return Restore(records)
}

// Restore rebuilds a cart from stored records, re-deriving prices and
// identities instead of trusting them. Records that repair to the same
// identity are merged.
func Restore(records []StoredLine) *Cart {
	c := New()
	for _, rec := range records {
		line, ok := repair(rec)
		if !ok {
			continue
		}
		if i := c.find(line.LineID); i >= 0 {
			c.lines[i].Quantity += line.Quantity
			continue
		}
		c.lines = append(c.lines, line)
	}
	return c
}

func repair(rec StoredLine) (domain.CartLine, bool) {
	productID := strings.TrimSpace(rec.ProductID)
	if productID == "" {
		if i := strings.Index(rec.LineID, "__"); i > 0 {
			productID = rec.LineID[:i]
		}
	}
	if productID == "" {
		return domain.CartLine{}, false
	}

	details := make([]domain.SelectedDetail, 0, len(rec.SelectedDetails))
	var detailsTotal float64
	for _, d := range rec.SelectedDetails {
		if strings.TrimSpace(d.Group) == "" || strings.TrimSpace(d.Label) == "" {
			continue
		}
		d.Price = money(&d.Price)
		detailsTotal += d.Price
		details = append(details, d)
	}

	sel := rec.Selection
	if len(sel) == 0 && len(details) > 0 {
		sel = make(domain.Selection)
		for _, d := range details {
			sel[d.Group] = append(sel[d.Group], d.Label)
		}
	}
	sel = pricing.Canonicalize(sel)

	basePrice := money(rec.BasePrice)
	if !finite(rec.BasePrice) {
		// older carts stored only the base price under "price"
		basePrice = money(rec.Price)
	}
	addons := detailsTotal
	if finite(rec.AddonsTotal) {
		addons = money(rec.AddonsTotal)
	}

	qty := 1
	if finite(rec.Qty) && *rec.Qty >= 1 && *rec.Qty <= maxQuantity {
		qty = int(*rec.Qty)
	}

	return domain.CartLine{
		LineID:          pricing.LineID(productID, sel),
		ProductID:       productID,
		Title:           rec.Title,
		Image:           rec.Image,
		Category:        rec.Category,
		BasePrice:       basePrice,
		Selection:       sel,
		SelectedDetails: details,
		AddonsTotal:     addons,
		UnitPrice:       basePrice + addons,
		Quantity:        qty,
	}, true
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// money returns a usable non-negative amount, or 0.
func money(v *float64) float64 {
	if !finite(v) || *v < 0 {
		return 0
	}
	return *v
}
