// Package cart holds the per-session cart aggregate. A Cart is not safe for
// concurrent use; the session service serializes access per session.
package cart

import (
	"math"

	"github.com/aderut/moridam/internal/domain"
	"github.com/aderut/moridam/internal/pricing"
)

// maxQuantity bounds SetQuantity to values an int holds on every platform.
const maxQuantity = math.MaxInt32

// ItemInfo carries display fields that are not part of the line identity.
type ItemInfo struct {
	Title    string
	Image    string
	Category string
}

type Cart struct {
	lines []domain.CartLine
}

func New() *Cart {
	return &Cart{}
}

// Add puts a priced line into the cart. An existing line with the same
// identity gets its quantity bumped and keeps the price it was first added at.
func (c *Cart) Add(line *pricing.Line, info ItemInfo) domain.CartLine {
	if i := c.find(line.LineID); i >= 0 {
		c.lines[i].Quantity++
		return c.lines[i]
	}

	details := make([]domain.SelectedDetail, len(line.SelectedDetails))
	copy(details, line.SelectedDetails)

	added := domain.CartLine{
		LineID:          line.LineID,
		ProductID:       line.ProductID,
		Title:           info.Title,
		Image:           info.Image,
		Category:        info.Category,
		BasePrice:       line.BasePrice,
		Selection:       copySelection(line.Selection),
		SelectedDetails: details,
		AddonsTotal:     line.AddonsTotal,
		UnitPrice:       line.UnitPrice,
		Quantity:        1,
	}
	c.lines = append(c.lines, added)
	return added
}

// SetQuantity sets the quantity of a line to exactly qty. Zero or negative
// removes the line; NaN, infinities and out-of-range values are ignored.
// Fractions are truncated. It reports whether the cart changed.
func (c *Cart) SetQuantity(lineID string, qty float64) bool {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty > maxQuantity {
		return false
	}
	i := c.find(lineID)
	if i < 0 {
		return false
	}
	n := int(qty)
	if n <= 0 {
		c.removeAt(i)
		return true
	}
	if c.lines[i].Quantity == n {
		return false
	}
	c.lines[i].Quantity = n
	return true
}

// Remove deletes a line. Removing an absent line is a no-op.
func (c *Cart) Remove(lineID string) bool {
	i := c.find(lineID)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Line(lineID string) (domain.CartLine, bool) {
	if i := c.find(lineID); i >= 0 {
		return c.lines[i], true
	}
	return domain.CartLine{}, false
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Count is the sum of quantities.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Total is the sum of unit price times quantity.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}

func (c *Cart) find(lineID string) int {
	for i := range c.lines {
		if c.lines[i].LineID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func copySelection(sel domain.Selection) domain.Selection {
	if sel == nil {
		return nil
	}
	out := make(domain.Selection, len(sel))
	for k, v := range sel {
		labels := make([]string, len(v))
		copy(labels, v)
		out[k] = labels
	}
	return out
}
