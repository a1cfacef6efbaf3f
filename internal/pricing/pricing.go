// Package pricing turns a product plus a customer's option selection into a
// priced, deterministically identified cart line.
package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aderut/moridam/internal/domain"
)

const lineIDSeparator = "__"

type Line struct {
	LineID          string
	ProductID       string
	BasePrice       float64
	Selection       domain.Selection // canonical: no empty groups, labels sorted and unique
	SelectedDetails []domain.SelectedDetail
	AddonsTotal     float64
	UnitPrice       float64
}

// Calculate validates sel against schema and prices the resulting line.
// schema may be nil for products without options.
func Calculate(productID string, basePrice float64, schema domain.ProductOptionSchema, sel domain.Selection) (*Line, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.NewValidationError("product_id", "product id is required")
	}
	if math.IsNaN(basePrice) || math.IsInf(basePrice, 0) || basePrice < 0 {
		return nil, domain.NewValidationError("price", "base price must be a non-negative number")
	}

	// repeated labels count as separate picks for single-choice groups
	if err := checkSingle(schema, sel); err != nil {
		return nil, err
	}

	canonical := Canonicalize(sel)

	if err := validate(schema, canonical); err != nil {
		return nil, err
	}

	details := make([]domain.SelectedDetail, 0)
	var addons float64
	for _, group := range sortedGroups(canonical) {
		g, _ := schema.Group(group)
		for _, label := range canonical[group] {
			c, _ := g.Choice(label)
			price := c.Price
			if price < 0 || math.IsNaN(price) {
				price = 0
			}
			details = append(details, domain.SelectedDetail{Group: group, Label: label, Price: price})
			addons += price
		}
	}

	return &Line{
		LineID:          lineID(productID, canonical),
		ProductID:       productID,
		BasePrice:       basePrice,
		Selection:       canonical,
		SelectedDetails: details,
		AddonsTotal:     addons,
		UnitPrice:       basePrice + addons,
	}, nil
}

// LineID computes the identity of (productID, sel) without a schema.
// It agrees with Calculate for every selection Calculate accepts.
func LineID(productID string, sel domain.Selection) string {
	return lineID(productID, Canonicalize(sel))
}

// Canonicalize drops empty groups and sorts and de-duplicates each group's labels,
// so the result is independent of the order the customer clicked in.
func Canonicalize(sel domain.Selection) domain.Selection {
	out := make(domain.Selection, len(sel))
	for group, labels := range sel {
		if len(labels) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(labels))
		uniq := make([]string, 0, len(labels))
		for _, l := range labels {
			if _, ok := set[l]; ok {
				continue
			}
			set[l] = struct{}{}
			uniq = append(uniq, l)
		}
		sort.Strings(uniq)
		out[group] = uniq
	}
	return out
}

func checkSingle(schema domain.ProductOptionSchema, sel domain.Selection) error {
	for _, g := range schema {
		if g.Mode != domain.OptionModeMultiple && len(sel[g.Name]) > 1 {
			return domain.NewValidationError(g.Name, fmt.Sprintf("only one choice allowed for %s", g.Name))
		}
	}
	return nil
}

func validate(schema domain.ProductOptionSchema, sel domain.Selection) error {
	for _, g := range schema {
		picks := sel[g.Name]
		if g.Required && len(picks) == 0 {
			return domain.NewValidationError(g.Name, fmt.Sprintf("please select %s", g.Name))
		}
		if g.Mode != domain.OptionModeMultiple && len(picks) > 1 {
			return domain.NewValidationError(g.Name, fmt.Sprintf("only one choice allowed for %s", g.Name))
		}
		for _, label := range picks {
			if _, ok := g.Choice(label); !ok {
				return domain.NewValidationError(g.Name, fmt.Sprintf("%q is not a choice of %s", label, g.Name))
			}
		}
	}

	for _, group := range sortedGroups(sel) {
		if _, ok := schema.Group(group); !ok {
			return domain.NewValidationError(group, fmt.Sprintf("unknown option group %s", group))
		}
	}
	return nil
}

func lineID(productID string, canonical domain.Selection) string {
	// encoding/json writes map keys in sorted order
	b, err := json.Marshal(map[string][]string(canonical))
	if err != nil {
		b = []byte("{}")
	}
	return productID + lineIDSeparator + string(b)
}

func sortedGroups(sel domain.Selection) []string {
	groups := make([]string, 0, len(sel))
	for g := range sel {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}
