package options

import (
	"fmt"
	"math"
	"strings"

	"github.com/aderut/moridam/internal/domain"
)

// Validate checks a schema the administrator is about to save.
func Validate(schema domain.ProductOptionSchema) error {
	seen := make(map[string]struct{}, len(schema))
	for _, g := range schema {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return domain.NewValidationError("options", "every option group must have a title")
		}
		if _, dup := seen[name]; dup {
			return domain.NewValidationError(name, "option group title is used twice")
		}
		seen[name] = struct{}{}

		if g.Mode != domain.OptionModeSingle && g.Mode != domain.OptionModeMultiple {
			return domain.NewValidationError(name, fmt.Sprintf("unknown mode %q", g.Mode))
		}
		if len(g.Choices) == 0 {
			return domain.NewValidationError(name, "must have at least 1 choice")
		}
		for _, c := range g.Choices {
			if strings.TrimSpace(c.Label) == "" {
				return domain.NewValidationError(name, "has an empty choice label")
			}
			if math.IsNaN(c.Price) || math.IsInf(c.Price, 0) || c.Price < 0 {
				return domain.NewValidationError(name, "has an invalid price")
			}
		}
	}
	return nil
}
