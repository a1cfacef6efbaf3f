// Package options reduces the option-group formats the catalog has stored over
// time to one canonical domain.ProductOptionSchema.
package options

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/aderut/moridam/internal/domain"
)

// shape is the closed set of top-level inputs Normalize understands.
type shape int

const (
	shapeUnknown shape = iota
	shapeGroup
	shapeGroupList
	shapeEncoded // a JSON document stored as a string
)

// choiceShape is the closed set of encodings for a group's choices.
type choiceShape int

const (
	choicesUnknown choiceShape = iota
	choicesStrings
	choicesCSV
	choicesPriced
)

// Normalize decodes raw option JSON and normalizes it. Malformed JSON yields an empty schema.
func Normalize(raw json.RawMessage) domain.ProductOptionSchema {
	if len(raw) == 0 {
		return domain.ProductOptionSchema{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.ProductOptionSchema{}
	}
	return NormalizeValue(v)
}

// NormalizeValue normalizes an already decoded value. It never panics.
func NormalizeValue(v any) domain.ProductOptionSchema {
	return normalize(v, true)
}

func normalize(v any, allowEncoded bool) domain.ProductOptionSchema {
	schema := domain.ProductOptionSchema{}

	switch classify(v) {
	case shapeGroup:
		if g, ok := normalizeGroup(v.(map[string]any)); ok {
			schema = append(schema, g)
		}
	case shapeGroupList:
		for _, item := range v.([]any) {
			m, isObj := item.(map[string]any)
			if !isObj {
				continue
			}
			if g, ok := normalizeGroup(m); ok {
				schema = append(schema, g)
			}
		}
	case shapeEncoded:
		if !allowEncoded {
			return schema
		}
		var inner any
		if err := json.Unmarshal([]byte(v.(string)), &inner); err != nil {
			return schema
		}
		return normalize(inner, false)
	case shapeUnknown:
	}

	return schema
}

func classify(v any) shape {
	switch t := v.(type) {
	case map[string]any:
		return shapeGroup
	case []any:
		return shapeGroupList
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
			return shapeEncoded
		}
	}
	return shapeUnknown
}

func classifyChoices(v any) choiceShape {
	switch t := v.(type) {
	case string:
		return choicesCSV
	case []any:
		if len(t) > 0 {
			if _, isObj := t[0].(map[string]any); isObj {
				return choicesPriced
			}
		}
		return choicesStrings
	}
	return choicesUnknown
}

func normalizeGroup(m map[string]any) (domain.OptionGroup, bool) {
	name := strings.TrimSpace(asString(m["name"]))
	if name == "" {
		return domain.OptionGroup{}, false
	}

	modeRaw, ok := m["mode"]
	if !ok {
		modeRaw = m["type"]
	}

	g := domain.OptionGroup{
		Name:     name,
		Mode:     parseMode(modeRaw),
		Required: truthy(m["required"]),
		Choices:  normalizeChoices(m["choices"]),
	}
	if len(g.Choices) == 0 {
		return domain.OptionGroup{}, false
	}
	return g, true
}

func normalizeChoices(v any) []domain.OptionChoice {
	choices := make([]domain.OptionChoice, 0)

	switch classifyChoices(v) {
	case choicesCSV:
		for _, part := range strings.Split(v.(string), ",") {
			if label := strings.TrimSpace(part); label != "" {
				choices = append(choices, domain.OptionChoice{Label: label})
			}
		}
	case choicesStrings:
		for _, item := range v.([]any) {
			if label := strings.TrimSpace(asString(item)); label != "" {
				choices = append(choices, domain.OptionChoice{Label: label})
			}
		}
	case choicesPriced:
		for _, item := range v.([]any) {
			c, isObj := item.(map[string]any)
			if !isObj {
				continue
			}
			label := strings.TrimSpace(asString(c["label"]))
			if label == "" {
				continue
			}
			choices = append(choices, domain.OptionChoice{Label: label, Price: asPrice(c["price"])})
		}
	case choicesUnknown:
	}

	return choices
}

func parseMode(v any) domain.OptionMode {
	switch strings.ToLower(strings.TrimSpace(asString(v))) {
	case "multiple", "multi":
		return domain.OptionModeMultiple
	}
	return domain.OptionModeSingle
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0"
	case nil:
		return false
	}
	// objects and arrays are truthy
	return true
}

// asString renders scalars; objects and arrays become "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// asPrice coerces a stored price; anything unusable or negative becomes 0.
func asPrice(v any) float64 {
	var p float64
	switch t := v.(type) {
	case float64:
		p = t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		p = f
	default:
		return 0
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}
