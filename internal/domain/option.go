package domain

type OptionMode string

const (
	OptionModeSingle   OptionMode = "single"
	OptionModeMultiple OptionMode = "multiple"
)

type OptionChoice struct {
	Label string  `json:"label" bson:"label"`
	Price float64 `json:"price" bson:"price"`
}

type OptionGroup struct {
	Name     string         `json:"name" bson:"name"`
	Mode     OptionMode     `json:"mode" bson:"mode"`
	Required bool           `json:"required" bson:"required"`
	Choices  []OptionChoice `json:"choices" bson:"choices"`
}

// Choice returns the first choice with the given label.
func (g OptionGroup) Choice(label string) (OptionChoice, bool) {
	for _, c := range g.Choices {
		if c.Label == label {
			return c, true
		}
	}
	return OptionChoice{}, false
}

// ProductOptionSchema is the ordered list of option groups of one product.
type ProductOptionSchema []OptionGroup

func (s ProductOptionSchema) Group(name string) (OptionGroup, bool) {
	for _, g := range s {
		if g.Name == name {
			return g, true
		}
	}
	return OptionGroup{}, false
}

// Selection maps a group name to the labels the customer picked, in click order.
type Selection map[string][]string

type SelectedDetail struct {
	Group string  `json:"group" bson:"group"`
	Label string  `json:"label" bson:"label"`
	Price float64 `json:"price" bson:"price"`
}
