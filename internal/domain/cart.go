package domain

// CartLine is one distinct (product, selection) pair in a cart.
type CartLine struct {
	LineID          string           `json:"lineId" bson:"line_id"`
	ProductID       string           `json:"id" bson:"product_id"`
	Title           string           `json:"title" bson:"title"`
	Image           string           `json:"image,omitempty" bson:"image,omitempty"`
	Category        string           `json:"category,omitempty" bson:"category,omitempty"`
	BasePrice       float64          `json:"basePrice" bson:"base_price"`
	Selection       Selection        `json:"selectedOptions,omitempty" bson:"selection,omitempty"`
	SelectedDetails []SelectedDetail `json:"selectedOptionDetails" bson:"selected_details"`
	AddonsTotal     float64          `json:"addonsTotal" bson:"addons_total"`
	UnitPrice       float64          `json:"price" bson:"unit_price"`
	Quantity        int              `json:"qty" bson:"qty"`
}

func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}
