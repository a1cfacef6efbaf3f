package domain

import (
	"encoding/json"
	"time"
)

type Product struct {
	ID          string          `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Price       float64         `db:"price" json:"price"`
	Category    string          `db:"category" json:"category"`
	Image       string          `db:"image" json:"image"`
	RawOptions  json.RawMessage `db:"options" json:"options"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
