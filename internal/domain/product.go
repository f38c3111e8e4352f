package domain

import "time"

// Product is read-only from the cart's point of view; only Stock bounds
// quantities.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}
