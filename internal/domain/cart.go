package domain

import "time"

// Cart is the per-user collection of lines. Version is bumped by the store on
// every successful save and is used to reject writes based on a stale read.
type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartLine `bson:"items" json:"items"`
	Version   int64      `bson:"version" json:"version"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartLine struct {
	ProductID int64     `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// CartEntry is a cart line joined with the live product it references.
type CartEntry struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindLine returns the index of the line for productID, or -1.
func (c *Cart) FindLine(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveLine drops the line at index i, keeping the order of the others.
func (c *Cart) RemoveLine(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// ProductIDs lists the referenced products in line order.
func (c *Cart) ProductIDs() []int64 {
	ids := make([]int64, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	return ids
}

// Clone returns a deep copy so callers can mutate lines without touching
// a cached or stored instance.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartLine, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}
