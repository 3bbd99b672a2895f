package domain

// Inventory is the single stock-keeping record contended by sell attempts.
type Inventory struct {
	ID      int64
	Stock   int64
	Version int64 // optimistic locking
}

// HasStock reports whether at least one unit can be sold.
func (i Inventory) HasStock() bool {
	return i.Stock > 0
}
