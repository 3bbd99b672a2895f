package port

import (
	"context"

	"github.com/rl1809/inventory-occ/internal/core/domain"
)

type InventoryRepository interface {
	// GetInventory retrieves the committed record, nil if it does not exist
	GetInventory(ctx context.Context, id int64) (*domain.Inventory, error)

	// BeginTx opens a transactional scope owned by a single sell attempt
	BeginTx(ctx context.Context) (InventoryTx, error)

	// CreateInventory seeds a record
	CreateInventory(ctx context.Context, inv domain.Inventory) error
}

type InventoryTx interface {
	// GetInventory reads the record inside the scope, nil if it does not exist
	GetInventory(ctx context.Context, id int64) (*domain.Inventory, error)

	// DecrementStock takes one unit and advances the version, only if the
	// stored version still equals expectedVersion. Returns rows affected (0 or 1).
	DecrementStock(ctx context.Context, id int64, expectedVersion int64) (int64, error)

	Commit() error

	// Rollback discards the scope; it is a no-op once Commit or Rollback returned
	Rollback() error
}
