package port

import "github.com/rl1809/inventory-occ/internal/core/domain"

// SaleObserver receives attempt notifications from concurrent goroutines.
type SaleObserver interface {
	// Observed is called with the pre-write snapshot read by an attempt
	Observed(index int, attemptID string, inv domain.Inventory)

	// Finished is called once per attempt with its terminal result
	Finished(result domain.AttemptResult)
}
