package telemetry

import (
	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/port"
)

// Observers fans every notification out in order.
type Observers []port.SaleObserver

func (obs Observers) Observed(index int, attemptID string, inv domain.Inventory) {
	for _, o := range obs {
		o.Observed(index, attemptID, inv)
	}
}

func (obs Observers) Finished(res domain.AttemptResult) {
	for _, o := range obs {
		o.Finished(res)
	}
}
