package telemetry

import (
	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-occ/internal/core/domain"
)

// LogObserver writes the per-attempt trace: the snapshot each attempt read
// and how it ended.
type LogObserver struct {
	logger zerolog.Logger
}

func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observed(index int, attemptID string, inv domain.Inventory) {
	o.logger.Info().
		Int("attempt", index).
		Str("attempt_id", attemptID).
		Int64("inventory_id", inv.ID).
		Int64("stock", inv.Stock).
		Int64("version", inv.Version).
		Msgf("#%d observed inventory", index)
}

func (o *LogObserver) Finished(res domain.AttemptResult) {
	var ev *zerolog.Event
	msg := ""

	switch res.Outcome {
	case domain.OutcomeCommitted:
		ev, msg = o.logger.Info(), "sold"
	case domain.OutcomeInsufficientStock:
		ev, msg = o.logger.Info(), "insufficient stock"
	case domain.OutcomeVersionConflict:
		ev, msg = o.logger.Info(), "version changed before write, not sold"
	case domain.OutcomeNotFound:
		ev, msg = o.logger.Warn(), "inventory not found"
	default:
		ev, msg = o.logger.Error().Err(res.Err), "store error"
	}

	ev.Int("attempt", res.Index).
		Str("attempt_id", res.AttemptID).
		Int64("inventory_id", res.InventoryID).
		Str("outcome", string(res.Outcome)).
		Dur("duration", res.Duration).
		Msgf("#%d %s", res.Index, msg)
}
