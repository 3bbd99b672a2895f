package handler

import (
	"net/http"

	"github.com/rl1809/inventory-occ/internal/core/domain"
)

// maxSimulateAttempts caps the fan-out a single request may ask for.
const maxSimulateAttempts = 1000

func outcomeMessage(o domain.Outcome) string {
	switch o {
	case domain.OutcomeCommitted:
		return "sold"
	case domain.OutcomeNotFound:
		return "inventory not found"
	case domain.OutcomeInsufficientStock:
		return "sold out"
	case domain.OutcomeVersionConflict:
		return "concurrent update, not sold"
	default:
		return "internal error"
	}
}

func outcomeStatus(o domain.Outcome) int {
	switch o {
	case domain.OutcomeCommitted:
		return http.StatusOK
	case domain.OutcomeNotFound:
		return http.StatusNotFound
	case domain.OutcomeInsufficientStock:
		return http.StatusGone
	case domain.OutcomeVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
