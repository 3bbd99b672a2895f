package domain

import "time"

type Outcome string

const (
	OutcomeCommitted         Outcome = "committed"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeVersionConflict   Outcome = "version_conflict"
	OutcomeStoreError        Outcome = "store_error"
)

// Outcomes lists every terminal state of a sell attempt.
var Outcomes = []Outcome{
	OutcomeCommitted,
	OutcomeNotFound,
	OutcomeInsufficientStock,
	OutcomeVersionConflict,
	OutcomeStoreError,
}

// Sold reports whether the attempt durably decremented the stock.
func (o Outcome) Sold() bool {
	return o == OutcomeCommitted
}

// AttemptResult is the terminal report of one sell attempt.
type AttemptResult struct {
	Index       int
	AttemptID   string
	InventoryID int64
	Observed    *Inventory // pre-write snapshot, nil if the read did not produce one
	Outcome     Outcome
	Err         error // set for OutcomeStoreError only
	Duration    time.Duration
}

type SimulationConfig struct {
	InventoryID    int64
	Attempts       int
	Pace           time.Duration // delay between launching consecutive attempts
	AttemptTimeout time.Duration // zero means no deadline
}

type SimulationReport struct {
	Results   []AttemptResult
	Final     *Inventory
	Committed int
}

// Count returns how many attempts ended with the given outcome.
func (r SimulationReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
