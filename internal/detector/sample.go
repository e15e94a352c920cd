package detector

import (
	"time"

	"github.com/warehouseops/pipeline/internal/events"
)

// sample is one entry retained in the bounded sliding sample window.
// Distinct from the aggregator's time-bounded TimeWindow: this window
// is bounded by count (W entries), not by elapsed time (§9).
type sample struct {
	t              time.Time
	patternKey     string
	action         events.NormalizedAction
	itemID         string
	locationID     string
	supplier       string
	quantityAbs    float64
	quantitySigned float64
	afterHours     bool
	isWeekend      bool
}
