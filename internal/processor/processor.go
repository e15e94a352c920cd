// Package processor implements the Event Processor (C2): deterministic,
// I/O-free normalization of a RawEvent into a ProcessedEvent.
package processor

import (
	"math"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
)

// Processor turns a RawEvent plus bus metadata into a ProcessedEvent.
// It never errors: malformed input is tagged and passed through for
// later validation, per §4.2.
type Processor struct {
	now func() time.Time
}

// New returns a Processor using the real wall clock.
func New() *Processor {
	return &Processor{now: time.Now}
}

// Process runs the C2 algorithm.
func (p *Processor) Process(raw events.RawEvent, meta events.KafkaMetadata) events.ProcessedEvent {
	out := events.ProcessedEvent{RawEvent: raw}

	out.NormalizedAction = events.NormalizeAction(raw.Action)

	var qty float64
	if raw.Quantity != nil {
		qty = *raw.Quantity
	}
	out.QuantityAbs = math.Abs(qty)
	if raw.Action == events.ActionStockOut {
		out.QuantityNormalized = -out.QuantityAbs
	} else {
		out.QuantityNormalized = out.QuantityAbs
	}

	parsed, fallback := parseTimestamp(raw.Timestamp, p.now)
	out.TimestampParsed = parsed

	out.BusinessContext = deriveBusinessContext(parsed)

	if raw.UnitPrice != nil {
		tv := out.QuantityAbs * (*raw.UnitPrice)
		out.TotalValue = &tv
	}

	out.Processing = events.Processing{
		ProcessedAt:       p.now(),
		KafkaMetadata:     meta,
		TimestampFallback: fallback,
	}

	return out
}

// parseTimestamp accepts ISO-8601 (with or without a Z suffix) or an
// epoch-seconds number; anything else substitutes now() and reports a
// fallback, per §4.2 step 4.
func parseTimestamp(ts interface{}, now func() time.Time) (time.Time, bool) {
	switch v := ts.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), false
		}
		if t, err := time.Parse("2006-01-02T15:04:05.999999999Z0700", v); err == nil {
			return t.UTC(), false
		}
		// No zone designator at all: read as UTC.
		if t, err := time.Parse("2006-01-02T15:04:05.999999999", v); err == nil {
			return t.UTC(), false
		}
		return now().UTC(), true
	case float64:
		return time.Unix(int64(v), 0).UTC(), false
	case int64:
		return time.Unix(v, 0).UTC(), false
	case int:
		return time.Unix(int64(v), 0).UTC(), false
	default:
		return now().UTC(), true
	}
}

// deriveBusinessContext implements §4.2 step 5 / GLOSSARY's business
// hours and shift boundaries.
func deriveBusinessContext(t time.Time) events.BusinessContext {
	hour := t.Hour()
	// Go's Weekday: Sunday=0 ... Saturday=6. The spec's day_of_week uses
	// Mon=0..Sun=6 (weekend = day_of_week >= 5), so remap accordingly.
	dow := (int(t.Weekday()) + 6) % 7

	isBusinessHours := hour >= 8 && hour < 18 && dow < 5
	isWeekend := dow >= 5

	var shift string
	switch {
	case hour >= 6 && hour < 14:
		shift = "morning"
	case hour >= 14 && hour < 22:
		shift = "afternoon"
	default:
		shift = "night"
	}

	return events.BusinessContext{
		Hour:            hour,
		DayOfWeek:       dow,
		IsBusinessHours: isBusinessHours,
		IsWeekend:       isWeekend,
		Shift:           shift,
	}
}
