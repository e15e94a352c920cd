package worker

import "github.com/warehouseops/pipeline/internal/events"

var allowedActions = map[events.Action]bool{
	events.ActionStockIn:    true,
	events.ActionStockOut:   true,
	events.ActionAdjustment: true,
	events.ActionTransfer:   true,
}

// validate enforces the §3 RawEvent invariant for inventory events:
// item_id, action, quantity and timestamp must all be present and
// action must be one of the allowed set. Non-inventory events are
// passed through unvalidated here (they don't carry this invariant).
func validate(raw events.RawEvent) error {
	if raw.EventType != events.EventTypeInventory {
		return nil
	}
	if raw.ItemID == "" {
		return fieldError("item_id", "missing")
	}
	if raw.Action == "" || !allowedActions[raw.Action] {
		return fieldError("action", "missing or not in allowed set")
	}
	if raw.Quantity == nil {
		return fieldError("quantity", "missing or non-numeric")
	}
	if raw.Timestamp == nil {
		return fieldError("timestamp", "missing")
	}
	return nil
}

// ValidationError names the offending field, so it can be logged with
// correlation_id and dropped without failing the batch (§7).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func fieldError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
