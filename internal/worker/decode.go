package worker

import (
	"encoding/json"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/pkg/errors"
)

func decodeRawEvent(payload []byte) (events.RawEvent, error) {
	var raw events.RawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return events.RawEvent{}, errors.InvalidArgument("malformed message payload", err)
	}
	return raw, nil
}
