package events

import "encoding/json"

// rawEventKnownFields are the struct tags UnmarshalJSON treats as
// first-class; everything else on the wire lands in Extra and is
// passed through unchanged, per the processor's "unrecognized domain
// fields pass through" contract.
var rawEventKnownFields = map[string]bool{
	"event_type": true, "timestamp": true, "correlation_id": true,
	"item_id": true, "location_id": true, "action": true, "quantity": true,
	"unit_price": true, "order_id": true, "shipment_id": true, "supplier": true,
}

type rawEventAlias RawEvent

// UnmarshalJSON decodes the known RawEvent fields and stashes any
// unrecognized keys in Extra so they survive the round trip to
// ProcessedEvent/EnrichedEvent and back out to the bus.
func (r *RawEvent) UnmarshalJSON(data []byte) error {
	var alias rawEventAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = RawEvent(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]any)
	for k, v := range raw {
		if rawEventKnownFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		extra[k] = val
	}
	if len(extra) > 0 {
		r.Extra = extra
	}
	return nil
}

// MarshalJSON emits the known fields plus any pass-through Extra
// fields, so an event can flow through the pipeline and out to a
// downstream topic without losing producer-supplied fields the core
// does not understand.
func (r RawEvent) MarshalJSON() ([]byte, error) {
	alias := rawEventAlias(r)
	alias.Extra = nil
	base, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	return mergeJSON(base, r.Extra)
}

// MarshalJSON flattens ProcessedEvent's own fields together with the
// embedded RawEvent's fields (including any pass-through Extra),
// since Go does not merge embedded custom marshalers by default.
func (p ProcessedEvent) MarshalJSON() ([]byte, error) {
	rawJSON, err := p.RawEvent.MarshalJSON()
	if err != nil {
		return nil, err
	}
	type processedFields struct {
		TimestampParsed    string           `json:"timestamp_parsed"`
		QuantityAbs        float64          `json:"quantity_abs"`
		QuantityNormalized float64          `json:"quantity_normalized"`
		NormalizedAction   NormalizedAction `json:"normalized_action"`
		BusinessContext    BusinessContext  `json:"business_context"`
		TotalValue         *float64         `json:"total_value,omitempty"`
		Processing         Processing       `json:"processing"`
	}
	own, err := json.Marshal(processedFields{
		TimestampParsed:    p.TimestampParsed.Format("2006-01-02T15:04:05Z07:00"),
		QuantityAbs:        p.QuantityAbs,
		QuantityNormalized: p.QuantityNormalized,
		NormalizedAction:   p.NormalizedAction,
		BusinessContext:    p.BusinessContext,
		TotalValue:         p.TotalValue,
		Processing:         p.Processing,
	})
	if err != nil {
		return nil, err
	}
	return mergeJSONObjects(rawJSON, own)
}

// MarshalJSON flattens EnrichedEvent's own fields on top of the
// embedded ProcessedEvent's flattened rendering.
func (e EnrichedEvent) MarshalJSON() ([]byte, error) {
	processedJSON, err := e.ProcessedEvent.MarshalJSON()
	if err != nil {
		return nil, err
	}
	type enrichedFields struct {
		ItemDetails     ItemDetails     `json:"item_details"`
		LocationDetails LocationDetails `json:"location_details"`
		Classification  Classification  `json:"classification"`
		RiskAssessment  RiskAssessment  `json:"risk_assessment"`
		SeasonalContext SeasonalContext `json:"seasonal_context"`
		Anomaly         *AnomalyResult  `json:"anomaly,omitempty"`
	}
	own, err := json.Marshal(enrichedFields{
		ItemDetails:     e.ItemDetails,
		LocationDetails: e.LocationDetails,
		Classification:  e.Classification,
		RiskAssessment:  e.RiskAssessment,
		SeasonalContext: e.SeasonalContext,
		Anomaly:         e.Anomaly,
	})
	if err != nil {
		return nil, err
	}
	return mergeJSONObjects(processedJSON, own)
}

func mergeJSON(base []byte, extra map[string]any) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func mergeJSONObjects(a, b []byte) ([]byte, error) {
	var ma, mb map[string]any
	if err := json.Unmarshal(a, &ma); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &mb); err != nil {
		return nil, err
	}
	for k, v := range mb {
		ma[k] = v
	}
	return json.Marshal(ma)
}
