// Package events defines the record types that flow through the
// processing graph: RawEvent in, ProcessedEvent after C2, EnrichedEvent
// after C3, AnomalyResult from C4, and the Alert record owned by C9.
package events

import "time"

// EventType is the domain type of a raw input record.
type EventType string

const (
	EventTypeInventory EventType = "inventory"
	EventTypeOrder      EventType = "order"
	EventTypeShipment   EventType = "shipment"
	EventTypeAlert      EventType = "alert"
	EventTypeAudit      EventType = "audit"
	EventTypeMetric     EventType = "metric"
)

// Action is the inventory action carried on a RawEvent.
type Action string

const (
	ActionStockIn    Action = "stock_in"
	ActionStockOut   Action = "stock_out"
	ActionAdjustment Action = "adjustment"
	ActionTransfer   Action = "transfer"
)

// NormalizedAction is C2's canonical mapping of Action.
type NormalizedAction string

const (
	NormalizedInbound    NormalizedAction = "inbound"
	NormalizedOutbound   NormalizedAction = "outbound"
	NormalizedAdjustment NormalizedAction = "adjustment"
	NormalizedTransfer   NormalizedAction = "transfer"
)

var actionNormalization = map[Action]NormalizedAction{
	ActionStockIn:    NormalizedInbound,
	ActionStockOut:   NormalizedOutbound,
	ActionAdjustment: NormalizedAdjustment,
	ActionTransfer:   NormalizedTransfer,
}

// NormalizeAction maps a raw action to its normalized form. Unknown
// actions pass through unchanged, per the processor's documented
// never-fail contract.
func NormalizeAction(a Action) NormalizedAction {
	if n, ok := actionNormalization[a]; ok {
		return n
	}
	return NormalizedAction(a)
}

// RawEvent is the JSON shape consumed from the bus. Domain fields are
// kept in a generic map so unrecognized fields pass through unchanged,
// as required for forward-compatible producers.
type RawEvent struct {
	EventType     EventType      `json:"event_type"`
	Timestamp     interface{}    `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	ItemID        string         `json:"item_id,omitempty"`
	LocationID    string         `json:"location_id,omitempty"`
	Action        Action         `json:"action,omitempty"`
	Quantity      *float64       `json:"quantity,omitempty"`
	UnitPrice     *float64       `json:"unit_price,omitempty"`
	OrderID       string         `json:"order_id,omitempty"`
	ShipmentID    string         `json:"shipment_id,omitempty"`
	Supplier      string         `json:"supplier,omitempty"`
	Extra         map[string]any `json:"-"`
}

// BusinessContext is C2's derivation of shift/day context from the
// parsed timestamp.
type BusinessContext struct {
	Hour            int    `json:"hour"`
	DayOfWeek       int    `json:"day_of_week"`
	IsBusinessHours bool   `json:"is_business_hours"`
	IsWeekend       bool   `json:"is_weekend"`
	Shift           string `json:"shift"`
}

// KafkaMetadata records the bus coordinates a record was read from.
type KafkaMetadata struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
	Key       string `json:"key"`
}

// Processing carries the C2/C6 bookkeeping attached to every record.
type Processing struct {
	ProcessedAt       time.Time     `json:"processed_at"`
	KafkaMetadata     KafkaMetadata `json:"kafka_metadata"`
	TimestampFallback bool          `json:"timestamp_fallback,omitempty"`
}

// ProcessedEvent is the output of the Event Processor (C2).
type ProcessedEvent struct {
	RawEvent

	TimestampParsed    time.Time        `json:"timestamp_parsed"`
	QuantityAbs        float64          `json:"quantity_abs"`
	QuantityNormalized float64          `json:"quantity_normalized"`
	NormalizedAction   NormalizedAction `json:"normalized_action"`
	BusinessContext    BusinessContext  `json:"business_context"`
	TotalValue         *float64         `json:"total_value,omitempty"`
	Processing         Processing       `json:"processing"`
}

// ItemDetails is the item metadata attached by the Enricher, whether
// sourced from a real provider or the deterministic stand-in.
type ItemDetails struct {
	ItemID     string  `json:"item_id"`
	Category   string  `json:"category"`
	Supplier   string  `json:"supplier"`
	Perishable bool    `json:"perishable"`
	HighValue  bool    `json:"high_value"`
	UnitCost   float64 `json:"unit_cost"`
}

// LocationDetails is the location metadata attached by the Enricher.
type LocationDetails struct {
	LocationID string `json:"location_id"`
	Zone       string `json:"zone"`
	Region     string `json:"region"`
}

// Classification is C3's categorical read on the event.
type Classification struct {
	EventType      EventType `json:"event_type"`
	VolumeCategory string    `json:"volume_category"`
	ValueCategory  string    `json:"value_category"`
	Urgency        string    `json:"urgency"`
}

// RiskAssessment is C3's scored risk read on the event.
type RiskAssessment struct {
	Score   int      `json:"score"`
	Level   string   `json:"level"`
	Factors []string `json:"factors"`
}

// SeasonalContext is C3's calendar-derived demand signal.
type SeasonalContext struct {
	Season         string `json:"season"`
	Month          int    `json:"month"`
	SeasonalDemand string `json:"seasonal_demand"`
}

// EnrichedEvent is the output of the Enricher (C3), and the unit of
// work fed to the Anomaly Detector and Window Aggregator.
type EnrichedEvent struct {
	ProcessedEvent

	ItemDetails     ItemDetails     `json:"item_details"`
	LocationDetails LocationDetails `json:"location_details"`
	Classification  Classification  `json:"classification"`
	RiskAssessment  RiskAssessment  `json:"risk_assessment"`
	SeasonalContext SeasonalContext `json:"seasonal_context"`

	// Anomaly is attached by the worker after running the detector (C4),
	// before the record is fed to the aggregator (C5) and storage (C7).
	// Nil when the detector has not yet run.
	Anomaly *AnomalyResult `json:"anomaly,omitempty"`
}

// PatternKey is the (action, item_id) tuple the detector uses to
// select comparable historical samples.
func (e *EnrichedEvent) PatternKey() string {
	return string(e.NormalizedAction) + "|" + e.ItemID
}

// AnomalyResult is emitted by the Anomaly Detector (C4).
type AnomalyResult struct {
	IsAnomaly    bool           `json:"is_anomaly"`
	Confidence   float64        `json:"confidence"`
	AnomalyType  string         `json:"anomaly_type"`
	Severity     string         `json:"severity"`
	Details      map[string]any `json:"details"`
}

// AlertStatus is the lifecycle state of an Alert.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Severity is the Alert/AnomalyResult severity scale, ordered most to
// least urgent for sort/compare purposes.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityError:    1,
	SeverityWarning:  2,
	SeverityInfo:     3,
}

// Rank returns a lower-is-more-severe ordinal used for sorting alerts
// and for severity-threshold comparisons.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() <= min.Rank()
}

// Alert is the record owned by the Alert Manager (C9).
type Alert struct {
	AlertID        string         `json:"alert_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Severity       Severity       `json:"severity"`
	Source         string         `json:"source"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Status         AlertStatus    `json:"status"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// AlertPayload is the wire shape produced by the detector to the
// warehouse.alerts topic (§6).
type AlertPayload struct {
	Type        string         `json:"type"`
	ItemID      string         `json:"item_id"`
	AnomalyType string         `json:"anomaly_type"`
	Confidence  float64        `json:"confidence"`
	Details     map[string]any `json:"details"`
	Timestamp   time.Time      `json:"timestamp"`
	Severity    string         `json:"severity"`
}
