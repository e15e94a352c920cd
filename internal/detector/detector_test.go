package detector

import (
	"testing"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/stretchr/testify/require"
)

func enrichedEvent(itemID string, action events.Action, qty float64, price float64, ts time.Time, highValue bool) *events.EnrichedEvent {
	total := qty * price
	q := qty
	e := &events.EnrichedEvent{
		ProcessedEvent: events.ProcessedEvent{
			RawEvent: events.RawEvent{
				EventType: events.EventTypeInventory, ItemID: itemID, Action: action, Quantity: &q,
			},
			QuantityAbs:      qty,
			NormalizedAction: events.NormalizeAction(action),
			TotalValue:       &total,
			TimestampParsed:  ts,
			BusinessContext: events.BusinessContext{
				IsBusinessHours: ts.Hour() >= 8 && ts.Hour() < 18,
				IsWeekend:       ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday,
			},
		},
		ItemDetails: events.ItemDetails{ItemID: itemID, HighValue: highValue},
	}
	if action == events.ActionStockOut {
		e.QuantityNormalized = -qty
	} else {
		e.QuantityNormalized = qty
	}
	if qty >= 1000 {
		e.Classification.VolumeCategory = "bulk"
	}
	return e
}

func TestDetect_HighValueRiskCombination(t *testing.T) {
	d := New(100, HashBaselineProvider{})
	ts := time.Date(2024, 3, 11, 23, 30, 0, 0, time.UTC)
	e := enrichedEvent("HV1", events.ActionStockOut, 2000, 500, ts, true)

	result := d.Detect(e)

	require.True(t, result.IsAnomaly)
	require.Equal(t, "high_value_risk_combination", result.AnomalyType)
	require.Equal(t, "high", result.Severity)
}

func TestDetect_VolumeAnomalyNeedsFiveSamples(t *testing.T) {
	d := New(100, HashBaselineProvider{})
	base := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		e := enrichedEvent("I1", events.ActionStockIn, 10, 1, base.Add(time.Duration(i)*time.Minute), false)
		d.Detect(e)
	}
	spike := enrichedEvent("I1", events.ActionStockIn, 500, 1, base.Add(5*time.Minute), false)
	result := d.Detect(spike)

	require.False(t, result.IsAnomaly, "fewer than 5 historical samples must not trigger the volume check")
}

func TestDetect_VolumeAnomalyTriggersOnOutlier(t *testing.T) {
	d := New(100, HashBaselineProvider{})
	base := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	// Alternate 9 and 11 so the history has a non-zero spread; a
	// zero-variance history yields no z-score at all (see zScore).
	for i := 0; i < 10; i++ {
		qty := 9.0
		if i%2 == 1 {
			qty = 11.0
		}
		e := enrichedEvent("I2", events.ActionStockIn, qty, 1, base.Add(time.Duration(i)*time.Minute), false)
		d.Detect(e)
	}
	spike := enrichedEvent("I2", events.ActionStockIn, 5000, 1, base.Add(11*time.Minute), false)
	result := d.Detect(spike)

	require.True(t, result.IsAnomaly)
	require.Equal(t, "volume_anomaly", result.AnomalyType)
}
