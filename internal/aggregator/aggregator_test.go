package aggregator

import (
	"testing"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/stretchr/testify/require"
)

func event(itemID, locationID string, action events.Action, qty float64, value float64, ts time.Time) *events.EnrichedEvent {
	v := value
	return &events.EnrichedEvent{
		ProcessedEvent: events.ProcessedEvent{
			RawEvent: events.RawEvent{
				ItemID: itemID, LocationID: locationID, Action: action,
			},
			QuantityAbs:     qty,
			TotalValue:      &v,
			TimestampParsed: ts,
		},
	}
}

func TestAggregator_RunningTotalsAccumulate(t *testing.T) {
	a := New()
	base := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	a.Add(event("I1", "L1", events.ActionStockIn, 10, 100, base))
	snap := a.Add(event("I2", "L1", events.ActionStockOut, 5, 50, base.Add(time.Second)))

	require.Equal(t, int64(2), snap.RunningTotals.TotalTransactions)
	require.Equal(t, 15.0, snap.RunningTotals.TotalVolume)
	require.Equal(t, 150.0, snap.RunningTotals.TotalValue)
	require.Equal(t, 2, snap.RunningTotals.UniqueItems)
	require.Equal(t, 1, snap.RunningTotals.UniqueLocations)
}

func TestAggregator_TopItemsRanksByCount(t *testing.T) {
	a := New()
	base := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		a.Add(event("popular", "L1", events.ActionStockIn, 1, 1, base.Add(time.Duration(i)*time.Second)))
	}
	snap := a.Add(event("rare", "L1", events.ActionStockIn, 1, 1, base.Add(4*time.Second)))

	require.NotEmpty(t, snap.TopItems)
	require.Equal(t, "popular", snap.TopItems[0].ItemID)
	require.Equal(t, 3, snap.TopItems[0].TransactionCount)
}

func TestAggregator_WindowEvictsOldEntries(t *testing.T) {
	a := New()
	base := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	a.Add(event("I1", "L1", events.ActionStockIn, 10, 10, base))
	snap := a.Add(event("I2", "L1", events.ActionStockIn, 10, 10, base.Add(2*time.Minute)))

	require.Equal(t, 1, snap.WindowMetrics["1min"].TransactionCount, "1min window must have evicted the entry from 2 minutes ago")
	require.Equal(t, 2, snap.WindowMetrics["5min"].TransactionCount)
}

func TestAggregator_QualityScorePenalizesMissingFields(t *testing.T) {
	a := New()
	base := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	snap := a.Add(event("", "", events.ActionStockIn, 10, 10, base))

	require.Less(t, snap.QualityMetrics.OverallQualityScore, 100.0)
}
