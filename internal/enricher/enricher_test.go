package enricher

import (
	"context"
	"testing"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	items map[string]events.ItemDetails
}

func (f *fakeProvider) ItemDetails(ctx context.Context, itemID string) (events.ItemDetails, bool) {
	d, ok := f.items[itemID]
	return d, ok
}

func (f *fakeProvider) LocationDetails(ctx context.Context, locationID string) (events.LocationDetails, bool) {
	return events.LocationDetails{}, false
}

func TestEnrich_HighValueAfterHoursBulk(t *testing.T) {
	provider := &fakeProvider{items: map[string]events.ItemDetails{
		"HV1": {ItemID: "HV1", HighValue: true},
	}}
	e := New(provider, nil)

	price := 500.0
	total := 2000.0 * price
	p := events.ProcessedEvent{
		RawEvent: events.RawEvent{
			EventType: events.EventTypeInventory, ItemID: "HV1", Action: events.ActionStockOut,
		},
		QuantityAbs:      2000,
		NormalizedAction: events.NormalizedOutbound,
		BusinessContext:  events.BusinessContext{IsBusinessHours: false},
		TotalValue:       &total,
		TimestampParsed:  time.Date(2024, 3, 11, 23, 30, 0, 0, time.UTC),
	}

	enriched := e.Enrich(context.Background(), p)

	require.Equal(t, "bulk", enriched.Classification.VolumeCategory)
	require.Contains(t, enriched.RiskAssessment.Factors, "high_value_item")
	require.Contains(t, enriched.RiskAssessment.Factors, "bulk_transaction")
	require.Contains(t, enriched.RiskAssessment.Factors, "after_hours")
	require.Equal(t, "high", enriched.RiskAssessment.Level)
}

func TestEnrich_IdempotentOnRepeatedCalls(t *testing.T) {
	e := New(nil, nil)
	p := events.ProcessedEvent{
		RawEvent:         events.RawEvent{ItemID: "I1", Action: events.ActionStockIn},
		QuantityAbs:      5,
		NormalizedAction: events.NormalizedInbound,
		TimestampParsed:  time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC),
	}

	first := e.Enrich(context.Background(), p)
	second := e.Enrich(context.Background(), first.ProcessedEvent)

	require.Equal(t, first.Classification, second.Classification)
	require.Equal(t, first.RiskAssessment, second.RiskAssessment)
	require.Equal(t, first.SeasonalContext, second.SeasonalContext)
}

func TestVolumeCategoryBoundaries(t *testing.T) {
	cases := []struct {
		qty  float64
		want string
	}{
		{9, "low"}, {10, "medium"}, {99, "medium"}, {100, "high"}, {999, "high"}, {1000, "bulk"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, volumeCategory(c.qty))
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	// Factor weights: high_value_item 3, bulk_transaction 2, after_hours 1.
	cases := []struct {
		score         int
		want          string
		highValue     bool
		volume        string
		businessHours bool
	}{
		{2, "low", false, "bulk", true},
		{3, "medium", true, "low", true},
		{4, "medium", true, "low", false},
		{5, "high", true, "bulk", true},
	}
	for _, c := range cases {
		p := events.ProcessedEvent{BusinessContext: events.BusinessContext{IsBusinessHours: c.businessHours}}
		risk := assessRisk(p, events.Classification{VolumeCategory: c.volume}, events.ItemDetails{HighValue: c.highValue})
		require.Equal(t, c.score, risk.Score)
		require.Equal(t, c.want, risk.Level)
	}
}
