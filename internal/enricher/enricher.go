// Package enricher implements the Enricher (C3): attaches item and
// location metadata, classifies volume/value/urgency, scores risk, and
// derives seasonal demand context.
package enricher

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/pkg/cache"
)

// MetadataProvider is the pluggable real-lookup interface for item and
// location metadata. Production wiring supplies one backed by the
// transactional system; StandInProvider is the documented fallback
// used in tests/dev when no provider is configured (§9).
type MetadataProvider interface {
	ItemDetails(ctx context.Context, itemID string) (events.ItemDetails, bool)
	LocationDetails(ctx context.Context, locationID string) (events.LocationDetails, bool)
}

const l2TTL = time.Hour

// Enricher attaches metadata and derived classification fields to a
// ProcessedEvent. Lookups try L1 (in-process, TTL-checked), then L2
// (shared cache, 1h TTL), then fall back to a deterministic stand-in.
type Enricher struct {
	provider MetadataProvider
	l1       *l1Cache
	l2       cache.Cache // may be nil
}

// New builds an Enricher. l2 may be nil when no shared cache is
// configured; provider may be nil to always use the stand-in.
func New(provider MetadataProvider, l2 cache.Cache) *Enricher {
	return &Enricher{provider: provider, l1: newL1Cache(), l2: l2}
}

// Enrich runs the C3 algorithm. Idempotent: re-running on an already
// enriched event recomputes the same classification/risk/season
// fields from the same inputs (§8).
func (e *Enricher) Enrich(ctx context.Context, p events.ProcessedEvent) events.EnrichedEvent {
	out := events.EnrichedEvent{ProcessedEvent: p}

	out.ItemDetails = e.lookupItem(ctx, p.ItemID)
	out.LocationDetails = e.lookupLocation(ctx, p.LocationID)

	out.Classification = classify(p, out.ItemDetails)
	out.RiskAssessment = assessRisk(p, out.Classification, out.ItemDetails)
	out.SeasonalContext = seasonalContext(p.TimestampParsed, out.ItemDetails.Category)

	return out
}

func (e *Enricher) lookupItem(ctx context.Context, itemID string) events.ItemDetails {
	if itemID == "" {
		return standInItemDetails(itemID)
	}
	key := "item:" + itemID
	if v, ok := e.l1.get(key); ok {
		if d, ok := v.(events.ItemDetails); ok {
			return d
		}
	}
	if e.l2 != nil {
		var d events.ItemDetails
		if err := e.l2.Get(ctx, key, &d); err == nil {
			e.l1.set(key, d)
			return d
		}
	}
	if e.provider != nil {
		if d, ok := e.provider.ItemDetails(ctx, itemID); ok {
			e.l1.set(key, d)
			if e.l2 != nil {
				_ = e.l2.Set(ctx, key, d, l2TTL)
			}
			return d
		}
	}
	d := standInItemDetails(itemID)
	e.l1.set(key, d)
	return d
}

func (e *Enricher) lookupLocation(ctx context.Context, locationID string) events.LocationDetails {
	if locationID == "" {
		return standInLocationDetails(locationID)
	}
	key := "location:" + locationID
	if v, ok := e.l1.get(key); ok {
		if d, ok := v.(events.LocationDetails); ok {
			return d
		}
	}
	if e.l2 != nil {
		var d events.LocationDetails
		if err := e.l2.Get(ctx, key, &d); err == nil {
			e.l1.set(key, d)
			return d
		}
	}
	if e.provider != nil {
		if d, ok := e.provider.LocationDetails(ctx, locationID); ok {
			e.l1.set(key, d)
			if e.l2 != nil {
				_ = e.l2.Set(ctx, key, d, l2TTL)
			}
			return d
		}
	}
	d := standInLocationDetails(locationID)
	e.l1.set(key, d)
	return d
}

// standInItemDetails is the documented deterministic fallback: a
// stable hash of the item id stands in for a real metadata lookup
// when no provider is wired (§4.3, §9).
func standInItemDetails(itemID string) events.ItemDetails {
	h := stableHash(itemID)
	return events.ItemDetails{
		ItemID:     itemID,
		Category:   []string{"General", "Electronics", "Clothing", "Perishable"}[h%4],
		Supplier:   []string{"Supplier_A", "Supplier_B", "Supplier_C", "Supplier_D"}[h%4],
		Perishable: h%7 == 0,
		HighValue:  h%5 == 0,
		UnitCost:   float64(h%500) + 1,
	}
}

func standInLocationDetails(locationID string) events.LocationDetails {
	h := stableHash(locationID)
	zones := []string{"A", "B", "C", "D"}
	regions := []string{"north", "south", "east", "west"}
	return events.LocationDetails{
		LocationID: locationID,
		Zone:       zones[h%uint32(len(zones))],
		Region:     regions[h%uint32(len(regions))],
	}
}

func stableHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func classify(p events.ProcessedEvent, item events.ItemDetails) events.Classification {
	return events.Classification{
		EventType:      p.EventType,
		VolumeCategory: volumeCategory(p.QuantityAbs),
		ValueCategory:  valueCategory(p.TotalValue),
		Urgency:        urgency(item, p.Action),
	}
}

func volumeCategory(qty float64) string {
	switch {
	case qty < 10:
		return "low"
	case qty < 100:
		return "medium"
	case qty < 1000:
		return "high"
	default:
		return "bulk"
	}
}

func valueCategory(totalValue *float64) string {
	if totalValue == nil {
		return "unknown"
	}
	v := *totalValue
	switch {
	case v < 100:
		return "low"
	case v < 1000:
		return "medium"
	case v < 10000:
		return "high"
	default:
		return "critical"
	}
}

func urgency(item events.ItemDetails, action events.Action) string {
	if item.Perishable || item.HighValue {
		return "high"
	}
	if action == events.ActionStockOut {
		return "medium"
	}
	return "low"
}

func assessRisk(p events.ProcessedEvent, c events.Classification, item events.ItemDetails) events.RiskAssessment {
	score := 0
	var factors []string

	if item.HighValue {
		score += 3
		factors = append(factors, "high_value_item")
	}
	if c.VolumeCategory == "bulk" {
		score += 2
		factors = append(factors, "bulk_transaction")
	}
	if !p.BusinessContext.IsBusinessHours {
		score += 1
		factors = append(factors, "after_hours")
	}
	if item.Perishable {
		score += 1
		factors = append(factors, "perishable_item")
	}

	var level string
	switch {
	case score >= 5:
		level = "high"
	case score >= 3:
		level = "medium"
	default:
		level = "low"
	}

	return events.RiskAssessment{Score: score, Level: level, Factors: factors}
}

func seasonalContext(t time.Time, category string) events.SeasonalContext {
	month := int(t.Month())
	var season string
	switch {
	case month == 12 || month <= 2:
		season = "winter"
	case month <= 5:
		season = "spring"
	case month <= 8:
		season = "summer"
	default:
		season = "fall"
	}

	demand := "normal"
	if (season == "winter" && category == "Clothing") || (season == "summer" && category == "Electronics") {
		demand = "high"
	}

	return events.SeasonalContext{Season: season, Month: month, SeasonalDemand: demand}
}
