// Package aggregator implements the Window Aggregator (C5): named
// sliding time windows plus running totals, distributions, and
// derived statistics over the stream of enriched events.
package aggregator

import (
	"sync"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/pkg/datastructures/heap"
	"github.com/warehouseops/pipeline/pkg/datastructures/set"
)

// windowSizes maps each named window to its length, fixed per §4.5.
var windowSizes = map[string]time.Duration{
	"1min":  time.Minute,
	"5min":  5 * time.Minute,
	"15min": 15 * time.Minute,
	"1hour": time.Hour,
}

const topItemsLimit = 10

// enrichedRecord is the scalar projection of an EnrichedEvent retained
// in the sliding windows, mirroring the detector's sample pattern:
// only what the aggregations read, not the full record.
type enrichedRecord struct {
	t          time.Time
	itemID     string
	locationID string
	action     string
	supplier   string
	quantity   float64
	totalValue *float64
	isAnomaly  bool
}

func project(e *events.EnrichedEvent) *enrichedRecord {
	r := &enrichedRecord{
		t:          e.TimestampParsed,
		itemID:     e.ItemID,
		locationID: e.LocationID,
		action:     string(e.Action),
		supplier:   e.ItemDetails.Supplier,
		quantity:   e.QuantityAbs,
		totalValue: e.TotalValue,
	}
	if e.Anomaly != nil {
		r.isAnomaly = e.Anomaly.IsAnomaly
	}
	return r
}

// Aggregator is the C5 Window Aggregator. Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	windows map[string]*timeWindow

	totalTransactions int64
	totalVolume       float64
	totalValue        float64
	itemCounts        map[string]int
	locationCounts    map[string]int
	actionCounts      map[string]int
	supplierCounts    map[string]int
}

// New builds an Aggregator with the fixed set of named windows.
func New() *Aggregator {
	a := &Aggregator{
		windows:        make(map[string]*timeWindow, len(windowSizes)),
		itemCounts:     make(map[string]int),
		locationCounts: make(map[string]int),
		actionCounts:   make(map[string]int),
		supplierCounts: make(map[string]int),
	}
	for name, size := range windowSizes {
		a.windows[name] = newTimeWindow(size)
	}
	return a
}

// RunningTotals is the cumulative, never-evicted view across all
// events seen by this Aggregator.
type RunningTotals struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalVolume       float64 `json:"total_volume"`
	TotalValue        float64 `json:"total_value"`
	UniqueItems       int     `json:"unique_items"`
	UniqueLocations   int     `json:"unique_locations"`
	UniqueSuppliers   int     `json:"unique_suppliers"`
}

// TopItem is one entry of the top-N-by-transaction-count ranking.
type TopItem struct {
	ItemID           string `json:"item_id"`
	TransactionCount int    `json:"transaction_count"`
}

// DistributionEntry is one key's share of a running total.
type DistributionEntry struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// VolumeMetrics is the 5-min-window volume read, with per-action
// breakdown and a trend label.
type VolumeMetrics struct {
	Overall  BasicStats             `json:"overall"`
	Percentiles Percentiles         `json:"percentiles"`
	ByAction map[string]BasicStats  `json:"by_action"`
	Trend    string                 `json:"trend"`
}

// HighValueTransactions summarizes the high-value-threshold read.
type HighValueTransactions struct {
	Count      int     `json:"count"`
	Threshold  float64 `json:"threshold"`
	Percentage float64 `json:"percentage"`
}

// ValueMetrics is the 5-min-window value read.
type ValueMetrics struct {
	Overall               BasicStats            `json:"overall"`
	Percentiles           Percentiles           `json:"percentiles"`
	HighValueTransactions HighValueTransactions `json:"high_value_transactions"`
	Trend                 string                `json:"trend"`
}

// ThroughputMetrics is the per-window rate read.
type ThroughputMetrics struct {
	TransactionsPerMinute float64 `json:"transactions_per_minute"`
	VolumePerMinute       float64 `json:"volume_per_minute"`
	TransactionCount      int     `json:"transaction_count"`
	TotalVolume           float64 `json:"total_volume"`
}

// DataCompleteness is the field-presence read over the 5-min window.
type DataCompleteness struct {
	ItemIDCompleteness     float64 `json:"item_id_completeness"`
	LocationCompleteness   float64 `json:"location_completeness"`
	QuantityValidity       float64 `json:"quantity_validity"`
}

// QualityMetrics is the 5-min-window data-quality read.
type QualityMetrics struct {
	DataCompleteness    DataCompleteness `json:"data_completeness"`
	AnomalyRate         float64          `json:"anomaly_rate"`
	OverallQualityScore float64          `json:"overall_quality_score"`
}

// WindowSummary is the per-named-window aggregate.
type WindowSummary struct {
	Window                     string                 `json:"window"`
	TimeRangeStart             *time.Time             `json:"time_range_start,omitempty"`
	TimeRangeEnd               *time.Time             `json:"time_range_end,omitempty"`
	TransactionCount           int                    `json:"transaction_count"`
	TotalVolume                float64                `json:"total_volume"`
	TotalValue                 float64                `json:"total_value"`
	AverageVolumePerTransaction float64               `json:"average_volume_per_transaction"`
	ActionDistribution         map[string]int         `json:"action_distribution"`
	UniqueItems                int                    `json:"unique_items"`
	UniqueLocations            int                    `json:"unique_locations"`
}

// Snapshot is the full emission produced per event, matching the
// source's aggregate() return shape.
type Snapshot struct {
	Timestamp            time.Time                `json:"timestamp"`
	RunningTotals         RunningTotals             `json:"running_totals"`
	TopItems              []TopItem                 `json:"top_items"`
	LocationDistribution  map[string]DistributionEntry `json:"location_distribution"`
	ActionDistribution    map[string]DistributionEntry `json:"action_distribution"`
	SupplierDistribution  map[string]DistributionEntry `json:"supplier_distribution"`
	VolumeMetrics         VolumeMetrics             `json:"volume_metrics"`
	ValueMetrics          ValueMetrics              `json:"value_metrics"`
	ThroughputMetrics     map[string]ThroughputMetrics `json:"throughput_metrics"`
	QualityMetrics        QualityMetrics            `json:"quality_metrics"`
	WindowMetrics         map[string]WindowSummary  `json:"window_metrics"`
}

// Add appends e to every named window and to the running totals, then
// returns a fresh Snapshot, matching the source's process_data+aggregate.
func (a *Aggregator) Add(e *events.EnrichedEvent) Snapshot {
	r := project(e)

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, w := range a.windows {
		w.add(r.t, r)
	}
	a.updateRunningTotals(r)

	return a.snapshotLocked(r.t)
}

// Snapshot computes the current aggregate read without admitting a new
// event, for periodic emission to aggregated.metrics (§4.5, §5).
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(time.Now().UTC())
}

func (a *Aggregator) updateRunningTotals(r *enrichedRecord) {
	a.totalTransactions++
	a.totalVolume += r.quantity
	if r.totalValue != nil {
		a.totalValue += *r.totalValue
	}
	if r.itemID != "" {
		a.itemCounts[r.itemID]++
	}
	if r.locationID != "" {
		a.locationCounts[r.locationID]++
	}
	if r.action != "" {
		a.actionCounts[r.action]++
	}
	if r.supplier != "" {
		a.supplierCounts[r.supplier]++
	}
}

func (a *Aggregator) snapshotLocked(ts time.Time) Snapshot {
	fiveMin := a.windows["5min"].data()

	windowMetrics := make(map[string]WindowSummary, len(a.windows))
	for name, w := range a.windows {
		windowMetrics[name] = summarizeWindow(name, w.data())
	}

	return Snapshot{
		Timestamp:            ts,
		RunningTotals:        a.runningTotals(),
		TopItems:             topItems(a.itemCounts, topItemsLimit),
		LocationDistribution: distribution(a.locationCounts, a.totalTransactions),
		ActionDistribution:   distribution(a.actionCounts, a.totalTransactions),
		SupplierDistribution: distribution(a.supplierCounts, a.totalTransactions),
		VolumeMetrics:        volumeMetrics(fiveMin),
		ValueMetrics:         valueMetrics(fiveMin),
		ThroughputMetrics:    a.throughputMetrics(),
		QualityMetrics:       qualityMetrics(fiveMin),
		WindowMetrics:        windowMetrics,
	}
}

func (a *Aggregator) runningTotals() RunningTotals {
	return RunningTotals{
		TotalTransactions: a.totalTransactions,
		TotalVolume:       a.totalVolume,
		TotalValue:        a.totalValue,
		UniqueItems:       len(a.itemCounts),
		UniqueLocations:   len(a.locationCounts),
		UniqueSuppliers:   len(a.supplierCounts),
	}
}

// topItems ranks counts by transaction count descending using a
// bounded min-heap of size n: entries that would not make the cut are
// evicted as soon as a larger one arrives, keeping the heap at size n.
func topItems(counts map[string]int, n int) []TopItem {
	h := heap.NewMinHeap[string]()
	for id, c := range counts {
		h.PushItem(id, float64(c))
		if h.Size() > n {
			h.PopItem()
		}
	}

	ranked := make([]TopItem, h.Size())
	for i := len(ranked) - 1; i >= 0; i-- {
		id, score, ok := h.PopItem()
		if !ok {
			break
		}
		ranked[i] = TopItem{ItemID: id, TransactionCount: int(score)}
	}
	return ranked
}

func distribution(counts map[string]int, total int64) map[string]DistributionEntry {
	if total == 0 {
		return map[string]DistributionEntry{}
	}
	out := make(map[string]DistributionEntry, len(counts))
	for k, c := range counts {
		out[k] = DistributionEntry{
			Count:      c,
			Percentage: (float64(c) / float64(total)) * 100,
		}
	}
	return out
}

func volumeMetrics(data []*enrichedRecord) VolumeMetrics {
	if len(data) == 0 {
		return VolumeMetrics{ByAction: map[string]BasicStats{}, Trend: "insufficient_data"}
	}

	volumes := make([]float64, len(data))
	byAction := map[string][]float64{}
	for i, r := range data {
		volumes[i] = r.quantity
		byAction[r.action] = append(byAction[r.action], r.quantity)
	}

	actionStats := make(map[string]BasicStats, len(byAction))
	for action, vs := range byAction {
		actionStats[action] = basicStats(vs)
	}

	return VolumeMetrics{
		Overall:     basicStats(volumes),
		Percentiles: percentiles(volumes),
		ByAction:    actionStats,
		Trend:       trendDirection(volumes),
	}
}

func valueMetrics(data []*enrichedRecord) ValueMetrics {
	var values []float64
	for _, r := range data {
		if r.totalValue != nil {
			values = append(values, *r.totalValue)
		}
	}
	if len(values) == 0 {
		return ValueMetrics{Trend: "insufficient_data"}
	}

	stats := basicStats(values)
	threshold := stats.Mean + 2*stats.Std
	var highValue int
	for _, v := range values {
		if v > threshold {
			highValue++
		}
	}

	return ValueMetrics{
		Overall:     stats,
		Percentiles: percentiles(values),
		HighValueTransactions: HighValueTransactions{
			Count:      highValue,
			Threshold:  threshold,
			Percentage: (float64(highValue) / float64(len(values))) * 100,
		},
		Trend: trendDirection(values),
	}
}

func (a *Aggregator) throughputMetrics() map[string]ThroughputMetrics {
	out := make(map[string]ThroughputMetrics, len(a.windows))
	for name, w := range a.windows {
		data := w.data()
		if len(data) == 0 {
			continue
		}
		minutes := windowSizes[name].Minutes()
		var volume float64
		for _, r := range data {
			volume += r.quantity
		}
		out[name] = ThroughputMetrics{
			TransactionsPerMinute: float64(len(data)) / minutes,
			VolumePerMinute:       volume / minutes,
			TransactionCount:      len(data),
			TotalVolume:           volume,
		}
	}
	return out
}

const (
	weightMissingItem     = 0.3
	weightMissingLocation = 0.2
	weightInvalidQuantity = 0.3
	weightAnomalies       = 0.2
)

func qualityMetrics(data []*enrichedRecord) QualityMetrics {
	total := len(data)
	if total == 0 {
		return QualityMetrics{OverallQualityScore: 100}
	}

	var missingItem, missingLocation, invalidQty, anomalies int
	for _, r := range data {
		if r.itemID == "" {
			missingItem++
		}
		if r.locationID == "" {
			missingLocation++
		}
		if r.quantity <= 0 {
			invalidQty++
		}
		if r.isAnomaly {
			anomalies++
		}
	}

	n := float64(total)
	score := 100.0
	score -= (float64(missingItem) / n) * 100 * weightMissingItem
	score -= (float64(missingLocation) / n) * 100 * weightMissingLocation
	score -= (float64(invalidQty) / n) * 100 * weightInvalidQuantity
	score -= (float64(anomalies) / n) * 100 * weightAnomalies
	if score < 0 {
		score = 0
	}

	return QualityMetrics{
		DataCompleteness: DataCompleteness{
			ItemIDCompleteness:   (float64(total-missingItem) / n) * 100,
			LocationCompleteness: (float64(total-missingLocation) / n) * 100,
			QuantityValidity:     (float64(total-invalidQty) / n) * 100,
		},
		AnomalyRate:         (float64(anomalies) / n) * 100,
		OverallQualityScore: score,
	}
}

func summarizeWindow(name string, data []*enrichedRecord) WindowSummary {
	if len(data) == 0 {
		return WindowSummary{Window: name, ActionDistribution: map[string]int{}}
	}

	actionCounts := map[string]int{}
	items := set.New[string]()
	locations := set.New[string]()

	var volume, value float64
	start, end := data[0].t, data[0].t
	for _, r := range data {
		actionCounts[r.action]++
		volume += r.quantity
		if r.totalValue != nil {
			value += *r.totalValue
		}
		if r.itemID != "" {
			items.Add(r.itemID)
		}
		if r.locationID != "" {
			locations.Add(r.locationID)
		}
		if r.t.Before(start) {
			start = r.t
		}
		if r.t.After(end) {
			end = r.t
		}
	}

	avgVolume := volume / float64(len(data))

	return WindowSummary{
		Window:                      name,
		TimeRangeStart:              &start,
		TimeRangeEnd:                &end,
		TransactionCount:            len(data),
		TotalVolume:                 volume,
		TotalValue:                  value,
		AverageVolumePerTransaction: avgVolume,
		ActionDistribution:          actionCounts,
		UniqueItems:                 items.Len(),
		UniqueLocations:             locations.Len(),
	}
}
