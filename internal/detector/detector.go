// Package detector implements the Anomaly Detector (C4): statistical
// and domain-rule checks over a bounded sliding sample window,
// returning the single highest-confidence result per event.
package detector

import (
	"sync"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/pkg/datastructures/deque"
)

const (
	// W is the default sample window size (§4.4).
	defaultWindowSize = 1000
	zThreshold        = 3.0
	minSamples        = 5
)

// Detector runs the C4 detector chain over a count-bounded FIFO
// sample window of recent EnrichedEvents.
type Detector struct {
	mu       sync.Mutex
	window   *deque.Deque[sample]
	size     int
	maxSize  int
	baseline StockBaselineProvider
}

// New builds a Detector with the given bounded window size (0 uses
// the spec default of 1000) and baseline provider (nil uses the
// documented hash stand-in).
func New(windowSize int, baseline StockBaselineProvider) *Detector {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	if baseline == nil {
		baseline = HashBaselineProvider{}
	}
	return &Detector{
		window:   deque.New[sample](windowSize),
		maxSize:  windowSize,
		baseline: baseline,
	}
}

// Detect runs every check in §4.4's fixed order and returns the
// single result with the highest confidence, tie-broken by severity
// then detector order. The event is then appended to the window.
func (d *Detector) Detect(e *events.EnrichedEvent) events.AnomalyResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.window.Snapshot()
	s := newSample(e)

	candidates := []events.AnomalyResult{
		volumeAnomaly(snap, s),
		timeBasedAnomaly(snap, s),
		frequencyAnomaly(snap, s),
		negativeStockRisk(snap, s, d.baseline),
		rapidDepletion(snap, s, d.baseline),
		unusualLocation(snap, s),
		highValueRiskCombination(snap, s, e),
		supplierPattern(snap, s),
	}

	best := pickBest(candidates)

	d.appendLocked(s)

	return best
}

func (d *Detector) appendLocked(s sample) {
	if d.window.Len() >= d.maxSize {
		d.window.PopFront()
	}
	d.window.PushBack(s)
}

func newSample(e *events.EnrichedEvent) sample {
	var signed float64
	if e.RawEvent.Quantity != nil {
		signed = e.QuantityNormalized
	}
	return sample{
		t:              e.TimestampParsed,
		patternKey:     e.PatternKey(),
		action:         e.NormalizedAction,
		itemID:         e.ItemID,
		locationID:     e.LocationID,
		supplier:       e.ItemDetails.Supplier,
		quantityAbs:    e.QuantityAbs,
		quantitySigned: signed,
		afterHours:     !e.BusinessContext.IsBusinessHours,
		isWeekend:      e.BusinessContext.IsWeekend,
	}
}

// pickBest implements §4.4's tie-break: highest confidence first,
// then severity high>medium>low, then detector declaration order
// (candidates is already in that order, so a stable max scan suffices).
func pickBest(candidates []events.AnomalyResult) events.AnomalyResult {
	var best events.AnomalyResult
	bestRank := -1
	for _, c := range candidates {
		if !c.IsAnomaly {
			continue
		}
		rank := severityOrder(c.Severity)
		if c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && rank > bestRank) {
			best = c
			bestRank = rank
		}
	}
	return best
}

func severityOrder(s string) int {
	switch s {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}

func noAnomaly() events.AnomalyResult {
	return events.AnomalyResult{IsAnomaly: false, Details: map[string]any{}}
}

func sinceHour(snap []sample, now time.Time) []sample {
	cutoff := now.Add(-time.Hour)
	out := make([]sample, 0, len(snap))
	for _, s := range snap {
		if !s.t.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
