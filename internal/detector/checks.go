package detector

import "github.com/warehouseops/pipeline/internal/events"

// volumeAnomaly: statistical z-score over historical quantity_abs
// among window entries sharing the pattern key (§4.4).
func volumeAnomaly(snap []sample, s sample) events.AnomalyResult {
	var hist []float64
	for _, e := range snap {
		if e.patternKey == s.patternKey {
			hist = append(hist, e.quantityAbs)
		}
	}
	if len(hist) < minSamples {
		return noAnomaly()
	}

	mu := mean(hist)
	sigma := stddev(hist, mu)
	z := zScore(s.quantityAbs, mu, sigma)
	if z <= zThreshold {
		return noAnomaly()
	}

	severity := "medium"
	if z > 5 {
		severity = "high"
	}
	return events.AnomalyResult{
		IsAnomaly: true, Confidence: clamp01(z / zThreshold),
		AnomalyType: "volume_anomaly", Severity: severity,
		Details: map[string]any{"z_score": z, "mean": mu, "stddev": sigma, "value": s.quantityAbs},
	}
}

// timeBasedAnomaly: event occurs after hours while historically same
// action events rarely do (§4.4).
func timeBasedAnomaly(snap []sample, s sample) events.AnomalyResult {
	if !s.afterHours {
		return noAnomaly()
	}

	var total, afterHours int
	for _, e := range snap {
		if e.action == s.action {
			total++
			if e.afterHours {
				afterHours++
			}
		}
	}
	if total == 0 {
		return noAnomaly()
	}
	frac := float64(afterHours) / float64(total)
	if frac >= 0.1 {
		return noAnomaly()
	}

	return events.AnomalyResult{
		IsAnomaly: true, Confidence: 0.7, AnomalyType: "time_based_anomaly", Severity: "medium",
		Details: map[string]any{"historical_after_hours_fraction": frac},
	}
}

// frequencyAnomaly: count of same-pattern events in the last hour
// compared to historical hourly counts via z-score (§4.4).
func frequencyAnomaly(snap []sample, s sample) events.AnomalyResult {
	lastHour := sinceHour(snap, s.t)

	var current int
	for _, e := range lastHour {
		if e.patternKey == s.patternKey {
			current++
		}
	}

	// Bucket the rest of the window into hourly counts for the same
	// pattern to build a historical distribution of hourly counts.
	buckets := map[int64]int{}
	for _, e := range snap {
		if e.patternKey != s.patternKey {
			continue
		}
		bucket := e.t.Unix() / 3600
		buckets[bucket]++
	}
	if len(buckets) < minSamples {
		return noAnomaly()
	}

	var hist []float64
	for _, c := range buckets {
		hist = append(hist, float64(c))
	}
	mu := mean(hist)
	sigma := stddev(hist, mu)
	z := zScore(float64(current), mu, sigma)
	if z <= zThreshold {
		return noAnomaly()
	}

	severity := "medium"
	if z > 5 {
		severity = "high"
	}
	return events.AnomalyResult{
		IsAnomaly: true, Confidence: clamp01(z / zThreshold),
		AnomalyType: "frequency_anomaly", Severity: severity,
		Details: map[string]any{"z_score": z, "current_hour_count": current},
	}
}

// negativeStockRisk: on stock_out, projected stock (baseline + running
// signed sum in window) would drop below -10 (§4.4).
func negativeStockRisk(snap []sample, s sample, baseline StockBaselineProvider) events.AnomalyResult {
	if s.action != events.NormalizedOutbound {
		return noAnomaly()
	}

	running := baseline.BaselineStock(s.itemID)
	for _, e := range snap {
		if e.itemID == s.itemID {
			running += e.quantitySigned
		}
	}
	projected := running + s.quantitySigned

	if projected >= -10 {
		return noAnomaly()
	}

	return events.AnomalyResult{
		IsAnomaly: true, Confidence: 0.9, AnomalyType: "negative_stock_risk", Severity: "high",
		Details: map[string]any{"projected_stock": projected},
	}
}

// rapidDepletion: on stock_out, total stock-out in the last hour for
// this item exceeds 80% of the estimated current stock (§4.4).
func rapidDepletion(snap []sample, s sample, baseline StockBaselineProvider) events.AnomalyResult {
	if s.action != events.NormalizedOutbound {
		return noAnomaly()
	}

	currentStock := baseline.BaselineStock(s.itemID)
	for _, e := range snap {
		if e.itemID == s.itemID {
			currentStock += e.quantitySigned
		}
	}
	if currentStock <= 0 {
		return noAnomaly()
	}

	lastHour := sinceHour(snap, s.t)
	var depleted float64
	for _, e := range lastHour {
		if e.itemID == s.itemID && e.action == events.NormalizedOutbound {
			depleted += e.quantityAbs
		}
	}
	depleted += s.quantityAbs

	ratio := depleted / currentStock
	if ratio <= 0.8 {
		return noAnomaly()
	}

	return events.AnomalyResult{
		IsAnomaly: true, Confidence: clamp01(ratio), AnomalyType: "rapid_depletion", Severity: "high",
		Details: map[string]any{"depletion_ratio": ratio},
	}
}

// unusualLocation: historical frequency of (item_id, location_id) in
// the window is below 5% (§4.4).
func unusualLocation(snap []sample, s sample) events.AnomalyResult {
	if s.itemID == "" || s.locationID == "" || len(snap) == 0 {
		return noAnomaly()
	}

	var itemTotal, combo int
	for _, e := range snap {
		if e.itemID != s.itemID {
			continue
		}
		itemTotal++
		if e.locationID == s.locationID {
			combo++
		}
	}
	if itemTotal == 0 {
		return noAnomaly()
	}
	freq := float64(combo) / float64(itemTotal)
	if freq >= 0.05 {
		return noAnomaly()
	}

	return events.AnomalyResult{
		IsAnomaly: true, Confidence: clamp01(1 - freq), AnomalyType: "unusual_location", Severity: "medium",
		Details: map[string]any{"historical_frequency": freq},
	}
}

// highValueRiskCombination: high-value item with at least two of
// {after_hours, bulk_transaction, unusual_location} (§4.4).
func highValueRiskCombination(snap []sample, s sample, e *events.EnrichedEvent) events.AnomalyResult {
	if !e.ItemDetails.HighValue {
		return noAnomaly()
	}

	count := 0
	if s.afterHours {
		count++
	}
	if e.Classification.VolumeCategory == "bulk" {
		count++
	}
	if unusualLocation(snap, s).IsAnomaly {
		count++
	}
	if count < 2 {
		return noAnomaly()
	}

	return events.AnomalyResult{
		IsAnomaly: true, Confidence: 0.8, AnomalyType: "high_value_risk_combination", Severity: "high",
		Details: map[string]any{"factor_count": count},
	}
}

// supplierPattern: on stock_in, weekend delivery when the last 10
// same-supplier deliveries show weekend frequency < 0.1 (§4.4).
func supplierPattern(snap []sample, s sample) events.AnomalyResult {
	if s.action != events.NormalizedInbound || s.supplier == "" {
		return noAnomaly()
	}
	if !s.isWeekend {
		return noAnomaly()
	}

	var supplierDeliveries []sample
	for i := len(snap) - 1; i >= 0 && len(supplierDeliveries) < 10; i-- {
		if snap[i].supplier == s.supplier && snap[i].action == events.NormalizedInbound {
			supplierDeliveries = append(supplierDeliveries, snap[i])
		}
	}
	if len(supplierDeliveries) < 10 {
		return noAnomaly()
	}

	var weekend int
	for _, d := range supplierDeliveries {
		if d.isWeekend {
			weekend++
		}
	}
	freq := float64(weekend) / float64(len(supplierDeliveries))
	if freq >= 0.1 {
		return noAnomaly()
	}

	return events.AnomalyResult{
		IsAnomaly: true, Confidence: 0.7, AnomalyType: "supplier_pattern", Severity: "low",
		Details: map[string]any{"weekend_frequency": freq},
	}
}
