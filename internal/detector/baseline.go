package detector

import "hash/fnv"

// StockBaselineProvider supplies the current baseline stock level for
// an item, used by the negative-stock-risk and rapid-depletion checks
// to estimate "current stock" from the window's running signed sum
// plus this baseline. Per §9, real stock should come from the
// transactional backend; this interface is the injection point.
type StockBaselineProvider interface {
	BaselineStock(itemID string) float64
}

// HashBaselineProvider reproduces the source's placeholder formula
// verbatim: hash(item_id) % 1000 + 100. This is a documented stand-in,
// never authoritative — production wiring should inject a provider
// backed by the transactional stock ledger (out of scope here).
type HashBaselineProvider struct{}

func (HashBaselineProvider) BaselineStock(itemID string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(itemID))
	return float64(h.Sum32()%1000) + 100
}
