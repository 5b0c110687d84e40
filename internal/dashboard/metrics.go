package dashboard

import (
	"sync"

	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"
)

// MetricsAggregator derives summary statistics from inventory snapshots.
// It recomputes on every update rather than incrementally: snapshots are
// small and whole-value replacement keeps it tear-free.
type MetricsAggregator struct {
	mu      sync.Mutex
	current pkg.InventoryMetrics
}

func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{}
}

// Update recomputes the totals from a fresh snapshot.  An item with no price
// contributes zero.
func (a *MetricsAggregator) Update(items []pkg.InventoryItem) {
	var total float64
	for _, it := range items {
		total += float64(it.Stock) * it.Price
	}
	a.mu.Lock()
	a.current = pkg.InventoryMetrics{TotalInventoryValue: total}
	a.mu.Unlock()
}

// Current returns the latest derived metrics.
func (a *MetricsAggregator) Current() pkg.InventoryMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
