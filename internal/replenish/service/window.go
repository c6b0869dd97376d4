// Package service implements the automatic replenishment engine: it scans
// critical items, resolves a supplier per item, and creates or merges one
// draft purchase order per supplier and deduplication window.
package service

import (
	"fmt"
	"time"
)

// WindowStart floors the given instant to the start of its deduplication
// window. Windows are aligned to the Unix epoch in UTC, so every run inside
// the same window computes the same start regardless of which replica runs
// or how far into the window it fires.
func WindowStart(now time.Time, window time.Duration) time.Time {
	windowMs := window.Milliseconds()
	startMs := (now.UnixMilli() / windowMs) * windowMs
	return time.UnixMilli(startMs).UTC()
}

// DedupeKey builds the identity of an automatic order: one order exists per
// organization, supplier and window. The key is what the unique index on
// purchase_orders enforces, so concurrent runs collapse onto the same order.
func DedupeKey(orgID, supplierID string, windowStart time.Time) string {
	return fmt.Sprintf("AUTO:%s:%s:%s", orgID, supplierID, windowStart.UTC().Format(time.RFC3339))
}

// ReplenishQuantity returns how many units to order for an item: enough to
// bring the balance back to the maximum, and never less than one even when
// the balance already sits at or above the maximum.
func ReplenishQuantity(balance, maxStock int) int {
	qty := maxStock - balance
	if qty < 1 {
		return 1
	}
	return qty
}
