package cycle_count

import "stockledger/internal/core/numerator"

// EntityType names cycle counts in audit entries and events.
const EntityType = "cycle_count"

// NumberConfig numbers cycle counts as CC-YYYY-NNNNN.
func NumberConfig() numerator.Config {
	return numerator.DocumentConfig(numerator.PrefixCycleCount)
}

// adjustmentKey is the idempotency key of the adjustment posted for one item.
func adjustmentKey(countID, productID string) string {
	return "cc:" + countID + ":" + productID
}
