package transfer

import "stockledger/internal/core/numerator"

// EntityType names transfers in audit entries and events.
const EntityType = "transfer"

// NumberConfig numbers transfers as TR-YYYY-NNNNN.
func NumberConfig() numerator.Config {
	return numerator.DocumentConfig(numerator.PrefixTransfer)
}
