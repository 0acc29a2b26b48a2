package goods_receipt

import "stockledger/internal/core/numerator"

// EntityType names goods receipts in audit entries and events.
const EntityType = "grn"

// NumberConfig numbers goods receipts as GRN-YYYY-NNNNN.
func NumberConfig() numerator.Config {
	return numerator.DocumentConfig(numerator.PrefixGoodsReceipt)
}
