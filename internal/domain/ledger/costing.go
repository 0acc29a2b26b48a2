package ledger

import (
	"stockledger/internal/core/types"
)

// costScale is the number of fractional digits kept on an average cost.
const costScale = 4

// WeightedAverage returns (oldQty·oldAvg + inQty·inCost) / (oldQty + inQty).
// When the combined quantity is zero the incoming cost is returned.
func WeightedAverage(oldQty types.Quantity, oldAvg types.Money, inQty types.Quantity, inCost types.Money) types.Money {
	total := oldQty.Decimal().Add(inQty.Decimal())
	if total.IsZero() {
		return inCost
	}
	value := oldQty.Mul(oldAvg).Add(inQty.Mul(inCost))
	return value.DivRound(total, costScale)
}

// movementCost returns the unit cost a movement is valued at: the supplied cost
// when present, otherwise the running average.
func movementCost(req *RecordRequest, bal *Balance) (types.Money, bool) {
	if req.UnitCost != nil {
		return *req.UnitCost, true
	}
	return bal.AvgCostPrice, false
}

func totalCost(qty types.Quantity, unit types.Money) types.Money {
	return qty.Mul(unit).Round(2)
}
