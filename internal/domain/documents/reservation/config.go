package reservation

import (
	"time"

	"stockledger/internal/core/numerator"
)

// EntityType names reservations in audit entries and events.
const EntityType = "reservation"

// DefaultExpiry is how long a reservation holds stock when no expiry is given.
const DefaultExpiry = 7 * 24 * time.Hour

// NumberConfig numbers reservations as RS-YYYY-NNNNN.
func NumberConfig() numerator.Config {
	return numerator.DocumentConfig(numerator.PrefixReservation)
}
