package numerator

import (
	"fmt"
	"time"
)

// Strategy selects how numbers are drawn from the sequence table.
type Strategy int

const (
	// StrategyStrict takes one number per round trip and leaves no gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves RangeSize numbers at once; a restart leaves a gap.
	StrategyCached
)

// Period is the interval after which a sequence starts again at 1.
type Period string

const (
	ResetYearly  Period = "year"
	ResetMonthly Period = "month"
	ResetNever   Period = "never"
)

// Number prefixes of the ledger documents.
const (
	PrefixMovement     = "MV"
	PrefixGoodsReceipt = "GRN"
	PrefixCycleCount   = "CC"
	PrefixTransfer     = "TR"
	PrefixReservation  = "RS"
)

// Config describes one numbered series.
type Config struct {
	Prefix string

	// IncludeYear renders PREFIX-2026-00001 instead of PREFIX-00001.
	IncludeYear bool

	// PadWidth is the minimum digit count; zero means 5.
	PadWidth int

	Reset Period

	Strategy Strategy

	// RangeSize applies to StrategyCached; zero means 50.
	RangeSize int64
}

// DocumentConfig numbers a document series per year: GRN-2026-00001.
func DocumentConfig(prefix string) Config {
	return Config{Prefix: prefix, IncludeYear: true, PadWidth: 5, Reset: ResetYearly}
}

// MovementConfig numbers movements with six digits per year.
func MovementConfig() Config {
	cfg := DocumentConfig(PrefixMovement)
	cfg.PadWidth = 6
	return cfg
}

// CodeConfig numbers catalog codes without a year: WH-00001.
func CodeConfig(prefix string) Config {
	return Config{Prefix: prefix, PadWidth: 5, Reset: ResetNever}
}

// Format renders number num of the series cfg within the period of at.
func (c Config) Format(at time.Time, num int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = 5
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%04d-%0*d", c.Prefix, at.Year(), width, num)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, num)
}

// Key names the sequence row of the series for the period of at.
func (c Config) Key(at time.Time) string {
	switch c.Reset {
	case ResetMonthly:
		return fmt.Sprintf("%s_%s", c.Prefix, at.Format("2006_01"))
	case ResetYearly:
		return fmt.Sprintf("%s_%04d", c.Prefix, at.Year())
	default:
		return c.Prefix
	}
}
