package types

import "github.com/shopspring/decimal"

var (
	spotMakerFee  = decimal.NewFromFloat(0.001)
	usdmMakerFee  = decimal.NewFromFloat(0.0002)
	coinmMakerFee = decimal.NewFromFloat(0.0001)
)

// FeeRate returns the compiled-in rate for an exchange class and role.
// Spot taker intentionally equals spot maker; the asymmetry is a kept
// compatibility quirk.
func FeeRate(e Exchange, role FeeRole) decimal.Decimal {
	switch {
	case e.Linear():
		if role == FeeRoleTaker {
			return usdmMakerFee.Mul(decimal.NewFromInt(2))
		}
		return usdmMakerFee
	case e.Inverse():
		if role == FeeRoleTaker {
			return coinmMakerFee.Mul(decimal.NewFromInt(5))
		}
		return coinmMakerFee
	default:
		return spotMakerFee
	}
}
