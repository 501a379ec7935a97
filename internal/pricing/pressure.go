package pricing

import "math"

const (
	pressureRatePerSqft    = 0.25
	pressureMinimumDollars = 150
)

type pressureWashingPricer struct{}

func (pressureWashingPricer) Price(p Params) (int64, error) {
	sqft := p.Float("totalSqft", 0)
	if sqft < 0 {
		return 0, errNegativeArea
	}
	dollars := math.Max(sqft*pressureRatePerSqft, pressureMinimumDollars)
	if dollars*100 > MaxPriceCents {
		return 0, errScopeTooLarge
	}
	return int64(math.Round(dollars)) * 100, nil
}
