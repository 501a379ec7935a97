package pricing

import "math"

type cleanPrices struct {
	standard int64
	deep     int64
	moveOut  int64
}

type roomKey struct {
	beds  int
	baths int
}

// Whole-dollar base prices by bedrooms and bathrooms.
var cleaningMatrix = map[roomKey]cleanPrices{
	{1, 1}: {99, 149, 179},
	{2, 1}: {129, 189, 229},
	{2, 2}: {149, 219, 259},
	{3, 2}: {179, 269, 319},
	{3, 3}: {209, 309, 369},
	{4, 2}: {229, 339, 399},
	{4, 3}: {259, 389, 459},
	{5, 3}: {299, 449, 529},
	{5, 4}: {299, 449, 529},
}

const (
	petSurchargeDollars     = 25
	sameDaySurchargeDollars = 30
	largeHomeSqft           = 3000
)

type cleaningPricer struct{}

func (cleaningPricer) Price(p Params) (int64, error) {
	beds := clampInt(p.Int("bedrooms", 2), 1, 5)
	baths := p.Float("bathrooms", 2)
	prices := lookupCleaningRow(beds, baths)

	var base int64
	switch p.String("cleanType", "standard") {
	case "deep":
		base = prices.deep
	case "move_out", "moveout", "move-out":
		base = prices.moveOut
	default:
		base = prices.standard
	}

	multiplier := 1.0
	switch stories := p.Int("stories", 1); {
	case stories >= 3:
		multiplier *= 1.25
	case stories == 2:
		multiplier *= 1.15
	}
	if p.Float("sqft", 0) >= largeHomeSqft {
		multiplier *= 1.10
	}
	switch p.String("lastCleaned", "30_days") {
	case "6_plus_months", "never":
		multiplier *= 1.20
	}

	dollars := int64(math.Round(float64(base) * multiplier))
	if p.Bool("hasPets") {
		dollars += petSurchargeDollars
	}
	if p.Bool("sameDay") {
		dollars += sameDaySurchargeDollars
	}
	return dollars * 100, nil
}

// lookupCleaningRow tries the rounded bath count, then the next whole count up,
// then the nearest listed bath count for the bedroom count, then the 2x2 row.
func lookupCleaningRow(beds int, baths float64) cleanPrices {
	if row, ok := cleaningMatrix[roomKey{beds, int(math.Round(baths))}]; ok {
		return row
	}
	if row, ok := cleaningMatrix[roomKey{beds, int(math.Ceil(baths))}]; ok {
		return row
	}
	var best cleanPrices
	bestBaths, bestDist := 0, math.MaxFloat64
	for key, row := range cleaningMatrix {
		if key.beds != beds {
			continue
		}
		dist := math.Abs(float64(key.baths) - baths)
		if dist < bestDist || (dist == bestDist && key.baths < bestBaths) {
			best, bestBaths, bestDist = row, key.baths, dist
		}
	}
	if bestBaths > 0 {
		return best
	}
	return cleaningMatrix[roomKey{2, 2}]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
