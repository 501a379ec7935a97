package pricing

import "fmt"

var junkLoadDollars = map[string]int64{
	"minimum":     99,
	"small":       149,
	"medium":      199,
	"large":       299,
	"extra_large": 399,
	"full":        449,
}

type junkRemovalPricer struct{}

func (junkRemovalPricer) Price(p Params) (int64, error) {
	size := p.String("loadSize", "medium")
	dollars, ok := junkLoadDollars[size]
	if !ok {
		return 0, fmt.Errorf("%w: unknown load size %q", errUnpriceable, size)
	}
	return dollars * 100, nil
}
