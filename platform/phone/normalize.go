// Package phone normalizes recipient numbers for the WhatsApp channel.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion applies when no region is configured.
const DefaultRegion = "US"

var ErrInvalid = errors.New("invalid phone number")

// Normalizer reads numbers written without a country code as belonging to
// its region.
type Normalizer struct {
	region string
}

func NewNormalizer(region string) Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return Normalizer{region: region}
}

// E164 returns input as +<country><number>, or ErrInvalid when it does not
// parse to a number that can exist.
func (n Normalizer) E164(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalid
	}
	region := n.region
	if region == "" {
		region = DefaultRegion
	}
	num, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalid
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
