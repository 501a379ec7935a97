// Package pricing re-estimates a job's price from on-site evidence and decides
// whether the change may be applied without asking the customer.
//
// The engine is pure: it reads no clock, store or network.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"jobflow_backend/platform/apperr"
)

// ServiceType identifies which pricing variant applies to a job.
type ServiceType string

const (
	ServiceHomeCleaning    ServiceType = "home_cleaning"
	ServicePressureWashing ServiceType = "pressure_washing"
	ServiceJunkRemoval     ServiceType = "junk_removal"
)

// Method is how the evidence was captured.
type Method string

const (
	MethodPhoto Method = "photo"
	MethodVideo Method = "video"
)

const (
	// DefaultThresholdBps is the inclusive auto-approval band: 10%.
	DefaultThresholdBps int64 = 1000
	// LowConfidenceBelow flags evidence the analyzer was unsure about.
	LowConfidenceBelow = 0.6

	// MaxPriceCents caps any computed price at $1,000,000. Larger results
	// mean the evidence is wrong, not the job.
	MaxPriceCents = 100_000_000

	videoConfidenceBonus = 0.05
)

var (
	errUnpriceable   = errors.New("scope cannot be priced")
	errNegativeArea  = fmt.Errorf("%w: area must not be negative", errUnpriceable)
	errScopeTooLarge = fmt.Errorf("%w: price out of range", errUnpriceable)
)

// Pricer computes a price in cents from merged scope parameters.
type Pricer interface {
	Price(p Params) (int64, error)
}

// Quote is the price the customer originally agreed to and its inputs.
type Quote struct {
	FinalPriceCents int64
	Inputs          Params
}

// Evidence is what the pro captured on site.
type Evidence struct {
	ServiceType ServiceType
	Detected    Params
	Method      Method
	Confidence  float64
}

// Result is the engine's verdict.
type Result struct {
	VerifiedPriceCents       int64   `json:"verifiedPriceCents"`
	OriginalPriceCents       int64   `json:"originalPriceCents"`
	PriceDifferenceCents     int64   `json:"priceDifferenceCents"`
	PercentageDifference     float64 `json:"percentageDifference"`
	AutoApproved             bool    `json:"autoApproved"`
	RequiresCustomerApproval bool    `json:"requiresCustomerApproval"`
	DetectedParams           Params  `json:"detectedParams"`
	Confidence               float64 `json:"confidence"`
	LowConfidence            bool    `json:"lowConfidence"`
	Reason                   string  `json:"reason"`
}

// Engine holds the variant registry and the approval threshold.
type Engine struct {
	pricers      map[ServiceType]Pricer
	thresholdBps int64
}

// NewEngine builds an engine with the built-in variants. thresholdBps <= 0 uses the default.
func NewEngine(thresholdBps int64) *Engine {
	if thresholdBps <= 0 {
		thresholdBps = DefaultThresholdBps
	}
	e := &Engine{pricers: make(map[ServiceType]Pricer), thresholdBps: thresholdBps}
	e.Register(ServiceHomeCleaning, cleaningPricer{})
	e.Register(ServicePressureWashing, pressureWashingPricer{})
	e.Register(ServiceJunkRemoval, junkRemovalPricer{})
	return e
}

// Register adds or replaces the pricer for a service type.
func (e *Engine) Register(serviceType ServiceType, pricer Pricer) {
	e.pricers[serviceType] = pricer
}

// ThresholdPercent returns the configured band as a percentage.
func (e *Engine) ThresholdPercent() float64 {
	return float64(e.thresholdBps) / 100
}

// Supports reports whether a pricer is registered for the (normalized) service type.
func (e *Engine) Supports(serviceType string) bool {
	_, ok := e.pricers[NormalizeServiceType(serviceType)]
	return ok
}

// Verify prices the evidence and compares it with the quote.
//
// When the scope cannot be priced (unknown service type or unusable params)
// Verify returns an InvalidScope error together with a usable fallback Result
// that keeps the original price and is flagged low confidence.
func (e *Engine) Verify(quote Quote, ev Evidence) (Result, error) {
	if quote.FinalPriceCents <= 0 {
		return Result{}, apperr.Validation("original price must be greater than zero")
	}

	confidence := clamp01(ev.Confidence)
	if ev.Method == MethodVideo {
		confidence = math.Min(confidence+videoConfidenceBonus, 1.0)
	}
	merged := Merge(ev.Detected, quote.Inputs)

	pricer, ok := e.pricers[NormalizeServiceType(string(ev.ServiceType))]
	if !ok {
		return e.fallback(quote, merged, confidence),
			apperr.InvalidScope(fmt.Sprintf("no pricing rules for service type %q", ev.ServiceType))
	}

	verified, err := pricer.Price(merged)
	if err == nil && (verified < 0 || verified > MaxPriceCents) {
		err = errScopeTooLarge
	}
	if err != nil {
		if errors.Is(err, errUnpriceable) {
			return e.fallback(quote, merged, confidence), apperr.InvalidScope(err.Error())
		}
		return Result{}, err
	}

	return e.decide(quote.FinalPriceCents, verified, merged, confidence), nil
}

func (e *Engine) decide(original, verified int64, params Params, confidence float64) Result {
	diff := verified - original
	absDiff := diff
	if absDiff < 0 {
		absDiff = -absDiff
	}
	auto := withinBand(absDiff, original, e.thresholdBps)
	pct := math.Round(float64(absDiff)/float64(original)*100*100) / 100

	return Result{
		VerifiedPriceCents:       verified,
		OriginalPriceCents:       original,
		PriceDifferenceCents:     diff,
		PercentageDifference:     pct,
		AutoApproved:             auto,
		RequiresCustomerApproval: !auto,
		DetectedParams:           params,
		Confidence:               confidence,
		LowConfidence:            confidence < LowConfidenceBelow,
		Reason:                   e.reason(diff, pct, auto),
	}
}

// withinBand reports absDiff/original <= bps/10000, comparing the 128-bit
// products so no input can overflow into a false approval.
func withinBand(absDiff, original, bps int64) bool {
	if absDiff < 0 || original <= 0 || bps < 0 {
		return false
	}
	lhsHi, lhsLo := bits.Mul64(uint64(absDiff), 10000)
	rhsHi, rhsLo := bits.Mul64(uint64(original), uint64(bps))
	return lhsHi < rhsHi || (lhsHi == rhsHi && lhsLo <= rhsLo)
}

func (e *Engine) fallback(quote Quote, params Params, confidence float64) Result {
	return Result{
		VerifiedPriceCents: quote.FinalPriceCents,
		OriginalPriceCents: quote.FinalPriceCents,
		AutoApproved:       true,
		DetectedParams:     params,
		Confidence:         confidence,
		LowConfidence:      true,
		Reason:             "Scope could not be priced from the evidence. Original price kept.",
	}
}

func (e *Engine) reason(diff int64, pct float64, auto bool) string {
	threshold := e.ThresholdPercent()
	switch {
	case diff == 0:
		return "Price confirmed. No adjustment needed."
	case !auto && diff > 0:
		return fmt.Sprintf("Price increased by %.1f%% (exceeds %g%% threshold). Customer approval required.", pct, threshold)
	case !auto:
		return fmt.Sprintf("Price reduced by %.1f%% (exceeds %g%% threshold). Customer approval required.", pct, threshold)
	case diff < 0:
		return fmt.Sprintf("Price reduced by %s. Auto-approved.", FormatCents(-diff))
	default:
		return fmt.Sprintf("Price increased by %.1f%% (within %g%% threshold). Auto-approved.", pct, threshold)
	}
}

// NormalizeServiceType maps brand aliases onto the canonical service type.
func NormalizeServiceType(raw string) ServiceType {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "polishup", "cleaning", "home_cleaning":
		return ServiceHomeCleaning
	case "freshwash", "pressure_washing":
		return ServicePressureWashing
	case "bulksnap", "junk_removal":
		return ServiceJunkRemoval
	default:
		return ServiceType(s)
	}
}

// FormatCents renders cents as dollars, e.g. 1234 -> "$12.34".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
