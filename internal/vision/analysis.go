// Package vision estimates job scope parameters from uploaded photos and videos.
package vision

import (
	"errors"
	"math"
	"strings"
)

// Analysis is the scope detected from job evidence.
type Analysis struct {
	DetectedParams      map[string]any `json:"detectedParams"`
	SuggestedPriceCents *int64         `json:"suggestedPriceCents,omitempty"`
	Confidence          float64        `json:"confidence"`
	Reasoning           string         `json:"reasoning"`
	MediaCount          int            `json:"mediaCount"`
}

var (
	// ErrNoMedia is returned when Analyze is called without usable media.
	ErrNoMedia = errors.New("no analyzable media provided")
	// ErrNoResult is returned when the model never saved an analysis.
	ErrNoResult = errors.New("model did not save a scope analysis")
)

// SaveScopeAnalysisInput is the argument of the SaveScopeAnalysis tool.
type SaveScopeAnalysisInput struct {
	DetectedParams      map[string]any `json:"detectedParams" description:"Scope parameters detected on site, keyed as listed in the instructions"`
	SuggestedPriceCents *int64         `json:"suggestedPriceCents,omitempty" description:"Optional suggested price in cents"`
	Confidence          float64        `json:"confidence" description:"Confidence in the detected parameters, between 0 and 1"`
	Reasoning           string         `json:"reasoning" description:"Short explanation of what the media shows"`
}

// SaveScopeAnalysisOutput acknowledges a saved analysis.
type SaveScopeAnalysisOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toAnalysis(in SaveScopeAnalysisInput, mediaCount int) Analysis {
	out := Analysis{
		DetectedParams: normalizeParams(in.DetectedParams),
		Confidence:     clampConfidence(in.Confidence),
		Reasoning:      strings.TrimSpace(in.Reasoning),
		MediaCount:     mediaCount,
	}
	if in.SuggestedPriceCents != nil && *in.SuggestedPriceCents > 0 {
		v := *in.SuggestedPriceCents
		out.SuggestedPriceCents = &v
	}
	return out
}

// normalizeParams converts snake_case keys to camelCase and drops empty values.
func normalizeParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		key := camelCase(strings.TrimSpace(k))
		if key == "" || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v = strings.ToLower(s)
		}
		out[key] = v
	}
	return out
}

func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for i, r := range s {
		switch {
		case r == '_' || r == ' ' || r == '-':
			upper = b.Len() > 0
			continue
		case i == 0 && r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		case upper && r >= 'a' && r <= 'z':
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	// Some models answer in percent.
	if c > 1 && c <= 100 {
		c /= 100
	}
	return math.Min(c, 1)
}
