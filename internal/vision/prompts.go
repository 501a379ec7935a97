package vision

import (
	"fmt"
	"strings"
)

const analyzerInstruction = `You are a field-service scope estimator. You receive photos or short videos a
service professional captured on arrival at a job. Determine the actual scope of work.

Rules:
- Only report what is visible. Never invent rooms, surfaces or items you cannot see.
- Report confidence between 0 and 1. Use a value below 0.6 when the media is blurry,
  partial or does not show the whole scope.
- Always finish by calling the SaveScopeAnalysis tool exactly once.`

var paramGuides = map[string]string{
	"home_cleaning": `detectedParams keys:
  bedrooms (integer 1-5), bathrooms (number, halves allowed), stories (integer),
  sqft (number), cleanType ("standard", "deep" or "move_out"), hasPets (boolean)`,
	"pressure_washing": `detectedParams keys:
  totalSqft (number, total surface to wash in square feet)`,
	"junk_removal": `detectedParams keys:
  loadSize ("minimum", "small", "medium", "large", "extra_large" or "full")`,
}

func buildPrompt(serviceType string, mediaCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service type: %s\n", serviceType)
	fmt.Fprintf(&b, "Media items attached: %d\n\n", mediaCount)
	if guide, ok := paramGuides[serviceType]; ok {
		b.WriteString(guide)
	} else {
		b.WriteString("detectedParams keys: describe the measurable scope with camelCase keys.")
	}
	b.WriteString("\n\nAnalyze all media, then call SaveScopeAnalysis.")
	return b.String()
}

const retryPrompt = "You MUST call the SaveScopeAnalysis tool now with your complete analysis."
