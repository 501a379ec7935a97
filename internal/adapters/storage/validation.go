package storage

import (
	"fmt"
	"strings"
)

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic"}
	videoTypes = []string{"video/mp4", "video/webm", "video/quicktime"}
)

// allowedTypes is keyed by purpose. Evidence may be photo or video, part
// photos are images, receipts are images or PDFs.
var allowedTypes = map[Purpose]map[string]bool{
	PurposeEvidence: setOf(imageTypes, videoTypes),
	PurposePart:     setOf(imageTypes),
	PurposeReceipt:  setOf(imageTypes, []string{"application/pdf"}),
}

func setOf(groups ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, g := range groups {
		for _, v := range g {
			out[v] = true
		}
	}
	return out
}

// CheckContentType rejects content types the purpose does not accept.
func CheckContentType(purpose Purpose, contentType string) error {
	if !allowedTypes[purpose][NormalizeContentType(contentType)] {
		return fmt.Errorf("content type %q is not allowed for %s", contentType, purpose)
	}
	return nil
}

// CheckSize rejects empty files and, when maxBytes > 0, files above it.
func CheckSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return fmt.Errorf("file size %d exceeds the %d byte limit", sizeBytes, maxBytes)
	}
	return nil
}

// NormalizeContentType strips parameters such as charset and lower-cases the type.
func NormalizeContentType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}
