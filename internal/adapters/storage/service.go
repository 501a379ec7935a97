// Package storage provides S3-compatible object storage for job evidence:
// verification photos and videos, part photos and receipts. Every key lives
// under jobs/<jobId>/<purpose>/ so ownership can be checked from the key alone.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresignedURL is a time-limited upload target.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Object is a downloaded object with its stored content type.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Purpose names the folder an upload lands in under its job.
type Purpose string

const (
	PurposeEvidence Purpose = "evidence"
	PurposePart     Purpose = "parts"
	PurposeReceipt  Purpose = "receipts"
)

// Purposes lists every accepted purpose.
var Purposes = []Purpose{PurposeEvidence, PurposePart, PurposeReceipt}

func ParsePurpose(raw string) (Purpose, error) {
	p := Purpose(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Purposes {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown upload purpose %q", raw)
}

// Config is the slice of platform config the MinIO client reads.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}

func JobFolder(jobID uuid.UUID, purpose Purpose) string {
	return "jobs/" + jobID.String() + "/" + string(purpose)
}

// KeyBelongsToJob reports whether key was issued under the job's folder.
func KeyBelongsToJob(key string, jobID uuid.UUID) bool {
	return strings.HasPrefix(key, "jobs/"+jobID.String()+"/") && !strings.Contains(key, "..")
}
