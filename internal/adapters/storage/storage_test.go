package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

func TestKeyBelongsToJob(t *testing.T) {
	jobID := uuid.New()
	key := uniqueKey(JobFolder(jobID, PurposeReceipt), "receipt.pdf")

	if !strings.HasPrefix(key, "jobs/"+jobID.String()+"/receipts/receipt_") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if !KeyBelongsToJob(key, jobID) {
		t.Fatal("expected key to belong to its job")
	}
	if KeyBelongsToJob(key, uuid.New()) {
		t.Fatal("expected key to be rejected for another job")
	}
	if KeyBelongsToJob("jobs/"+jobID.String()+"/../other/x.png", jobID) {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestUniqueKeyStripsDirectories(t *testing.T) {
	key := uniqueKey("jobs/x/evidence", "../../etc/passwd.png")
	if strings.Contains(key, "..") || !strings.HasPrefix(key, "jobs/x/evidence/passwd_") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestCheckContentTypeByPurpose(t *testing.T) {
	tests := []struct {
		purpose Purpose
		ct      string
		ok      bool
	}{
		{PurposeEvidence, "image/JPEG; charset=binary", true},
		{PurposeEvidence, "video/mp4", true},
		{PurposePart, "video/mp4", false},
		{PurposeReceipt, "application/pdf", true},
		{PurposeEvidence, "application/pdf", false},
		{PurposeReceipt, "application/x-msdownload", false},
	}
	for _, tt := range tests {
		err := CheckContentType(tt.purpose, tt.ct)
		if (err == nil) != tt.ok {
			t.Fatalf("%s %s: expected ok=%v, got %v", tt.purpose, tt.ct, tt.ok, err)
		}
	}
}

func TestCheckSize(t *testing.T) {
	if err := CheckSize(0, 10); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
	if err := CheckSize(11, 10); err == nil {
		t.Fatal("expected oversized file to be rejected")
	}
	if err := CheckSize(1<<30, 0); err != nil {
		t.Fatalf("expected no cap when max is 0: %v", err)
	}
}

func TestParsePurpose(t *testing.T) {
	if p, err := ParsePurpose(" Receipts "); err != nil || p != PurposeReceipt {
		t.Fatalf("unexpected purpose %q %v", p, err)
	}
	if _, err := ParsePurpose("avatar"); err == nil {
		t.Fatal("expected unknown purpose error")
	}
}

func TestObjectErrorMapsMissingKey(t *testing.T) {
	missing := objectError("stat", "jobs/x/evidence/a.jpg", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	if !errors.Is(missing, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", missing)
	}
	other := objectError("stat", "jobs/x/evidence/a.jpg", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403})
	if errors.Is(other, ErrObjectNotFound) {
		t.Fatalf("access denied must not look like a missing object: %v", other)
	}
}
