// Package uploads issues presigned object storage URLs for job evidence,
// part photos and receipts.
package uploads

import (
	"context"
	"fmt"
	"strings"

	"jobflow_backend/internal/adapters/storage"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/reqctx"

	"github.com/google/uuid"
)

const (
	msgNotParticipant    = "only the job's pro, customer or payer can upload files"
	msgNotAssignedPro    = "only the assigned pro can upload evidence and part photos"
	msgBadSize           = "file size is not allowed"
	msgContentNotAllowed = "content type is not allowed"
)

// Presigner is the slice of the storage service the uploads flow needs.
type Presigner interface {
	GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*storage.PresignedURL, error)
}

// PresignRequest is the body of POST /uploads/presign.
type PresignRequest struct {
	JobID       uuid.UUID `json:"jobId" validate:"required"`
	Purpose     string    `json:"purpose" validate:"required,upload_purpose"`
	FileName    string    `json:"fileName" validate:"required,max=255"`
	ContentType string    `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64     `json:"sizeBytes" validate:"required,gt=0"`
}

// PresignResponse tells the client where to PUT the file and which key to
// send back with the verification or parts request.
type PresignResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Service authorises uploads against the job and presigns them.
type Service struct {
	storage  Presigner
	jobs     jobsrepo.Reader
	bucket   string
	maxBytes int64
}

// NewService creates the uploads service. maxBytes <= 0 disables the size cap.
func NewService(presigner Presigner, jobs jobsrepo.Reader, bucket string, maxBytes int64) *Service {
	return &Service{storage: presigner, jobs: jobs, bucket: bucket, maxBytes: maxBytes}
}

// Presign returns an upload URL under jobs/<jobId>/<purpose>/.
func (s *Service) Presign(ctx context.Context, rc reqctx.RequestContext, req PresignRequest) (PresignResponse, error) {
	purpose, err := storage.ParsePurpose(req.Purpose)
	if err != nil {
		return PresignResponse{}, apperr.Validation(err.Error())
	}
	if err := storage.CheckContentType(purpose, req.ContentType); err != nil {
		return PresignResponse{}, apperr.Validation(msgContentNotAllowed).WithDetails(map[string]string{"contentType": err.Error()})
	}
	if err := storage.CheckSize(req.SizeBytes, s.maxBytes); err != nil {
		return PresignResponse{}, apperr.Validation(msgBadSize).WithDetails(map[string]string{"sizeBytes": err.Error()})
	}

	if err := s.authorize(ctx, rc, req.JobID, purpose); err != nil {
		return PresignResponse{}, err
	}

	presigned, err := s.storage.GenerateUploadURL(
		ctx,
		s.bucket,
		storage.JobFolder(req.JobID, purpose),
		strings.TrimSpace(req.FileName),
		req.ContentType,
		req.SizeBytes,
	)
	if err != nil {
		return PresignResponse{}, fmt.Errorf("presign upload: %w", err)
	}

	return PresignResponse{
		UploadURL: presigned.URL,
		FileKey:   presigned.FileKey,
		ExpiresAt: presigned.ExpiresAt.Unix(),
	}, nil
}

// Evidence and part photos come from the pro on site; receipts may also be
// attached by whoever pays for the parts.
func (s *Service) authorize(ctx context.Context, rc reqctx.RequestContext, jobID uuid.UUID, purpose storage.Purpose) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if rc.IsAdmin() || job.IsAssignedPro(rc.UserID) {
		return nil
	}
	if purpose != storage.PurposeReceipt {
		return apperr.Forbidden(msgNotAssignedPro)
	}
	if job.IsCustomer(rc.UserID) {
		return nil
	}
	if job.BusinessAccountID != nil {
		member, err := s.jobs.IsBusinessMember(ctx, *job.BusinessAccountID, rc.UserID)
		if err != nil {
			return fmt.Errorf("check business membership: %w", err)
		}
		if member {
			return nil
		}
	}
	return apperr.Forbidden(msgNotParticipant)
}
