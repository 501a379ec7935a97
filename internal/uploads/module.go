package uploads

import (
	"jobflow_backend/internal/adapters/storage"
	apphttp "jobflow_backend/internal/http"
	jobsrepo "jobflow_backend/internal/jobs/repository"
	"jobflow_backend/platform/validator"
)

// PurposeTag is the validator tag for upload purposes.
const PurposeTag = "upload_purpose"

// Module is the uploads module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the uploads module.
func NewModule(presigner Presigner, jobs jobsrepo.Reader, bucket string, maxBytes int64, val *validator.Validator) (*Module, error) {
	if err := RegisterValidations(val); err != nil {
		return nil, err
	}
	return &Module{handler: NewHandler(NewService(presigner, jobs, bucket, maxBytes), val)}, nil
}

// RegisterValidations adds the upload_purpose tag.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation(PurposeTag, validator.OneOf(
		string(storage.PurposeEvidence),
		string(storage.PurposePart),
		string(storage.PurposeReceipt),
	))
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "uploads"
}

// RegisterRoutes mounts upload routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/uploads/presign", m.handler.Presign)
}

var _ apphttp.Module = (*Module)(nil)
