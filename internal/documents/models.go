package documents

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/common"
)

// DocumentStatus is the review state of a single document and of a driver's
// aggregate.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusRejected DocumentStatus = "rejected"
)

// statusAliases maps accepted spellings to the stored value.
var statusAliases = map[string]DocumentStatus{
	"pending":  StatusPending,
	"approved": StatusApproved,
	"verified": StatusApproved,
	"rejected": StatusRejected,
}

// ParseDocumentStatus normalizes caller input. "verified" is stored as
// approved.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", common.NewValidationError(fmt.Sprintf("invalid status %q: must be one of pending, approved, rejected", s))
	}
	return status, nil
}

// Valid reports whether s is one of the stored values.
func (s DocumentStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// DefaultSide is used when an upload does not name a side.
const DefaultSide = "front"

// Document is one submission of a document type and side for a driver.
type Document struct {
	ID            uuid.UUID              `json:"id"`
	DriverID      uuid.UUID              `json:"driver_id"`
	DocType       string                 `json:"doc_type"`
	Side          string                 `json:"side"`
	VehicleType   string                 `json:"vehicle_type"`
	Status        DocumentStatus         `json:"status"`
	Remarks       string                 `json:"remarks"`
	ExtractedData map[string]interface{} `json:"extracted_data,omitempty"`
	StorageRef    string                 `json:"-"`
	FileURL       string                 `json:"file_url,omitempty"`
	FileName      string                 `json:"file_name,omitempty"`
	ContentType   string                 `json:"content_type,omitempty"`
	FileSize      int64                  `json:"file_size,omitempty"`
	Deleted       bool                   `json:"-"`
	ReviewedBy    *uuid.UUID             `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// VerificationState is the aggregate owned by the driver profile.
type VerificationState struct {
	DriverID       uuid.UUID      `json:"driver_id"`
	VehicleType    string         `json:"vehicle_type"`
	DocumentStatus DocumentStatus `json:"document_status"`
	IsVerified     bool           `json:"is_verified"`
}

// Progress lists required document types by outcome. Missing types are also
// counted as pending by the aggregate.
type Progress struct {
	Required []string `json:"required"`
	Missing  []string `json:"missing"`
	Approved []string `json:"approved"`
	Rejected []string `json:"rejected"`
	Pending  []string `json:"pending"`
}

// SubmitRequest carries one upload through the pipeline.
type SubmitRequest struct {
	DriverID      uuid.UUID
	DocType       string
	Side          string
	VehicleType   string
	ExtractedData map[string]interface{}
	File          io.Reader
	FileName      string
	ContentType   string
	Size          int64
}

// ReviewRequest is an admin decision on one document.
type ReviewRequest struct {
	DocumentID uuid.UUID
	Status     string
	Remarks    string
	ReviewerID *uuid.UUID
}

// DocumentResult pairs a written record with the refreshed aggregate.
type DocumentResult struct {
	Document     *Document          `json:"document"`
	Verification *VerificationState `json:"verification"`
}

// DriverDocumentsResponse is the listForDriver result.
type DriverDocumentsResponse struct {
	Documents    []*Document        `json:"documents"`
	Verification *VerificationState `json:"verification"`
}

// VerificationStatusResponse adds per-type progress to the aggregate.
type VerificationStatusResponse struct {
	VerificationState
	Progress Progress `json:"progress"`
}

// RequirementsResponse lists the document types a vehicle type must supply.
type RequirementsResponse struct {
	VehicleType   string   `json:"vehicle_type"`
	RequiredTypes []string `json:"required_types"`
}

// DownloadURLResponse is a time-limited link to a stored file.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
