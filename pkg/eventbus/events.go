package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSubmittedData is emitted after an upload creates or replaces a record.
type DocumentSubmittedData struct {
	DocumentID  uuid.UUID `json:"document_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	DocType     string    `json:"doc_type"`
	Side        string    `json:"side"`
	VehicleType string    `json:"vehicle_type"`
	Replaced    bool      `json:"replaced"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DocumentReviewedData is emitted after an admin sets a document status.
type DocumentReviewedData struct {
	DocumentID uuid.UUID  `json:"document_id"`
	DriverID   uuid.UUID  `json:"driver_id"`
	DocType    string     `json:"doc_type"`
	Side       string     `json:"side"`
	Status     string     `json:"status"`
	Remarks    string     `json:"remarks,omitempty"`
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt time.Time  `json:"reviewed_at"`
}

// DocumentResentData is emitted when a driver resets a document to pending.
type DocumentResentData struct {
	DocumentID uuid.UUID `json:"document_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	DocType    string    `json:"doc_type"`
	Side       string    `json:"side"`
	ResentAt   time.Time `json:"resent_at"`
}

// VerificationChangedData is emitted when a driver's aggregate status changes.
type VerificationChangedData struct {
	DriverID       uuid.UUID `json:"driver_id"`
	VehicleType    string    `json:"vehicle_type"`
	PreviousStatus string    `json:"previous_status"`
	DocumentStatus string    `json:"document_status"`
	IsVerified     bool      `json:"is_verified"`
	ChangedAt      time.Time `json:"changed_at"`
}

// VerificationRecomputeData asks the repair consumer to re-run aggregation
// for a driver whose aggregate write failed.
type VerificationRecomputeData struct {
	DriverID    uuid.UUID `json:"driver_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
