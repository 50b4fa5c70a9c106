package documents

import (
	"context"

	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/models"
)

// DocumentStore persists document records. Only the upload, resend and
// review paths write through it.
type DocumentStore interface {
	// UpsertDocument creates the record for (driver, type, side) or replaces
	// the non-deleted one in place. It fills ID and timestamps on doc and
	// reports whether an existing record was replaced.
	UpsertDocument(ctx context.Context, doc *Document) (bool, error)
	GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error)
	ListDriverDocuments(ctx context.Context, driverID uuid.UUID) ([]*Document, error)
	ListDriverDocumentsForVehicle(ctx context.Context, driverID uuid.UUID, vehicleType string) ([]*Document, error)
	ResetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error)
	UpdateReview(ctx context.Context, documentID uuid.UUID, status DocumentStatus, remarks string, reviewedBy *uuid.UUID) (*Document, error)
	ListPendingDocuments(ctx context.Context, limit, offset int) ([]*Document, int64, error)
}

// DriverDirectory reads driver profiles and holds the verification
// aggregate. UpdateVerification is reserved for the aggregator.
type DriverDirectory interface {
	GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	GetDriverByUserID(ctx context.Context, userID uuid.UUID) (*models.Driver, error)
	UpdateVerification(ctx context.Context, driverID uuid.UUID, status DocumentStatus, isVerified bool) error
	SetVehicleType(ctx context.Context, driverID uuid.UUID, vehicleType string) error
}

// RepositoryInterface is implemented by the postgres repository.
type RepositoryInterface interface {
	DocumentStore
	DriverDirectory
}

// Notifier delivers review outcomes to drivers. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, driver *models.Driver, n *models.Notification) error
}
