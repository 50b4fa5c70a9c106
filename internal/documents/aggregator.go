package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/common"
)

// ErrAggregateWrite marks a failure to persist a computed aggregate. The
// triggering record write has already succeeded when this is returned.
var ErrAggregateWrite = errors.New("failed to persist verification aggregate")

// Aggregate derives a driver's document status from the required types and
// the driver's live documents for one vehicle type.
//
// Per type, rejected beats pending and pending beats approved; a type is
// approved only when every record for it is approved. A missing type counts
// as pending. The driver is approved only when every required type is
// approved, and rejected when any required type is rejected.
func Aggregate(required []string, docs []*Document) (DocumentStatus, Progress) {
	progress := Progress{
		Required: append([]string{}, required...),
		Missing:  []string{},
		Approved: []string{},
		Rejected: []string{},
		Pending:  []string{},
	}

	groups := make(map[string][]*Document, len(docs))
	for _, doc := range docs {
		if doc == nil || doc.Deleted {
			continue
		}
		groups[doc.DocType] = append(groups[doc.DocType], doc)
	}

	for _, docType := range required {
		group, ok := groups[docType]
		if !ok {
			progress.Missing = append(progress.Missing, docType)
			continue
		}
		switch classify(group) {
		case StatusRejected:
			progress.Rejected = append(progress.Rejected, docType)
		case StatusApproved:
			progress.Approved = append(progress.Approved, docType)
		default:
			progress.Pending = append(progress.Pending, docType)
		}
	}

	switch {
	case len(required) > 0 && len(progress.Approved) == len(required):
		return StatusApproved, progress
	case len(progress.Rejected) > 0:
		return StatusRejected, progress
	default:
		return StatusPending, progress
	}
}

func classify(group []*Document) DocumentStatus {
	pending := false
	for _, doc := range group {
		switch doc.Status {
		case StatusRejected:
			return StatusRejected
		case StatusApproved:
		default:
			pending = true
		}
	}
	if pending {
		return StatusPending
	}
	return StatusApproved
}

// Recomputation is the outcome of one aggregation pass.
type Recomputation struct {
	State            VerificationState
	Progress         Progress
	PreviousStatus   DocumentStatus
	PreviousVerified bool
	// Applied is false when the driver has no vehicle type or the vehicle
	// type has no requirements, in which case nothing was written.
	Applied bool
}

// Changed reports whether the pass wrote a different aggregate.
func (r *Recomputation) Changed() bool {
	return r.Applied &&
		(r.PreviousStatus != r.State.DocumentStatus || r.PreviousVerified != r.State.IsVerified)
}

// Aggregator recomputes and stores the driver verification aggregate. It is
// the only writer of document_status and is_verified.
type Aggregator struct {
	drivers   DriverDirectory
	documents DocumentStore
	catalog   *Catalog
}

// NewAggregator creates a new aggregator
func NewAggregator(drivers DriverDirectory, documents DocumentStore, catalog *Catalog) *Aggregator {
	return &Aggregator{drivers: drivers, documents: documents, catalog: catalog}
}

// Recompute reads the driver's current vehicle type and documents and writes
// the derived aggregate. It is idempotent for an unchanged document set.
//
// Read failures are returned as internal errors. Write failures wrap
// ErrAggregateWrite and carry the previously stored state in the result.
func (a *Aggregator) Recompute(ctx context.Context, driverID uuid.UUID) (*Recomputation, error) {
	driver, err := a.drivers.GetDriver(ctx, driverID)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, err
		}
		return nil, common.NewInternalError("failed to read driver for aggregation", err)
	}

	previous := DocumentStatus(driver.DocumentStatus)
	if !previous.Valid() {
		previous = StatusPending
	}
	vehicleType := normalizeTag(driver.VehicleType)
	result := &Recomputation{
		State: VerificationState{
			DriverID:       driver.ID,
			VehicleType:    vehicleType,
			DocumentStatus: previous,
			IsVerified:     driver.IsVerified,
		},
		PreviousStatus:   previous,
		PreviousVerified: driver.IsVerified,
	}

	required := a.catalog.RequiredTypes(vehicleType)
	if vehicleType == "" || len(required) == 0 {
		return result, nil
	}

	docs, err := a.documents.ListDriverDocumentsForVehicle(ctx, driverID, vehicleType)
	if err != nil {
		return nil, common.NewInternalError("failed to read documents for aggregation", err)
	}

	status, progress := Aggregate(required, docs)
	result.Progress = progress
	isVerified := status == StatusApproved

	if err := a.drivers.UpdateVerification(ctx, driverID, status, isVerified); err != nil {
		return result, fmt.Errorf("%w: %w", ErrAggregateWrite, err)
	}

	result.Applied = true
	result.State.DocumentStatus = status
	result.State.IsVerified = isVerified
	return result, nil
}

// Progress computes per-type progress without writing anything.
func (a *Aggregator) Progress(ctx context.Context, driver *VerificationState) (Progress, error) {
	required := a.catalog.RequiredTypes(driver.VehicleType)
	if driver.VehicleType == "" || len(required) == 0 {
		_, progress := Aggregate(required, nil)
		return progress, nil
	}
	docs, err := a.documents.ListDriverDocumentsForVehicle(ctx, driver.DriverID, driver.VehicleType)
	if err != nil {
		return Progress{}, common.NewInternalError("failed to read documents", err)
	}
	_, progress := Aggregate(required, docs)
	return progress, nil
}
