package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/database"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/richxcame/driver-verification/pkg/tracing"
)

const tracerName = "documents"

const documentColumns = `id, driver_id, doc_type, side, vehicle_type, status, remarks, extracted_data,
		storage_ref, file_name, content_type, file_size, deleted, reviewed_by, reviewed_at,
		created_at, updated_at`

const driverColumns = `id, user_id, COALESCE(vehicle_type, ''), document_status, is_verified,
		COALESCE(phone_number, ''), fcm_token, created_at, updated_at`

// Repository handles database operations for documents and the driver
// verification aggregate.
type Repository struct {
	db database.Querier
}

// NewRepository creates a new documents repository
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	var extracted []byte
	if err := row.Scan(
		&doc.ID, &doc.DriverID, &doc.DocType, &doc.Side, &doc.VehicleType, &doc.Status,
		&doc.Remarks, &extracted, &doc.StorageRef, &doc.FileName, &doc.ContentType,
		&doc.FileSize, &doc.Deleted, &doc.ReviewedBy, &doc.ReviewedAt,
		&doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data: %w", err)
		}
	}
	return doc, nil
}

func scanDocuments(rows pgx.Rows) ([]*Document, error) {
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func encodeExtractedData(data map[string]interface{}) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted data: %w", err)
	}
	return b, nil
}

// ========================================
// DOCUMENTS
// ========================================

// UpsertDocument inserts a pending record or replaces the live record for the
// same (driver, type, side). The partial unique index makes concurrent
// uploads converge on one row.
func (r *Repository) UpsertDocument(ctx context.Context, doc *Document) (bool, error) {
	extracted, err := encodeExtractedData(doc.ExtractedData)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO driver_documents (
			id, driver_id, doc_type, side, vehicle_type, status, remarks, extracted_data,
			storage_ref, file_name, content_type, file_size
		) VALUES ($1, $2, $3, $4, $5, 'pending', '', $6, $7, $8, $9, $10)
		ON CONFLICT (driver_id, doc_type, side) WHERE NOT deleted
		DO UPDATE SET
			vehicle_type = EXCLUDED.vehicle_type,
			status = 'pending',
			remarks = '',
			extracted_data = EXCLUDED.extracted_data,
			storage_ref = EXCLUDED.storage_ref,
			file_name = EXCLUDED.file_name,
			content_type = EXCLUDED.content_type,
			file_size = EXCLUDED.file_size,
			reviewed_by = NULL,
			reviewed_at = NULL,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax <> 0) AS replaced
	`

	var replaced bool
	err = r.db.QueryRow(ctx, query,
		uuid.New(), doc.DriverID, doc.DocType, doc.Side, doc.VehicleType, extracted,
		doc.StorageRef, doc.FileName, doc.ContentType, doc.FileSize,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &replaced)
	if err != nil {
		return false, fmt.Errorf("failed to upsert document: %w", err)
	}

	doc.Status = StatusPending
	doc.Remarks = ""
	doc.ReviewedBy = nil
	doc.ReviewedAt = nil
	return replaced, nil
}

// GetDocument gets a non-deleted document by ID
func (r *Repository) GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM driver_documents WHERE id = $1 AND NOT deleted`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("document not found", err)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDriverDocuments lists every non-deleted document of a driver
func (r *Repository) ListDriverDocuments(ctx context.Context, driverID uuid.UUID) ([]*Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM driver_documents
		WHERE driver_id = $1 AND NOT deleted
		ORDER BY doc_type, side
	`

	rows, err := r.db.Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver documents: %w", err)
	}
	return scanDocuments(rows)
}

// ListDriverDocumentsForVehicle lists the non-deleted documents submitted
// under one vehicle type. This is the aggregation read.
func (r *Repository) ListDriverDocumentsForVehicle(ctx context.Context, driverID uuid.UUID, vehicleType string) ([]*Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM driver_documents
		WHERE driver_id = $1 AND vehicle_type = $2 AND NOT deleted
		ORDER BY doc_type, side
	`

	var docs []*Document
	err := tracing.TraceDBQuery(ctx, tracerName, "select", "driver_documents", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, driverID, vehicleType)
		if err != nil {
			return fmt.Errorf("failed to list driver documents for vehicle: %w", err)
		}
		docs, err = scanDocuments(rows)
		return err
	})
	return docs, err
}

// ResetDocument puts a document back to pending and clears its remarks. The
// stored file and extracted data are left untouched.
func (r *Repository) ResetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	query := `
		UPDATE driver_documents
		SET status = 'pending', remarks = '', reviewed_by = NULL, reviewed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING ` + documentColumns

	doc, err := scanDocument(r.db.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("document not found", err)
		}
		return nil, fmt.Errorf("failed to reset document: %w", err)
	}
	return doc, nil
}

// UpdateReview records an admin decision on a document
func (r *Repository) UpdateReview(ctx context.Context, documentID uuid.UUID, status DocumentStatus, remarks string, reviewedBy *uuid.UUID) (*Document, error) {
	query := `
		UPDATE driver_documents
		SET status = $2, remarks = $3, reviewed_by = $4, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND NOT deleted
		RETURNING ` + documentColumns

	doc, err := scanDocument(r.db.QueryRow(ctx, query, documentID, string(status), remarks, reviewedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("document not found", err)
		}
		return nil, fmt.Errorf("failed to update document review: %w", err)
	}
	return doc, nil
}

// ListPendingDocuments returns the review queue, oldest first
func (r *Repository) ListPendingDocuments(ctx context.Context, limit, offset int) ([]*Document, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM driver_documents WHERE status = 'pending' AND NOT deleted`
	if err := r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pending documents: %w", err)
	}

	query := `
		SELECT ` + documentColumns + `
		FROM driver_documents
		WHERE status = 'pending' AND NOT deleted
		ORDER BY updated_at ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending documents: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ========================================
// DRIVERS
// ========================================

func scanDriver(row rowScanner) (*models.Driver, error) {
	d := &models.Driver{}
	err := row.Scan(
		&d.ID, &d.UserID, &d.VehicleType, &d.DocumentStatus, &d.IsVerified,
		&d.PhoneNumber, &d.FCMToken, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

// GetDriver gets a driver profile by driver ID
func (r *Repository) GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`

	driver, err := scanDriver(r.db.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("driver not found", err)
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return driver, nil
}

// GetDriverByUserID gets the driver profile of an authenticated user
func (r *Repository) GetDriverByUserID(ctx context.Context, userID uuid.UUID) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE user_id = $1`

	driver, err := scanDriver(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("driver not found", err)
		}
		return nil, fmt.Errorf("failed to get driver by user: %w", err)
	}
	return driver, nil
}

// UpdateVerification writes the aggregate. Concurrent writers are not
// serialized; the last write wins.
func (r *Repository) UpdateVerification(ctx context.Context, driverID uuid.UUID, status DocumentStatus, isVerified bool) error {
	query := `
		UPDATE drivers
		SET document_status = $2, is_verified = $3, updated_at = NOW()
		WHERE id = $1
	`

	return tracing.TraceDBQuery(ctx, tracerName, "update", "drivers", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, driverID, string(status), isVerified)
		if err != nil {
			return fmt.Errorf("failed to update driver verification: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.NewNotFoundError("driver not found", nil)
		}
		return nil
	})
}

// SetVehicleType records the vehicle type of a driver that has none yet. An
// existing value is never overwritten.
func (r *Repository) SetVehicleType(ctx context.Context, driverID uuid.UUID, vehicleType string) error {
	query := `
		UPDATE drivers
		SET vehicle_type = $2, updated_at = NOW()
		WHERE id = $1 AND COALESCE(vehicle_type, '') = ''
	`

	if _, err := r.db.Exec(ctx, query, driverID, vehicleType); err != nil {
		return fmt.Errorf("failed to set driver vehicle type: %w", err)
	}
	return nil
}
