package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/cache"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/eventbus"
	"github.com/richxcame/driver-verification/pkg/logger"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/richxcame/driver-verification/pkg/security"
	"github.com/richxcame/driver-verification/pkg/storage"
	"github.com/richxcame/driver-verification/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contentTypeExtensions lists accepted upload types and the extension used
// for their storage key.
var contentTypeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// maxRemarksLength matches the review request validation limit.
const maxRemarksLength = 1000

// ServiceConfig holds upload limits for the document pipeline.
type ServiceConfig struct {
	MaxUploadBytes int64
	PresignExpiry  time.Duration
}

// DefaultServiceConfig returns a 10 MB limit and 15 minute download links.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxUploadBytes: 10 << 20,
		PresignExpiry:  15 * time.Minute,
	}
}

// StatusCache caches the verification status view. *cache.Manager
// implements it.
type StatusCache interface {
	Get(ctx context.Context, key string, result interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service implements the document verification workflow.
type Service struct {
	repo       RepositoryInterface
	storage    storage.Storage
	catalog    *Catalog
	aggregator *Aggregator
	cfg        ServiceConfig
	cache      StatusCache
	publisher  eventbus.Publisher
	notifier   Notifier
}

// NewService creates a new documents service
func NewService(repo RepositoryInterface, store storage.Storage, catalog *Catalog, cfg ServiceConfig) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	defaults := DefaultServiceConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = defaults.PresignExpiry
	}
	return &Service{
		repo:       repo,
		storage:    store,
		catalog:    catalog,
		aggregator: NewAggregator(repo, repo, catalog),
		cfg:        cfg,
		publisher:  eventbus.NoopPublisher{},
	}
}

// SetCache sets the verification status cache
func (s *Service) SetCache(c StatusCache) {
	s.cache = c
}

// SetEventPublisher sets the domain event publisher
func (s *Service) SetEventPublisher(p eventbus.Publisher) {
	if p == nil {
		p = eventbus.NoopPublisher{}
	}
	s.publisher = p
}

// SetNotifier sets the review notification sender
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Catalog returns the requirement catalog in use.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// ========================================
// UPLOAD
// ========================================

// Submit validates an upload, stores the file, creates or replaces the
// record for (driver, type, side) and recomputes the driver aggregate.
// Nothing is written to the record store when validation or the storage
// write fails.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*DocumentResult, error) {
	docType := normalizeTag(req.DocType)
	vehicleType := normalizeTag(req.VehicleType)
	side := normalizeTag(req.Side)
	if side == "" {
		side = DefaultSide
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "documents.submit")
	defer span.End()
	span.SetAttributes(tracing.DocumentAttributes(req.DriverID.String(), "", docType, side)...)

	if err := s.validateSubmission(docType, vehicleType, side, req); err != nil {
		return nil, err
	}

	driver, err := s.repo.GetDriver(ctx, req.DriverID)
	if err != nil {
		return nil, lookupError(err, "failed to get driver")
	}

	key := storageKey(req.DriverID, docType, side, contentTypeExtensions[req.ContentType])
	var uploaded *storage.UploadResult
	err = tracing.TraceExternalAPI(ctx, tracerName, "storage", "upload", func(ctx context.Context) error {
		var uploadErr error
		uploaded, uploadErr = s.storage.Upload(ctx, key, req.File, req.Size, req.ContentType)
		return uploadErr
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewStorageError("failed to store document file", err)
	}

	doc := &Document{
		DriverID:      req.DriverID,
		DocType:       docType,
		Side:          side,
		VehicleType:   vehicleType,
		ExtractedData: req.ExtractedData,
		StorageRef:    uploaded.Key,
		FileName:      security.SanitizeFilename(req.FileName),
		ContentType:   req.ContentType,
		FileSize:      req.Size,
	}
	replaced, err := s.repo.UpsertDocument(ctx, doc)
	if err != nil {
		return nil, common.NewInternalError("failed to save document", err)
	}

	// Only a vehicle type with requirements is ever adopted.
	if normalizeTag(driver.VehicleType) == "" && len(s.catalog.RequiredTypes(vehicleType)) > 0 {
		if err := s.repo.SetVehicleType(ctx, driver.ID, vehicleType); err != nil {
			return nil, common.NewInternalError("failed to set driver vehicle type", err)
		}
	}
	s.decorate(doc)
	span.SetAttributes(tracing.DocumentIDKey.String(doc.ID.String()))

	result, err := s.recompute(ctx, req.DriverID, true)
	if err != nil {
		return nil, err
	}

	documentSubmissionsTotal.WithLabelValues(docType, strconv.FormatBool(replaced)).Inc()
	s.publish(ctx, eventbus.SubjectDocumentSubmitted, eventbus.DocumentSubmittedData{
		DocumentID:  doc.ID,
		DriverID:    doc.DriverID,
		DocType:     doc.DocType,
		Side:        doc.Side,
		VehicleType: doc.VehicleType,
		Replaced:    replaced,
		SubmittedAt: doc.UpdatedAt,
	})

	logger.InfoContext(ctx, "document submitted",
		zap.String("driver_id", doc.DriverID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.String("doc_type", docType),
		zap.String("side", side),
		zap.Bool("replaced", replaced),
	)

	return &DocumentResult{Document: doc, Verification: &result.State}, nil
}

func (s *Service) validateSubmission(docType, vehicleType, side string, req *SubmitRequest) error {
	if docType == "" {
		return common.NewValidationError("doc_type is required")
	}
	if vehicleType == "" {
		return common.NewValidationError("vehicle_type is required")
	}
	if side != "front" && side != "back" {
		return common.NewValidationError("side must be front or back")
	}
	if required := s.catalog.RequiredTypes(vehicleType); len(required) > 0 && !s.catalog.Allows(vehicleType, docType) {
		return common.NewValidationError(fmt.Sprintf(
			"document type %q is not accepted for vehicle type %q; allowed types: %s",
			docType, vehicleType, strings.Join(required, ", "),
		))
	}
	if req.File == nil {
		return common.NewValidationError("file is required")
	}
	if req.Size <= 0 {
		return common.NewValidationError("file is empty")
	}
	if req.Size > s.cfg.MaxUploadBytes {
		return common.NewValidationError(fmt.Sprintf("file exceeds the %d MB limit", s.cfg.MaxUploadBytes>>20))
	}
	if _, ok := contentTypeExtensions[req.ContentType]; !ok {
		return common.NewValidationError("file must be a JPEG, PNG or PDF")
	}
	return nil
}

func storageKey(driverID uuid.UUID, docType, side, ext string) string {
	return fmt.Sprintf("drivers/%s/%s/%s/%s%s", driverID, docType, side, uuid.New(), ext)
}

// ========================================
// RESEND
// ========================================

// Resend puts a driver's own document back to pending and clears its
// remarks. The stored file stays referenced until a new upload replaces it.
func (s *Service) Resend(ctx context.Context, documentID, requesterID uuid.UUID) (*DocumentResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "documents.resend",
		trace.WithAttributes(tracing.DocumentIDKey.String(documentID.String())))
	defer span.End()

	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, lookupError(err, "failed to get document")
	}
	if doc.DriverID != requesterID {
		return nil, common.NewForbiddenError("you do not own this document")
	}

	updated, err := s.repo.ResetDocument(ctx, documentID)
	if err != nil {
		return nil, lookupError(err, "failed to reset document")
	}
	s.decorate(updated)

	result, err := s.recompute(ctx, updated.DriverID, true)
	if err != nil {
		return nil, err
	}

	documentResendsTotal.WithLabelValues(updated.DocType).Inc()
	s.publish(ctx, eventbus.SubjectDocumentResent, eventbus.DocumentResentData{
		DocumentID: updated.ID,
		DriverID:   updated.DriverID,
		DocType:    updated.DocType,
		Side:       updated.Side,
		ResentAt:   updated.UpdatedAt,
	})

	return &DocumentResult{Document: updated, Verification: &result.State}, nil
}

// ========================================
// REVIEW
// ========================================

// Review records an admin decision on a document and returns the updated
// record with the refreshed driver aggregate.
func (s *Service) Review(ctx context.Context, req *ReviewRequest) (*DocumentResult, error) {
	status, err := ParseDocumentStatus(req.Status)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "documents.review",
		trace.WithAttributes(
			tracing.DocumentIDKey.String(req.DocumentID.String()),
			tracing.DocStatusKey.String(string(status)),
		))
	defer span.End()

	remarks := security.SanitizeText(req.Remarks, maxRemarksLength)
	updated, err := s.repo.UpdateReview(ctx, req.DocumentID, status, remarks, req.ReviewerID)
	if err != nil {
		return nil, lookupError(err, "failed to review document")
	}
	s.decorate(updated)

	result, err := s.recompute(ctx, updated.DriverID, true)
	if err != nil {
		return nil, err
	}

	documentReviewsTotal.WithLabelValues(string(status)).Inc()
	reviewedAt := updated.UpdatedAt
	if updated.ReviewedAt != nil {
		reviewedAt = *updated.ReviewedAt
	}
	s.publish(ctx, eventbus.SubjectDocumentReviewed, eventbus.DocumentReviewedData{
		DocumentID: updated.ID,
		DriverID:   updated.DriverID,
		DocType:    updated.DocType,
		Side:       updated.Side,
		Status:     string(status),
		Remarks:    remarks,
		ReviewedBy: req.ReviewerID,
		ReviewedAt: reviewedAt,
	})
	s.notifyReview(ctx, updated, result)

	logger.InfoContext(ctx, "document reviewed",
		zap.String("document_id", updated.ID.String()),
		zap.String("driver_id", updated.DriverID.String()),
		zap.String("status", string(status)),
		zap.String("document_status", string(result.State.DocumentStatus)),
	)

	return &DocumentResult{Document: updated, Verification: &result.State}, nil
}

// ========================================
// READS
// ========================================

// ListForDriver returns the driver's live documents and current aggregate.
// A driver without documents gets an empty list; an unknown driver is a
// not-found error.
func (s *Service) ListForDriver(ctx context.Context, driverID uuid.UUID) (*DriverDocumentsResponse, error) {
	driver, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		return nil, lookupError(err, "failed to get driver")
	}

	docs, err := s.repo.ListDriverDocuments(ctx, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to list documents", err)
	}
	if docs == nil {
		docs = []*Document{}
	}
	for _, doc := range docs {
		s.decorate(doc)
	}

	return &DriverDocumentsResponse{
		Documents:    docs,
		Verification: stateFromDriver(driver),
	}, nil
}

// GetVerificationStatus returns the aggregate with per-type progress. The
// view is cached until the next aggregate write.
func (s *Service) GetVerificationStatus(ctx context.Context, driverID uuid.UUID) (*VerificationStatusResponse, error) {
	key := cache.Keys.VerificationStatus(driverID.String())
	if s.cache != nil {
		var cached VerificationStatusResponse
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WarnContext(ctx, "verification status cache read failed", zap.Error(err))
		}
	}

	driver, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		return nil, lookupError(err, "failed to get driver")
	}
	state := stateFromDriver(driver)

	progress, err := s.aggregator.Progress(ctx, state)
	if err != nil {
		return nil, err
	}
	resp := &VerificationStatusResponse{VerificationState: *state, Progress: progress}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, cache.TTL.Short()); err != nil {
			logger.WarnContext(ctx, "verification status cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// GetRequirements lists the required document types for vehicleType, or for
// the driver's own vehicle type when vehicleType is empty.
func (s *Service) GetRequirements(ctx context.Context, driverID uuid.UUID, vehicleType string) (*RequirementsResponse, error) {
	vehicleType = normalizeTag(vehicleType)
	if vehicleType == "" && driverID != uuid.Nil {
		driver, err := s.repo.GetDriver(ctx, driverID)
		if err != nil {
			return nil, lookupError(err, "failed to get driver")
		}
		vehicleType = normalizeTag(driver.VehicleType)
	}
	if vehicleType == "" {
		return nil, common.NewValidationError("vehicle_type is required")
	}

	required := s.catalog.RequiredTypes(vehicleType)
	if len(required) == 0 {
		return nil, common.NewNotFoundError(fmt.Sprintf("no document requirements for vehicle type %q", vehicleType), nil)
	}
	return &RequirementsResponse{VehicleType: vehicleType, RequiredTypes: required}, nil
}

// GetDocument returns a document. Non-admin callers may only read their own.
func (s *Service) GetDocument(ctx context.Context, documentID, requesterID uuid.UUID, isAdmin bool) (*Document, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, lookupError(err, "failed to get document")
	}
	if !isAdmin && doc.DriverID != requesterID {
		return nil, common.NewForbiddenError("you do not own this document")
	}
	s.decorate(doc)
	return doc, nil
}

// GetDownloadURL issues a time-limited link to a document file.
func (s *Service) GetDownloadURL(ctx context.Context, documentID, requesterID uuid.UUID, isAdmin bool) (*DownloadURLResponse, error) {
	doc, err := s.GetDocument(ctx, documentID, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}

	presigned, err := s.storage.GetPresignedDownloadURL(ctx, doc.StorageRef, s.cfg.PresignExpiry)
	if err != nil {
		return nil, common.NewStorageError("failed to create download url", err)
	}
	return &DownloadURLResponse{URL: presigned.URL, ExpiresAt: presigned.ExpiresAt}, nil
}

// OpenFile streams the stored file of a document for review. The caller
// closes the returned reader.
func (s *Service) OpenFile(ctx context.Context, documentID uuid.UUID) (*Document, io.ReadCloser, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, lookupError(err, "failed to get document")
	}

	body, err := s.storage.Download(ctx, doc.StorageRef)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, common.NewNotFoundError("document file not found", err)
		}
		return nil, nil, common.NewStorageError("failed to read document file", err)
	}
	return doc, body, nil
}

// ListPending returns the admin review queue.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Document, int64, error) {
	docs, total, err := s.repo.ListPendingDocuments(ctx, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list pending documents", err)
	}
	for _, doc := range docs {
		s.decorate(doc)
	}
	return docs, total, nil
}

// ResolveDriver maps an authenticated user to their driver profile.
func (s *Service) ResolveDriver(ctx context.Context, userID uuid.UUID) (*models.Driver, error) {
	driver, err := s.repo.GetDriverByUserID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "failed to get driver")
	}
	return driver, nil
}

// ========================================
// AGGREGATION
// ========================================

// RecomputeDriver re-runs aggregation for one driver and reports a failed
// write as an error. Used by the admin repair endpoint and the recompute
// consumer.
func (s *Service) RecomputeDriver(ctx context.Context, driverID uuid.UUID) (*VerificationState, error) {
	result, err := s.recompute(ctx, driverID, false)
	if err != nil {
		return nil, err
	}
	return &result.State, nil
}

// recompute runs the aggregator after a record write. With tolerateWrite
// set, a failed aggregate write is logged and queued for repair and the
// caller still succeeds, since its own record write already landed.
func (s *Service) recompute(ctx context.Context, driverID uuid.UUID, tolerateWrite bool) (*Recomputation, error) {
	result, err := s.aggregator.Recompute(ctx, driverID)
	if err != nil {
		if !errors.Is(err, ErrAggregateWrite) {
			return nil, err
		}
		aggregateWriteFailuresTotal.Inc()
		logger.ErrorContext(ctx, "failed to store driver verification aggregate",
			zap.String("driver_id", driverID.String()),
			zap.String("vehicle_type", result.State.VehicleType),
			zap.Error(err),
		)
		if !tolerateWrite {
			return nil, common.NewInternalError("failed to store verification status", err)
		}
		s.invalidateStatus(ctx, driverID)
		s.publish(ctx, eventbus.SubjectVerificationRecompute, eventbus.VerificationRecomputeData{
			DriverID:    driverID,
			Reason:      err.Error(),
			RequestedAt: time.Now().UTC(),
		})
		return result, nil
	}

	if !result.Applied {
		return result, nil
	}

	s.invalidateStatus(ctx, driverID)
	if result.Changed() {
		verificationTransitionsTotal.WithLabelValues(string(result.PreviousStatus), string(result.State.DocumentStatus)).Inc()
		s.publish(ctx, eventbus.SubjectVerificationChanged, eventbus.VerificationChangedData{
			DriverID:       driverID,
			VehicleType:    result.State.VehicleType,
			PreviousStatus: string(result.PreviousStatus),
			DocumentStatus: string(result.State.DocumentStatus),
			IsVerified:     result.State.IsVerified,
			ChangedAt:      time.Now().UTC(),
		})
	}
	return result, nil
}

func (s *Service) invalidateStatus(ctx context.Context, driverID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.VerificationStatus(driverID.String())); err != nil {
		logger.WarnContext(ctx, "failed to invalidate verification status cache",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}
}

// ========================================
// HELPERS
// ========================================

func (s *Service) decorate(doc *Document) {
	if doc != nil && doc.StorageRef != "" && s.storage != nil {
		doc.FileURL = s.storage.GetURL(doc.StorageRef)
	}
}

func stateFromDriver(driver *models.Driver) *VerificationState {
	status := DocumentStatus(driver.DocumentStatus)
	if !status.Valid() {
		status = StatusPending
	}
	return &VerificationState{
		DriverID:       driver.ID,
		VehicleType:    normalizeTag(driver.VehicleType),
		DocumentStatus: status,
		IsVerified:     driver.IsVerified,
	}
}

// lookupError keeps AppErrors from the repository (not found) and wraps
// anything else as internal.
func lookupError(err error, message string) error {
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	return common.NewInternalError(message, err)
}
