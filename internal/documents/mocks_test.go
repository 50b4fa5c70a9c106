package documents

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/eventbus"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/richxcame/driver-verification/pkg/storage"
	"github.com/stretchr/testify/mock"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) UpsertDocument(ctx context.Context, doc *Document) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *mockRepo) ListDriverDocuments(ctx context.Context, driverID uuid.UUID) ([]*Document, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Document), args.Error(1)
}

func (m *mockRepo) ListDriverDocumentsForVehicle(ctx context.Context, driverID uuid.UUID, vehicleType string) ([]*Document, error) {
	args := m.Called(ctx, driverID, vehicleType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Document), args.Error(1)
}

func (m *mockRepo) ResetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *mockRepo) UpdateReview(ctx context.Context, documentID uuid.UUID, status DocumentStatus, remarks string, reviewedBy *uuid.UUID) (*Document, error) {
	args := m.Called(ctx, documentID, status, remarks, reviewedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *mockRepo) ListPendingDocuments(ctx context.Context, limit, offset int) ([]*Document, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*Document), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepo) GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *mockRepo) GetDriverByUserID(ctx context.Context, userID uuid.UUID) (*models.Driver, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *mockRepo) UpdateVerification(ctx context.Context, driverID uuid.UUID, status DocumentStatus, isVerified bool) error {
	args := m.Called(ctx, driverID, status, isVerified)
	return args.Error(0)
}

func (m *mockRepo) SetVehicleType(ctx context.Context, driverID uuid.UUID, vehicleType string) error {
	args := m.Called(ctx, driverID, vehicleType)
	return args.Error(0)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	args := m.Called(ctx, key, reader, size, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadResult), args.Error(1)
}

func (m *mockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStorage) GetURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *mockStorage) GetPresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (*storage.PresignedURLResult, error) {
	args := m.Called(ctx, key, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PresignedURLResult), args.Error(1)
}

func (m *mockStorage) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	return m.Called(ctx, subject, event).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, driver *models.Driver, n *models.Notification) error {
	return m.Called(ctx, driver, n).Error(0)
}

// ============================================================================
// In-memory repository for workflow scenarios
// ============================================================================

type memoryRepo struct {
	mu      sync.Mutex
	drivers map[uuid.UUID]*models.Driver
	docs    map[uuid.UUID]*Document
	writes  int
}

func newMemoryRepo(drivers ...*models.Driver) *memoryRepo {
	r := &memoryRepo{drivers: map[uuid.UUID]*models.Driver{}, docs: map[uuid.UUID]*Document{}}
	for _, d := range drivers {
		r.drivers[d.ID] = d
	}
	return r
}

func (r *memoryRepo) copyDoc(d *Document) *Document {
	cp := *d
	return &cp
}

func (r *memoryRepo) UpsertDocument(_ context.Context, doc *Document) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, existing := range r.docs {
		if existing.Deleted || existing.DriverID != doc.DriverID || existing.DocType != doc.DocType || existing.Side != doc.Side {
			continue
		}
		existing.VehicleType = doc.VehicleType
		existing.Status = StatusPending
		existing.Remarks = ""
		existing.ExtractedData = doc.ExtractedData
		existing.StorageRef = doc.StorageRef
		existing.FileName = doc.FileName
		existing.ContentType = doc.ContentType
		existing.FileSize = doc.FileSize
		existing.UpdatedAt = now
		doc.ID, doc.CreatedAt, doc.UpdatedAt = existing.ID, existing.CreatedAt, now
		doc.Status, doc.Remarks = StatusPending, ""
		return true, nil
	}
	doc.ID = uuid.New()
	doc.Status = StatusPending
	doc.Remarks = ""
	doc.CreatedAt, doc.UpdatedAt = now, now
	r.docs[doc.ID] = r.copyDoc(doc)
	return false, nil
}

func (r *memoryRepo) GetDocument(_ context.Context, id uuid.UUID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Deleted {
		return nil, common.NewNotFoundError("document not found", nil)
	}
	return r.copyDoc(doc), nil
}

func (r *memoryRepo) list(driverID uuid.UUID, vehicleType string) []*Document {
	out := []*Document{}
	for _, doc := range r.docs {
		if doc.Deleted || doc.DriverID != driverID {
			continue
		}
		if vehicleType != "" && doc.VehicleType != vehicleType {
			continue
		}
		out = append(out, r.copyDoc(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocType != out[j].DocType {
			return out[i].DocType < out[j].DocType
		}
		return out[i].Side < out[j].Side
	})
	return out
}

func (r *memoryRepo) ListDriverDocuments(_ context.Context, driverID uuid.UUID) ([]*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(driverID, ""), nil
}

func (r *memoryRepo) ListDriverDocumentsForVehicle(_ context.Context, driverID uuid.UUID, vehicleType string) ([]*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(driverID, vehicleType), nil
}

func (r *memoryRepo) ResetDocument(_ context.Context, id uuid.UUID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Deleted {
		return nil, common.NewNotFoundError("document not found", nil)
	}
	doc.Status = StatusPending
	doc.Remarks = ""
	doc.ReviewedBy, doc.ReviewedAt = nil, nil
	doc.UpdatedAt = time.Now()
	return r.copyDoc(doc), nil
}

func (r *memoryRepo) UpdateReview(_ context.Context, id uuid.UUID, status DocumentStatus, remarks string, reviewedBy *uuid.UUID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Deleted {
		return nil, common.NewNotFoundError("document not found", nil)
	}
	now := time.Now()
	doc.Status = status
	doc.Remarks = remarks
	doc.ReviewedBy = reviewedBy
	doc.ReviewedAt = &now
	doc.UpdatedAt = now
	return r.copyDoc(doc), nil
}

func (r *memoryRepo) ListPendingDocuments(_ context.Context, limit, offset int) ([]*Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := []*Document{}
	for _, doc := range r.docs {
		if !doc.Deleted && doc.Status == StatusPending {
			pending = append(pending, r.copyDoc(doc))
		}
	}
	total := int64(len(pending))
	if offset >= len(pending) {
		return []*Document{}, total, nil
	}
	end := offset + limit
	if end > len(pending) {
		end = len(pending)
	}
	return pending[offset:end], total, nil
}

func (r *memoryRepo) GetDriver(_ context.Context, id uuid.UUID) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	if !ok {
		return nil, common.NewNotFoundError("driver not found", nil)
	}
	cp := *d
	return &cp, nil
}

func (r *memoryRepo) GetDriverByUserID(_ context.Context, userID uuid.UUID) (*models.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, common.NewNotFoundError("driver not found", nil)
}

func (r *memoryRepo) UpdateVerification(_ context.Context, id uuid.UUID, status DocumentStatus, isVerified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	if !ok {
		return common.NewNotFoundError("driver not found", nil)
	}
	d.DocumentStatus = string(status)
	d.IsVerified = isVerified
	r.writes++
	return nil
}

func (r *memoryRepo) SetVehicleType(_ context.Context, id uuid.UUID, vehicleType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[id]; ok && d.VehicleType == "" {
		d.VehicleType = vehicleType
	}
	return nil
}

func (r *memoryRepo) driver(id uuid.UUID) models.Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.drivers[id]
}

func (r *memoryRepo) liveCount(driverID uuid.UUID, docType, side string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, doc := range r.docs {
		if !doc.Deleted && doc.DriverID == driverID && doc.DocType == docType && doc.Side == side {
			n++
		}
	}
	return n
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]int64
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]int64{}}
}

func (s *memoryStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, contentType string) (*storage.UploadResult, error) {
	n, err := io.Copy(io.Discard, reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.objects[key] = n
	s.mu.Unlock()
	return &storage.UploadResult{Key: key, URL: s.GetURL(key), Size: n, ContentType: contentType}, nil
}

func (s *memoryStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (s *memoryStorage) GetURL(key string) string {
	return "https://files.example.test/" + key
}

func (s *memoryStorage) GetPresignedDownloadURL(_ context.Context, key string, expiry time.Duration) (*storage.PresignedURLResult, error) {
	return &storage.PresignedURLResult{URL: s.GetURL(key) + "?signed", Method: "GET", ExpiresAt: time.Now().Add(expiry)}, nil
}

func (s *memoryStorage) Ping(context.Context) error { return nil }
