package documents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/logger"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type workflow struct {
	t        *testing.T
	svc      *Service
	repo     *memoryRepo
	driverID uuid.UUID
	docs     map[string]uuid.UUID
}

func newWorkflow(t *testing.T, vehicleType string) *workflow {
	driver := &models.Driver{ID: uuid.New(), UserID: uuid.New(), VehicleType: vehicleType, DocumentStatus: "pending"}
	repo := newMemoryRepo(driver)
	return &workflow{
		t:        t,
		svc:      NewService(repo, newMemoryStorage(), DefaultCatalog(), ServiceConfig{}),
		repo:     repo,
		driverID: driver.ID,
		docs:     map[string]uuid.UUID{},
	}
}

func (w *workflow) upload(docType string, extracted map[string]interface{}) *DocumentResult {
	w.t.Helper()
	res, err := w.svc.Submit(context.Background(), &SubmitRequest{
		DriverID:      w.driverID,
		DocType:       docType,
		VehicleType:   "bike",
		ExtractedData: extracted,
		File:          strings.NewReader("%PDF-1.4"),
		FileName:      docType + ".pdf",
		ContentType:   "application/pdf",
		Size:          8,
	})
	require.NoError(w.t, err)
	w.docs[docType] = res.Document.ID
	return res
}

func (w *workflow) review(docType, status, remarks string) *DocumentResult {
	w.t.Helper()
	res, err := w.svc.Review(context.Background(), &ReviewRequest{DocumentID: w.docs[docType], Status: status, Remarks: remarks})
	require.NoError(w.t, err)
	return res
}

func (w *workflow) expectDriver(status DocumentStatus, verified bool) {
	w.t.Helper()
	d := w.repo.driver(w.driverID)
	assert.Equal(w.t, string(status), d.DocumentStatus)
	assert.Equal(w.t, verified, d.IsVerified)
}

func TestWorkflow_BikeLifecycle(t *testing.T) {
	w := newWorkflow(t, "bike")

	for _, docType := range bikeRequired {
		w.upload(docType, nil)
	}
	w.expectDriver(StatusPending, false)

	for _, docType := range bikeRequired {
		w.review(docType, "approved", "")
	}
	w.expectDriver(StatusApproved, true)

	res := w.review("pan", "rejected", "blurry")
	assert.Equal(t, StatusRejected, res.Verification.DocumentStatus)
	w.expectDriver(StatusRejected, false)

	resent, err := w.svc.Resend(context.Background(), w.docs["pan"], w.driverID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, resent.Document.Status)
	assert.Empty(t, resent.Document.Remarks)
	w.expectDriver(StatusPending, false)

	reuploaded := w.upload("pan", map[string]interface{}{"number": "ABCDE1234F"})
	assert.Equal(t, resent.Document.ID, reuploaded.Document.ID)
	assert.Equal(t, 1, w.repo.liveCount(w.driverID, "pan", DefaultSide))
	w.expectDriver(StatusPending, false)

	final := w.review("pan", "verified", "")
	assert.Equal(t, StatusApproved, final.Document.Status)
	assert.True(t, final.Verification.IsVerified)
	w.expectDriver(StatusApproved, true)
}

func TestWorkflow_ReuploadReplacesRecord(t *testing.T) {
	w := newWorkflow(t, "bike")

	first := w.upload("license", map[string]interface{}{"number": "OLD"})
	w.review("license", "rejected", "expired")
	second := w.upload("license", map[string]interface{}{"number": "NEW"})

	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.NotEqual(t, first.Document.StorageRef, second.Document.StorageRef)
	assert.Equal(t, 1, w.repo.liveCount(w.driverID, "license", DefaultSide))

	stored, err := w.repo.GetDocument(context.Background(), second.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Empty(t, stored.Remarks)
	assert.Equal(t, "NEW", stored.ExtractedData["number"])
	assert.Equal(t, second.Document.StorageRef, stored.StorageRef)
}

func TestWorkflow_FrontAndBackAreSeparateRecords(t *testing.T) {
	w := newWorkflow(t, "bike")

	front := w.upload("license", nil)
	back, err := w.svc.Submit(context.Background(), &SubmitRequest{
		DriverID:    w.driverID,
		DocType:     "license",
		Side:        "BACK",
		VehicleType: "bike",
		File:        strings.NewReader("png"),
		ContentType: "image/png",
		Size:        3,
	})
	require.NoError(t, err)

	assert.NotEqual(t, front.Document.ID, back.Document.ID)
	assert.Equal(t, "back", back.Document.Side)
}

func TestWorkflow_CarWithoutDocuments(t *testing.T) {
	w := newWorkflow(t, "car")

	res, err := w.svc.ListForDriver(context.Background(), w.driverID)

	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, StatusPending, res.Verification.DocumentStatus)
	assert.False(t, res.Verification.IsVerified)
}

func TestWorkflow_RecomputeIsIdempotent(t *testing.T) {
	w := newWorkflow(t, "bike")
	for _, docType := range bikeRequired {
		w.upload(docType, nil)
		w.review(docType, "approved", "")
	}

	first, err := w.svc.RecomputeDriver(context.Background(), w.driverID)
	require.NoError(t, err)
	second, err := w.svc.RecomputeDriver(context.Background(), w.driverID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusApproved, second.DocumentStatus)
}

func TestWorkflow_ConcurrentReviewsConverge(t *testing.T) {
	w := newWorkflow(t, "bike")
	for _, docType := range bikeRequired {
		w.upload(docType, nil)
	}

	var wg sync.WaitGroup
	for _, docType := range bikeRequired {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := w.svc.Review(context.Background(), &ReviewRequest{DocumentID: id, Status: "approved"})
			assert.NoError(t, err)
		}(w.docs[docType])
	}
	wg.Wait()

	// Racing passes may leave a stale aggregate; the next mutation or a
	// repair pass settles it.
	state, err := w.svc.RecomputeDriver(context.Background(), w.driverID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, state.DocumentStatus)
	w.expectDriver(StatusApproved, true)
}

type failingVerificationRepo struct {
	*memoryRepo
}

func (failingVerificationRepo) UpdateVerification(context.Context, uuid.UUID, DocumentStatus, bool) error {
	return errors.New("drivers table locked")
}

func TestWorkflow_AggregateWriteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	driver := &models.Driver{ID: uuid.New(), VehicleType: "bike", DocumentStatus: "pending"}
	repo := failingVerificationRepo{newMemoryRepo(driver)}
	svc := NewService(repo, newMemoryStorage(), DefaultCatalog(), ServiceConfig{})

	res, err := svc.Submit(context.Background(), &SubmitRequest{
		DriverID:    driver.ID,
		DocType:     "rc",
		VehicleType: "bike",
		File:        strings.NewReader("jpg"),
		ContentType: "image/jpeg",
		Size:        3,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Document.Status)
	entries := logs.FilterMessage("failed to store driver verification aggregate").All()
	require.Len(t, entries, 1)
	assert.Equal(t, driver.ID.String(), entries[0].ContextMap()["driver_id"])
	assert.Equal(t, "bike", entries[0].ContextMap()["vehicle_type"])
}

func TestWorkflow_MistypedVehicleTypeDoesNotStickToDriver(t *testing.T) {
	w := newWorkflow(t, "")

	_, err := w.svc.Submit(context.Background(), &SubmitRequest{
		DriverID:    w.driverID,
		DocType:     "license",
		VehicleType: "Truk",
		File:        strings.NewReader("jpg"),
		ContentType: "image/jpeg",
		Size:        3,
	})
	require.NoError(t, err)
	assert.Empty(t, w.repo.driver(w.driverID).VehicleType)

	for _, docType := range bikeRequired {
		w.upload(docType, nil)
	}
	assert.Equal(t, "bike", w.repo.driver(w.driverID).VehicleType)

	for _, docType := range bikeRequired {
		w.review(docType, "approved", "")
	}
	w.expectDriver(StatusApproved, true)
}
