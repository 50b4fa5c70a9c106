package documents

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/middleware"
	"github.com/richxcame/driver-verification/pkg/models"
	"github.com/richxcame/driver-verification/pkg/pagination"
	"github.com/richxcame/driver-verification/pkg/validation"
)

// multipartOverhead is the allowance for form fields on top of the file.
const multipartOverhead = 1 << 20

// Handler handles HTTP requests for documents
type Handler struct {
	service *Service
}

// NewHandler creates a new documents handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getDriver resolves the authenticated user to a driver profile. It writes
// the error response and returns false on failure.
func (h *Handler) getDriver(c *gin.Context) (*models.Driver, bool) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return nil, false
	}

	driver, err := h.service.ResolveDriver(c.Request.Context(), userID)
	if err != nil {
		if common.IsNotFound(err) {
			common.AppErrorResponse(c, common.NewForbiddenError("not a registered driver"))
			return nil, false
		}
		common.HandleServiceError(c, err, "failed to resolve driver")
		return nil, false
	}
	return driver, true
}

// ========================================
// DRIVER ENDPOINTS
// ========================================

// GetRequirements lists the document types required for a vehicle type
// GET /api/v1/documents/requirements?vehicle_type=
func (h *Handler) GetRequirements(c *gin.Context) {
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	resp, err := h.service.GetRequirements(c.Request.Context(), driver.ID, c.Query("vehicle_type"))
	if common.HandleServiceError(c, err, "failed to get requirements") {
		return
	}
	common.SuccessResponse(c, resp)
}

// GetMyDocuments gets the authenticated driver's documents
// GET /api/v1/documents
func (h *Handler) GetMyDocuments(c *gin.Context) {
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	resp, err := h.service.ListForDriver(c.Request.Context(), driver.ID)
	if common.HandleServiceError(c, err, "failed to get documents") {
		return
	}
	common.SuccessResponse(c, resp)
}

// GetMyVerificationStatus gets the driver's aggregate status and progress
// GET /api/v1/documents/status
func (h *Handler) GetMyVerificationStatus(c *gin.Context) {
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	resp, err := h.service.GetVerificationStatus(c.Request.Context(), driver.ID)
	if common.HandleServiceError(c, err, "failed to get verification status") {
		return
	}
	common.SuccessResponse(c, resp)
}

// UploadDocument uploads a document file
// POST /api/v1/documents
func (h *Handler) UploadDocument(c *gin.Context) {
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.cfg.MaxUploadBytes+multipartOverhead)

	var form validation.UploadDocumentForm
	if err := c.ShouldBind(&form); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.AppErrorResponse(c, common.NewValidationError("upload is too large"))
			return
		}
		common.AppErrorResponse(c, common.NewBadRequestError("invalid upload form", err))
		return
	}
	if err := validation.ValidateStruct(&form); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
		return
	}

	var extracted map[string]interface{}
	if form.ExtractedData != "" {
		if err := json.Unmarshal([]byte(form.ExtractedData), &extracted); err != nil {
			common.AppErrorResponse(c, common.NewValidationError("extracted_data must be a JSON object"))
			return
		}
	}

	header, err := c.FormFile("file")
	if err != nil {
		common.AppErrorResponse(c, common.NewValidationError("file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("failed to read file", err))
		return
	}
	defer file.Close()

	contentType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		contentType = ""
	}

	result, err := h.service.Submit(c.Request.Context(), &SubmitRequest{
		DriverID:      driver.ID,
		DocType:       form.DocType,
		Side:          form.Side,
		VehicleType:   form.VehicleType,
		ExtractedData: extracted,
		File:          file,
		FileName:      header.Filename,
		ContentType:   contentType,
		Size:          header.Size,
	})
	if common.HandleServiceError(c, err, "failed to upload document") {
		return
	}
	common.CreatedResponse(c, result)
}

// GetDocument gets one of the driver's documents
// GET /api/v1/documents/:id
func (h *Handler) GetDocument(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), documentID, driver.ID, false)
	if common.HandleServiceError(c, err, "failed to get document") {
		return
	}
	common.SuccessResponse(c, doc)
}

// GetDownloadURL returns a presigned download link
// GET /api/v1/documents/:id/download-url
func (h *Handler) GetDownloadURL(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	resp, err := h.service.GetDownloadURL(c.Request.Context(), documentID, driver.ID, false)
	if common.HandleServiceError(c, err, "failed to create download url") {
		return
	}
	common.SuccessResponse(c, resp)
}

// ResendDocument resets a document to pending
// POST /api/v1/documents/:id/resend
func (h *Handler) ResendDocument(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}
	driver, ok := h.getDriver(c)
	if !ok {
		return
	}

	result, err := h.service.Resend(c.Request.Context(), documentID, driver.ID)
	if common.HandleServiceError(c, err, "failed to resend document") {
		return
	}
	common.SuccessResponse(c, result)
}

// ========================================
// ADMIN ENDPOINTS
// ========================================

// GetPendingDocuments gets documents waiting for review
// GET /api/v1/admin/documents/pending
func (h *Handler) GetPendingDocuments(c *gin.Context) {
	params := pagination.ParseParams(c)

	docs, total, err := h.service.ListPending(c.Request.Context(), params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to get pending documents") {
		return
	}

	common.SuccessResponseWithMeta(c, gin.H{"documents": docs}, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// GetDriverDocuments gets all documents of a driver
// GET /api/v1/admin/documents/drivers/:driver_id
func (h *Handler) GetDriverDocuments(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "driver_id", "driver ID")
	if !ok {
		return
	}

	resp, err := h.service.ListForDriver(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to get documents") {
		return
	}
	common.SuccessResponse(c, resp)
}

// ReviewDocument approves or rejects a document
// POST /api/v1/admin/documents/:id/review
func (h *Handler) ReviewDocument(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}
	reviewerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req validation.ReviewDocumentRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
		return
	}

	result, err := h.service.Review(c.Request.Context(), &ReviewRequest{
		DocumentID: documentID,
		Status:     req.Status,
		Remarks:    req.Remarks,
		ReviewerID: &reviewerID,
	})
	if common.HandleServiceError(c, err, "failed to review document") {
		return
	}
	common.SuccessResponse(c, result)
}

// GetDocumentForReview gets any document
// GET /api/v1/admin/documents/:id
func (h *Handler) GetDocumentForReview(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), documentID, uuid.Nil, true)
	if common.HandleServiceError(c, err, "failed to get document") {
		return
	}
	common.SuccessResponse(c, doc)
}

// GetReviewDownloadURL returns a presigned download link for any document
// GET /api/v1/admin/documents/:id/download-url
func (h *Handler) GetReviewDownloadURL(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}

	resp, err := h.service.GetDownloadURL(c.Request.Context(), documentID, uuid.Nil, true)
	if common.HandleServiceError(c, err, "failed to create download url") {
		return
	}
	common.SuccessResponse(c, resp)
}

// StreamDocumentFile streams the stored file through the API
// GET /api/v1/admin/documents/:id/file
func (h *Handler) StreamDocumentFile(c *gin.Context) {
	documentID, ok := common.ParseUUIDParam(c, "id", "document ID")
	if !ok {
		return
	}

	doc, body, err := h.service.OpenFile(c.Request.Context(), documentID)
	if common.HandleServiceError(c, err, "failed to read document file") {
		return
	}
	defer body.Close()

	size := doc.FileSize
	if size <= 0 {
		size = -1
	}
	headers := map[string]string{}
	if doc.FileName != "" {
		headers["Content-Disposition"] = mime.FormatMediaType("inline", map[string]string{"filename": doc.FileName})
	}
	c.DataFromReader(http.StatusOK, size, doc.ContentType, body, headers)
}

// RecomputeDriver re-runs aggregation for a driver
// POST /api/v1/admin/documents/drivers/:driver_id/recompute
func (h *Handler) RecomputeDriver(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "driver_id", "driver ID")
	if !ok {
		return
	}

	state, err := h.service.RecomputeDriver(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to recompute verification") {
		return
	}
	common.SuccessResponse(c, state)
}

// ========================================
// ROUTE REGISTRATION
// ========================================

// RegisterRoutes registers document routes. auth authenticates every route;
// writeMiddleware (idempotency, rate limiting) wraps the mutating ones.
func (h *Handler) RegisterRoutes(r gin.IRouter, auth gin.HandlerFunc, writeMiddleware ...gin.HandlerFunc) {
	write := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeMiddleware...), handler)
	}

	driverDocs := r.Group("/api/v1/documents")
	driverDocs.Use(auth, middleware.RequireRole(models.RoleDriver))
	{
		driverDocs.GET("", h.GetMyDocuments)
		driverDocs.GET("/requirements", h.GetRequirements)
		driverDocs.GET("/status", h.GetMyVerificationStatus)
		driverDocs.POST("", write(h.UploadDocument)...)
		driverDocs.GET("/:id", h.GetDocument)
		driverDocs.GET("/:id/download-url", h.GetDownloadURL)
		driverDocs.POST("/:id/resend", write(h.ResendDocument)...)
	}

	adminDocs := r.Group("/api/v1/admin/documents")
	adminDocs.Use(auth, middleware.RequireRole(models.RoleAdmin))
	{
		adminDocs.GET("/pending", h.GetPendingDocuments)
		adminDocs.GET("/drivers/:driver_id", h.GetDriverDocuments)
		adminDocs.POST("/drivers/:driver_id/recompute", h.RecomputeDriver)
		adminDocs.GET("/:id", h.GetDocumentForReview)
		adminDocs.GET("/:id/download-url", h.GetReviewDownloadURL)
		adminDocs.GET("/:id/file", h.StreamDocumentFile)
		adminDocs.POST("/:id/review", write(h.ReviewDocument)...)
	}
}
