package validation

// ReviewDocumentRequest is the admin review body.
type ReviewDocumentRequest struct {
	Status  string `json:"status" validate:"required,doc_status"`
	Remarks string `json:"remarks" validate:"max=1000"`
}

// UploadDocumentForm holds the non-file multipart fields of an upload.
type UploadDocumentForm struct {
	DocType       string `form:"doc_type" validate:"required,max=64,doc_tag"`
	Side          string `form:"side" validate:"doc_side"`
	VehicleType   string `form:"vehicle_type" validate:"required,max=32,doc_tag"`
	ExtractedData string `form:"extracted_data" validate:"max=65536"`
}
