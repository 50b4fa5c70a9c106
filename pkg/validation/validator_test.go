package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewDocumentRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     ReviewDocumentRequest
		wantErr string
	}{
		{"approved", ReviewDocumentRequest{Status: "approved"}, ""},
		{"verified alias", ReviewDocumentRequest{Status: "Verified"}, ""},
		{"rejected with remarks", ReviewDocumentRequest{Status: "rejected", Remarks: "blurry"}, ""},
		{"missing status", ReviewDocumentRequest{}, "status is required"},
		{"unknown status", ReviewDocumentRequest{Status: "archived"}, "status must be one of"},
		{"remarks too long", ReviewDocumentRequest{Status: "rejected", Remarks: strings.Repeat("x", 1001)}, "remarks must be at most 1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUploadDocumentForm(t *testing.T) {
	tests := []struct {
		name  string
		form  UploadDocumentForm
		field string
	}{
		{"valid", UploadDocumentForm{DocType: "license", VehicleType: "bike", Side: "front"}, ""},
		{"side optional", UploadDocumentForm{DocType: "LICENSE", VehicleType: "Bike"}, ""},
		{"bad side", UploadDocumentForm{DocType: "license", VehicleType: "bike", Side: "top"}, "side"},
		{"missing doc type", UploadDocumentForm{VehicleType: "bike"}, "doctype"},
		{"doc type with spaces", UploadDocumentForm{DocType: "drivers license", VehicleType: "bike"}, "doctype"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.form)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	assert.True(t, ValidatePhoneNumber("+14155552671"))
	assert.True(t, ValidatePhoneNumber(" +14155552671"))
	assert.False(t, ValidatePhoneNumber("01234567890"))
	assert.False(t, ValidatePhoneNumber("+1 415 555 2671"))
}
