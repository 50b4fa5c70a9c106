package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"license.jpg", "license.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan front.png`, "scan_front.png"},
		{"my..file.pdf", "myfile.pdf"},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)+".jpg"), MaxFilenameLength)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "blurry", SanitizeText("  blurry \x00", 0))
	assert.Equal(t, "name does not match", SanitizeText("name\t does   not\x07 match", 0))
	assert.Equal(t, "line one\nline two", SanitizeText("line one\nline two", 0))
	assert.Equal(t, "ab", SanitizeText("abc", 2))
	assert.Equal(t, "ñé", SanitizeText("ñéü", 2))
}
