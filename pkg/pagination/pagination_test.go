package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		query string
		want  Params
	}{
		{"defaults", "", Params{Limit: DefaultLimit}},
		{"explicit", "?limit=5&offset=10", Params{Limit: 5, Offset: 10}},
		{"limit capped", "?limit=1000", Params{Limit: MaxLimit}},
		{"negative offset", "?offset=-3", Params{Limit: DefaultLimit}},
		{"garbage", "?limit=abc", Params{Limit: DefaultLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)
			assert.Equal(t, tt.want, ParseParams(c))
		})
	}
}

func TestBuildMeta(t *testing.T) {
	meta := BuildMeta(20, 0, 45)
	assert.True(t, meta.HasMore)
	assert.Equal(t, int64(45), meta.Total)

	meta = BuildMeta(20, 40, 45)
	assert.False(t, meta.HasMore)
}
