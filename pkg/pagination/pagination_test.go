package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=3&limit=10", Params{Page: 3, Limit: 10, Offset: 20}},
		{"?page=0&limit=0", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=abc&limit=-5", Params{Page: 1, Limit: 20, Offset: 0}},
		{"?page=2&limit=500", Params{Page: 2, Limit: 100, Offset: 100}},
	}

	for _, tc := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/items"+tc.query, nil)
		assert.Equal(t, tc.want, Parse(c), tc.query)
	}
}

func TestTotalPages(t *testing.T) {
	p := Normalize(1, 20)
	assert.EqualValues(t, 0, p.TotalPages(0))
	assert.EqualValues(t, 1, p.TotalPages(20))
	assert.EqualValues(t, 2, p.TotalPages(21))
}
