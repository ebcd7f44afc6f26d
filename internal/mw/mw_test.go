package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter(t *testing.T) {
	testCases := []struct {
		name     string
		ipHeader string
		headers  []string
		expected []int
	}{
		{
			name:     "Same client is limited",
			expected: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:     "Header separates clients",
			ipHeader: "X-Forwarded-For",
			headers:  []string{"10.0.0.1", "10.0.0.1", "10.0.0.2, 172.16.0.1"},
			expected: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimiter(0.001, 2, tc.ipHeader))
			r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

			for i, want := range tc.expected {
				req := httptest.NewRequest(http.MethodGet, "/ping", nil)
				if tc.headers != nil {
					req.Header.Set(tc.ipHeader, tc.headers[i])
				}
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)
				assert.Equal(t, want, w.Code, "request %d", i)
			}
		})
	}
}

func TestResponseCache(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	calls := 0
	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/api/rooms", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/api/missing", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	first := get("/api/rooms")
	second := get("/api/rooms")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	rc.Flush()
	third := get("/api/rooms")
	assert.JSONEq(t, `{"calls":2}`, third.Body.String())

	get("/api/missing")
	get("/api/missing")
	assert.Equal(t, 4, calls)
}
