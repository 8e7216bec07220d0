package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowPerKey(t *testing.T) {
	l := New(60, 2)
	now := time.Unix(1700000000, 0)
	l.nowFunc = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestLimiter_Middleware(t *testing.T) {
	e := echo.New()
	l := New(1, 1)
	e.POST("/join", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, l.Middleware(nil))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/join", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
