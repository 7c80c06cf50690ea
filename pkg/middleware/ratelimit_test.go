package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/logger"
)

func limitedHandler(l *RateLimiter) http.Handler {
	return RequireUser(l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
}

func sendAs(h http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/storefront/cart/lines", nil)
	req.Header.Set(UserIDHeader, userID)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	l := NewRateLimiter(0.001, 2, time.Minute, ByUserID, logger.Discard())
	defer l.Close()
	h := limitedHandler(l)

	assert.Equal(t, http.StatusOK, sendAs(h, "u1").Code)
	assert.Equal(t, http.StatusOK, sendAs(h, "u1").Code)

	rr := sendAs(h, "u1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "TOO_MANY_REQUESTS")
}

func TestRateLimiter_UsersAreIndependent(t *testing.T) {
	l := NewRateLimiter(0.001, 1, time.Minute, ByUserID, logger.Discard())
	defer l.Close()
	h := limitedHandler(l)

	assert.Equal(t, http.StatusOK, sendAs(h, "u1").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendAs(h, "u1").Code)
	assert.Equal(t, http.StatusOK, sendAs(h, "u2").Code)
}

func TestRateLimiter_CleanupEvictsIdleKeys(t *testing.T) {
	l := NewRateLimiter(1, 1, time.Hour, ByUserID, logger.Discard())
	defer l.Close()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }

	sendAs(limitedHandler(l), "u1")
	assert.Equal(t, 1, l.len())

	now = now.Add(2 * time.Hour)
	l.cleanup()
	assert.Zero(t, l.len())
}

func TestByUserID_FallsBackToAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "ip:10.0.0.7", ByUserID(req))

	req = req.WithContext(WithUserID(req.Context(), "u9"))
	assert.Equal(t, "user:u9", ByUserID(req))
}
