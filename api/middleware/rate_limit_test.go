package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCounterStore struct {
	counts map[string]int64
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: map[string]int64{}}
}

func (f *fakeCounterStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeCounterStore()
	handler := RateLimit(NewRateLimitPolicy("payments", time.Minute, 2), store, nil)(okHandler())

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/payments", nil)
		req = req.WithContext(WithIdentity(req.Context(), "tenant-1", "user-1", "user"))
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	require.Equal(t, "60", last.Header().Get("Retry-After"))
	require.Contains(t, store.counts, "rl:user:payments:tenant-1:user-1")
}

func TestRateLimitCountsCallersSeparately(t *testing.T) {
	store := newFakeCounterStore()
	handler := RateLimit(NewRateLimitPolicy("payments", time.Minute, 1), store, nil)(okHandler())

	for _, user := range []string{"user-1", "user-2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), "tenant-1", user, "user"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code, user)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeCounterStore()
	handler := RateLimit(NewRateLimitPolicy("Public", time.Minute, 5), store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, int64(1), store.counts["rl:ip:public:203.0.113.9"])
}

func TestRateLimitFailsClosedOnStoreError(t *testing.T) {
	store := newFakeCounterStore()
	store.err = errors.New("redis down")
	handler := RateLimit(NewRateLimitPolicy("payments", time.Minute, 5), store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeCounterStore()
	handler := RateLimit(NewRateLimitPolicy("off", 0, 0), store, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, store.counts)
}
