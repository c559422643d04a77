package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireToken(t *testing.T) {
	handler := RequireToken("s3cret")(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer s3cret", http.StatusOK},
		{"case insensitive scheme", "bearer s3cret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"no token", "Bearer", http.StatusUnauthorized},
		{"extra fields", "Bearer s3cret extra", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireToken_Disabled(t *testing.T) {
	handler := RequireToken("")(okHandler)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	var seen uuid.UUID
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		id, ok := GetRequestID(r.Context())
		require.True(t, ok)
		seen = id
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEqual(t, uuid.Nil, seen)
	assert.Equal(t, seen.String(), w.Header().Get(RequestIDHeader))

	incoming := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming.String())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", seen.String())
}

func TestGetRequestID_Missing(t *testing.T) {
	_, ok := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
