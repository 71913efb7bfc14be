package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDInjector(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "uses incoming header", header: "abc-123", expected: "abc-123"},
		{name: "generates id when missing", header: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var seen string
			handler := RequestIDInjector(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = middleware.GetReqID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(middleware.RequestIDHeader, tc.header)
			}
			rr := httptest.NewRecorder()

			// when
			handler.ServeHTTP(rr, req)

			// then
			require.NotEmpty(t, seen)
			if tc.expected != "" {
				assert.Equal(t, tc.expected, seen)
			}
			assert.Equal(t, seen, rr.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestRecoverer(t *testing.T) {
	// given
	handler := Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	// when
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// then
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rr.Body.String())
}

func TestStructuredLogger(t *testing.T) {
	// given
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	// when
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/products", nil))

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Request completed", record["msg"])
	assert.Equal(t, http.MethodPost, record["method"])
	assert.Equal(t, "/products", record["path"])
	assert.Equal(t, float64(http.StatusTeapot), record["status"])
}

func TestParseID(t *testing.T) {
	testCases := []struct {
		name       string
		pathValue  string
		expectedID int64
		expectedOK bool
	}{
		{name: "valid", pathValue: "15", expectedID: 15, expectedOK: true},
		{name: "zero", pathValue: "0"},
		{name: "negative", pathValue: "-3"},
		{name: "not a number", pathValue: "abc"},
		{name: "empty", pathValue: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodGet, "/products/"+tc.pathValue, nil)
			req.SetPathValue("id", tc.pathValue)
			rr := httptest.NewRecorder()

			// when
			id, ok := ParseID(rr, req, discardLogger())

			// then
			assert.Equal(t, tc.expectedOK, ok)
			assert.Equal(t, tc.expectedID, id)
			if !tc.expectedOK {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.JSONEq(t, `{"message":"Invalid ID: `+tc.pathValue+`"}`, rr.Body.String())
			}
		})
	}
}
