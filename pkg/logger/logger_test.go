package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_Handle(t *testing.T) {
	testCases := []struct {
		name     string
		ctx      context.Context
		expected map[string]any
		absent   []string
	}{
		{
			name:   "plain context",
			ctx:    context.Background(),
			absent: []string{"request_id", "sale_id", "trace_id"},
		},
		{
			name:     "request id",
			ctx:      context.WithValue(context.Background(), middleware.RequestIDKey, "req-1"),
			expected: map[string]any{"request_id": "req-1"},
			absent:   []string{"sale_id"},
		},
		{
			name:     "sale id",
			ctx:      WithSaleID(context.Background(), 42),
			expected: map[string]any{"sale_id": float64(42)},
			absent:   []string{"request_id"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var buf bytes.Buffer
			log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

			// when
			log.InfoContext(tc.ctx, "hello")

			// then
			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
			for k, v := range tc.expected {
				assert.Equal(t, v, record[k], k)
			}
			for _, k := range tc.absent {
				assert.NotContains(t, record, k)
			}
		})
	}
}

func TestContextHandler_WithAttrsKeepsContext(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "test")

	// when
	log.InfoContext(WithSaleID(context.Background(), 7), "hello")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "test", record["component"])
	assert.Equal(t, float64(7), record["sale_id"])
}
