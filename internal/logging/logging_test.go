package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	saved := Sugar
	Sugar = *zap.New(core).Sugar()
	t.Cleanup(func() { Sugar = saved })

	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		size    int
	}{
		{
			name: "implicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("hello"))
			},
			status: http.StatusOK,
			size:   5,
		},
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusForbidden)
			},
			status: http.StatusForbidden,
			size:   5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logs.TakeAll()

			h := LoggingMiddleware()(tc.handler)
			req := httptest.NewRequest(http.MethodGet, "/certificate", nil)
			rw := httptest.NewRecorder()
			h.ServeHTTP(rw, req)

			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, "/certificate", fields["uri"])
			assert.Equal(t, http.MethodGet, fields["method"])
			assert.EqualValues(t, tc.status, fields["status"])
			assert.EqualValues(t, tc.size, fields["size"])
		})
	}
}

func TestInitialize(t *testing.T) {
	saved := Sugar
	t.Cleanup(func() { Sugar = saved })

	require.NoError(t, Initialize())
	assert.NotNil(t, Sugar.Desugar())
}
