package gzip

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty", http.StatusBadRequest)
		return
	}
	w.Write(body)
}

func TestMiddleware(t *testing.T) {
	h := Middleware(http.HandlerFunc(echo))
	payload := `{"subject":"jb.tkirk.land","issuer":"Local CA"}`

	t.Run("compressed response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/issue", strings.NewReader(payload))
		req.Header.Set("Accept-Encoding", "gzip")
		rw := httptest.NewRecorder()

		h.ServeHTTP(rw, req)

		require.Equal(t, http.StatusOK, rw.Code)
		assert.Equal(t, "gzip", rw.Header().Get("Content-Encoding"))

		zr, err := gzip.NewReader(rw.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("compressed request", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/issue", &buf)
		req.Header.Set("Content-Encoding", "gzip")
		rw := httptest.NewRecorder()

		h.ServeHTTP(rw, req)

		require.Equal(t, http.StatusOK, rw.Code)
		assert.Empty(t, rw.Header().Get("Content-Encoding"))
		assert.Equal(t, payload, rw.Body.String())
	})

	t.Run("invalid gzip body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/issue", strings.NewReader("plain"))
		req.Header.Set("Content-Encoding", "gzip")
		rw := httptest.NewRecorder()

		h.ServeHTTP(rw, req)

		assert.Equal(t, http.StatusBadRequest, rw.Code)
	})

	t.Run("errors are not compressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/issue", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rw := httptest.NewRecorder()

		h.ServeHTTP(rw, req)

		assert.Equal(t, http.StatusBadRequest, rw.Code)
		assert.Empty(t, rw.Header().Get("Content-Encoding"))
		assert.Contains(t, rw.Body.String(), "empty")
	})
}
