// Package gzip provides middleware for Gzip compression of HTTP responses
// and decompression of Gzip-encoded request bodies.
package gzip

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/KirillZiborov/certissuer/internal/logging"
)

// CompressWriter is a ResponseWriter that compresses successful responses.
// Error responses (status 300 and above) are passed through uncompressed.
type CompressWriter struct {
	w           http.ResponseWriter // w is the underlying HTTP response writer.
	zw          *gzip.Writer        // zw is the Gzip writer, nil until a compressed response starts.
	wroteHeader bool
}

// NewCompressWriter wraps w.
func NewCompressWriter(w http.ResponseWriter) *CompressWriter {
	return &CompressWriter{w: w}
}

// Header returns the header map of the underlying http.ResponseWriter.
func (c *CompressWriter) Header() http.Header {
	return c.w.Header()
}

// Write compresses p if the response is being compressed.
// A Write without a prior WriteHeader implies status 200.
func (c *CompressWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.zw == nil {
		return c.w.Write(p)
	}
	return c.zw.Write(p)
}

// WriteHeader sends the status code. For codes below 300 it switches the
// response to Gzip and sets the "Content-Encoding" header.
func (c *CompressWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	if statusCode < 300 && statusCode != http.StatusNoContent {
		c.w.Header().Set("Content-Encoding", "gzip")
		c.w.Header().Del("Content-Length")
		c.zw = gzip.NewWriter(c.w)
	}
	c.w.WriteHeader(statusCode)
}

// Close flushes the compressed stream, if any.
func (c *CompressWriter) Close() error {
	if c.zw == nil {
		return nil
	}
	return c.zw.Close()
}

// CompressReader decompresses a Gzip-encoded request body.
type CompressReader struct {
	r  io.ReadCloser // r is the underlying reader for the HTTP request body.
	zr *gzip.Reader  // zr is the Gzip reader used to decompress the request body.
}

// NewCompressReader returns an error if r does not start with a valid Gzip header.
func NewCompressReader(r io.ReadCloser) (*CompressReader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}

	return &CompressReader{
		r:  r,
		zr: zr,
	}, nil
}

// Read reads decompressed data.
func (c *CompressReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the underlying io.ReadCloser and the gzip.Reader.
func (c *CompressReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// Middleware compresses responses for clients sending "Accept-Encoding: gzip"
// and decompresses request bodies sent with "Content-Encoding: gzip".
// A body that is not valid Gzip is rejected with 400 Bad Request.
func Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Preserve the original ResponseWriter.
		ow := w

		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			cw := NewCompressWriter(w)
			ow = cw
			defer func() {
				if err := cw.Close(); err != nil {
					logging.Sugar.Errorw("Failed to finish gzip stream", "error", err)
				}
			}()
		}

		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			cr, err := NewCompressReader(r.Body)
			if err != nil {
				http.Error(w, "Bad request", http.StatusBadRequest)
				return
			}
			r.Body = cr
			defer func() { _ = cr.Close() }()
		}

		h.ServeHTTP(ow, r)
	})
}
