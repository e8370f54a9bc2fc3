package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliMinLength is the smallest body worth compressing.
const BrotliMinLength = 1024

// bufferedWriter holds the whole body so the encoding can be chosen once
// the size is known.
type bufferedWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.status = code
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.buf.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.buf.Len() > 0 || w.status != 0
}

// Brotli compresses responses of at least minLength bytes for clients that
// accept "br". Mount it only on routes with bounded JSON bodies.
func Brotli(quality, minLength int) gin.HandlerFunc {
	if quality < 0 || quality > brotli.BestCompression {
		quality = brotli.DefaultCompression
	}
	if minLength <= 0 {
		minLength = BrotliMinLength
	}

	return func(c *gin.Context) {
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}
		c.Header("Vary", "Accept-Encoding")

		orig := c.Writer
		bw := &bufferedWriter{ResponseWriter: orig}
		c.Writer = bw
		c.Next()
		c.Writer = orig

		body := bw.buf.Bytes()
		if len(body) < minLength {
			orig.WriteHeader(bw.Status())
			_, _ = orig.Write(body)
			return
		}

		var out bytes.Buffer
		zw := brotli.NewWriterLevel(&out, quality)
		if _, err := zw.Write(body); err != nil {
			_ = c.Error(err)
		}
		if err := zw.Close(); err != nil {
			_ = c.Error(err)
		}

		h := orig.Header()
		h.Set("Content-Encoding", "br")
		h.Set("Content-Length", strconv.Itoa(out.Len()))
		orig.WriteHeader(bw.Status())
		_, _ = orig.Write(out.Bytes())
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
