package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes response compression.
type BrotliConfig struct {
	Quality int
	// MinLength is the body size below which responses go out uncompressed.
	MinLength int
	Skipper   func(c *gin.Context) bool
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// brotliWriter buffers until MinLength bytes have been written, then switches
// the response to brotli for the rest of the body.
type brotliWriter struct {
	gin.ResponseWriter
	writer     *brotli.Writer
	quality    int
	minLength  int
	buf        []byte
	compressed bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.compressed {
		return bw.writer.Write(data)
	}

	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < bw.minLength {
		return len(data), nil
	}

	bw.compressed = true
	h := bw.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	bw.writer = brotli.NewWriterLevel(bw.ResponseWriter, bw.quality)
	if _, err := bw.writer.Write(bw.buf); err != nil {
		return 0, err
	}
	bw.buf = nil
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// finish writes whatever is still buffered. Short bodies go out as-is.
func (bw *brotliWriter) finish() error {
	if bw.compressed {
		return bw.writer.Close()
	}
	if len(bw.buf) == 0 {
		return nil
	}
	_, err := bw.ResponseWriter.Write(bw.buf)
	bw.buf = nil
	return err
}

// Brotli compresses large responses for clients that accept br.
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if isUpgrade(c) || isEventStream(c) || (cfg.Skipper != nil && cfg.Skipper(c)) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// isUpgrade reports WebSocket handshakes, which must not be wrapped.
func isUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

// isEventStream reports SSE requests, whose chunks must reach the client
// as they are flushed.
func isEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
