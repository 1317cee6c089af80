package middleware

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/schedulus-api/pkg/casing"
	appErrors "github.com/noah-isme/schedulus-api/pkg/errors"
	"github.com/noah-isme/schedulus-api/pkg/response"
)

// KeyCaseHeader selects the key style of JSON responses. The only recognised value is "camel".
const KeyCaseHeader = "X-Key-Case"

// KeyCaseCamel requests camelCase response keys.
const KeyCaseCamel = "camel"

// KeyCase normalises JSON request bodies to snake_case before binding and, when the caller sends
// X-Key-Case: camel, rewrites JSON response keys to camelCase. Multipart and other bodies pass through untouched.
func KeyCase(maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isJSON(c.GetHeader("Content-Type")) && c.Request.Body != nil && c.Request.Body != http.NoBody {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
			_ = c.Request.Body.Close()
			if err == nil && int64(len(body)) > maxBodyBytes {
				response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "request body too large"))
				c.Abort()
				return
			}
			if snake, convErr := casing.TransformJSON(body, casing.SnakeKey); err == nil && convErr == nil {
				body = snake
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			c.Request.ContentLength = int64(len(body))
			c.Request.Header.Set("Content-Length", strconv.Itoa(len(body)))
		}

		c.Header("Vary", KeyCaseHeader)
		if !strings.EqualFold(strings.TrimSpace(c.GetHeader(KeyCaseHeader)), KeyCaseCamel) {
			c.Next()
			return
		}

		writer := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()
		c.Writer = writer.ResponseWriter

		body := writer.body.Bytes()
		if isJSON(writer.Header().Get("Content-Type")) && len(body) > 0 {
			if camel, err := casing.TransformJSON(body, casing.CamelKey); err == nil {
				body = camel
			}
		}
		writer.Header().Del("Content-Length")
		_, _ = writer.ResponseWriter.Write(body)
	}
}

type bufferedWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Size() int {
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.body.Len() > 0 || w.ResponseWriter.Written()
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
