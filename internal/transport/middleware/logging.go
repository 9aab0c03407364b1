package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/receiptlens/pkg/logger"
)

// maxLoggedBody caps how much of a request or response body reaches the log.
// Receipt responses embed data URIs that run to megabytes.
const maxLoggedBody = 2048

const redacted = "[FILTERED]"

// secretMarkers are substrings of header and JSON field names whose values
// never reach the log.
var secretMarkers = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"apikey",
	"session",
	"credential",
	"cookie",
}

// LoggingMiddleware logs one line per request and one per response using the
// request-scoped logger, so trace and user ids ride along.
func LoggingMiddleware(lg *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := logger.FromOr(r.Context(), lg).With("request_id", middleware.GetReqID(r.Context()))

			log.Info("incoming request", slog.Group("request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", redactHeaders(r.Header),
				"body", peekRequestBody(r),
			))

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			status := cw.status
			if status == 0 {
				status = http.StatusOK
			}
			log.Log(r.Context(), levelFor(status), "response", slog.Group("response",
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", cw.size,
				"body", redactBody(cw.head.Bytes()),
			))
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// captureWriter keeps the first maxLoggedBody bytes of the response.
type captureWriter struct {
	http.ResponseWriter
	status int
	size   int
	head   bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - cw.head.Len(); room > 0 {
		cw.head.Write(b[:min(room, len(b))])
	}
	cw.size += len(b)
	return cw.ResponseWriter.Write(b)
}

// peekRequestBody returns a redacted preview of the body and restores it for
// the handler. Multipart uploads are summarized, never buffered.
func peekRequestBody(r *http.Request) string {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil &&
		strings.HasPrefix(mediaType, "multipart/") {
		return fmt.Sprintf("[multipart body, %d bytes]", r.ContentLength)
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return redactBody(head)
}

func isSecret(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range secretMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSecret(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// redactBody masks secret JSON fields. Bodies over the log cap are truncated
// instead of parsed.
func redactBody(body []byte) string {
	switch {
	case len(body) == 0:
		return ""
	case len(body) > maxLoggedBody:
		return fmt.Sprintf("[truncated] %s...", body[:maxLoggedBody])
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		if isSecret(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}

	out, err := json.Marshal(redactJSON(doc))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func redactJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			if isSecret(key) {
				out[key] = redacted
			} else {
				out[key] = redactJSON(value)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactJSON(item)
		}
		return out
	default:
		return v
	}
}
