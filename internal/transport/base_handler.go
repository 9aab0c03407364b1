package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", message)
	} else {
		h.Logger.Debug("http error", "status", status, "message", message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"code":    status,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// HandleServiceError maps a service error onto its status and public message.
// Causes are logged, never written to the client.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := internal.AsAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.FromOr(r.Context(), h.Logger).Error("service error",
			"code", appErr.Code,
			"error", err)
	}
	h.WriteError(w, appErr.StatusCode, appErr.Message)
}

// UserID returns the authenticated user id or writes a 401.
func (h *BaseHandler) UserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := internal.UserIDFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, internal.ErrUnauthenticated.Message)
		return 0, false
	}
	return userID, true
}

// PathID parses a positive integer URL parameter or writes a 400.
func (h *BaseHandler) PathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, internal.ErrInvalidID.Message)
		return 0, false
	}
	return id, true
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}
