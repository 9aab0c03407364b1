package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/transport"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.Logger.Info("authentication failed", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToLoginResponse(result))
}

// Logout is stateless; clients drop the token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	user, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToUserResponse(user))
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, internal.ErrUnauthenticated.Message)
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Debug("token validation failed", "error", err)
			h.HandleServiceError(w, r, err)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			h.WriteError(w, http.StatusUnauthorized, ErrInvalidToken.Message)
			return
		}

		ctx := internal.ContextWithUserID(r.Context(), userID)
		ctx = logger.With(ctx, "user_id", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
