package nudge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/receiptlens/internal/transport"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

type ServiceAPI interface {
	List(ctx context.Context, userID int64) ([]*Nudge, error)
	MarkRead(ctx context.Context, userID, id int64) (*Nudge, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	nudges, err := h.Service.List(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponseList(nudges))
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}
	id, ok := h.PathID(w, r, "id")
	if !ok {
		return
	}

	n, err := h.Service.MarkRead(r.Context(), userID, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponse(n))
}
