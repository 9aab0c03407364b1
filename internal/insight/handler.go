package insight

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/receiptlens/internal/transport"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

type CategoryAmountResponse struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

type InsightsResponse struct {
	MonthlyTotal      float64                  `json:"monthlyTotal"`
	CategoryBreakdown []CategoryAmountResponse `json:"categoryBreakdown"`
	Insights          []string                 `json:"insights"`
}

func ToResponse(in *Insights) InsightsResponse {
	breakdown := make([]CategoryAmountResponse, len(in.CategoryBreakdown))
	for i, c := range in.CategoryBreakdown {
		breakdown[i] = CategoryAmountResponse{Category: c.Category, Amount: c.Amount.Round(2).InexactFloat64()}
	}
	insights := in.Insights
	if insights == nil {
		insights = []string{}
	}
	return InsightsResponse{
		MonthlyTotal:      in.MonthlyTotal.Round(2).InexactFloat64(),
		CategoryBreakdown: breakdown,
		Insights:          insights,
	}
}

type ServiceAPI interface {
	GetInsights(ctx context.Context, userID int64) (*Insights, error)
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

func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	insights, err := h.Service.GetInsights(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponse(insights))
}
