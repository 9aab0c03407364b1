package nudge

import "time"

type NudgeResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToResponse(n *Nudge) NudgeResponse {
	return NudgeResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func ToResponseList(nudges []*Nudge) []NudgeResponse {
	out := make([]NudgeResponse, len(nudges))
	for i, n := range nudges {
		out[i] = ToResponse(n)
	}
	return out
}
