package nudge

import (
	"time"

	"github.com/frahmantamala/receiptlens/internal"
	nudgeDatamodel "github.com/frahmantamala/receiptlens/internal/core/datamodel/nudge"
)

type Type string

const (
	TypeAlert   Type = "alert"
	TypeInsight Type = "insight"
	TypeNudge   Type = "nudge"
)

type Nudge struct {
	ID        int64
	UserID    int64  `validate:"gt=0"`
	Title     string `validate:"required,max=255"`
	Message   string `validate:"required"`
	Type      Type   `validate:"oneof=alert insight nudge"`
	IsRead    bool
	CreatedAt time.Time
}

var ErrNudgeNotFound = internal.NewNotFoundError("Nudge not found", internal.ErrCodeNudgeNotFound)

func ToDataModel(n *Nudge) *nudgeDatamodel.Nudge {
	return &nudgeDatamodel.Nudge{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func FromDataModel(m *nudgeDatamodel.Nudge) *Nudge {
	return &Nudge{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Message:   m.Message,
		Type:      Type(m.Type),
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}
