package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	nudgeDatamodel "github.com/frahmantamala/receiptlens/internal/core/datamodel/nudge"
	"github.com/frahmantamala/receiptlens/internal/nudge"
)

const nudgeColumns = "id, user_id, title, message, type, is_read, created_at"

// NudgeRepository implements nudge.Repository on sqlx.
type NudgeRepository struct {
	db *sqlx.DB
}

func NewNudgeRepository(db *sqlx.DB) *NudgeRepository {
	return &NudgeRepository{db: db}
}

func (r *NudgeRepository) Create(ctx context.Context, n *nudge.Nudge) error {
	row := nudge.ToDataModel(n)
	query := r.db.Rebind(`INSERT INTO nudges (user_id, title, message, type, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)

	if err := r.db.QueryRowxContext(ctx, query,
		row.UserID, row.Title, row.Message, row.Type, row.IsRead, row.CreatedAt,
	).Scan(&n.ID); err != nil {
		return err
	}
	return nil
}

func (r *NudgeRepository) ListByUser(ctx context.Context, userID int64) ([]*nudge.Nudge, error) {
	query := r.db.Rebind(`SELECT ` + nudgeColumns + ` FROM nudges
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`)

	var rows []*nudgeDatamodel.Nudge
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	out := make([]*nudge.Nudge, len(rows))
	for i, row := range rows {
		out[i] = nudge.FromDataModel(row)
	}
	return out, nil
}

func (r *NudgeRepository) MarkRead(ctx context.Context, userID, id int64) (*nudge.Nudge, error) {
	query := r.db.Rebind(`UPDATE nudges SET is_read = ?
		WHERE id = ? AND user_id = ? RETURNING ` + nudgeColumns)

	var row nudgeDatamodel.Nudge
	if err := r.db.GetContext(ctx, &row, query, true, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nudge.ErrNudgeNotFound
		}
		return nil, err
	}
	return nudge.FromDataModel(&row), nil
}
