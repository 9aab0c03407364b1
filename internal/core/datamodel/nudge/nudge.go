package nudge

import "time"

// Nudge is the sqlx row shape of the nudges table.
type Nudge struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}
