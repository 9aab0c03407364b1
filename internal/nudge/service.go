package nudge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/frahmantamala/receiptlens/internal"
)

type Repository interface {
	Create(ctx context.Context, n *Nudge) error
	ListByUser(ctx context.Context, userID int64) ([]*Nudge, error)
	// MarkRead sets is_read on a nudge owned by userID and returns it.
	MarkRead(ctx context.Context, userID, id int64) (*Nudge, error)
}

type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// List returns the user's nudges, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*Nudge, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}

	nudges, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list nudges", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("Failed to fetch nudges", err)
	}
	return nudges, nil
}

// MarkRead is idempotent. A nudge that is missing or owned by someone else
// is reported as not found.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) (*Nudge, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}

	n, err := s.repo.MarkRead(ctx, userID, id)
	if errors.Is(err, ErrNudgeNotFound) {
		return nil, ErrNudgeNotFound
	}
	if err != nil {
		s.logger.Error("failed to mark nudge read", "error", err, "nudge_id", id, "user_id", userID)
		return nil, internal.NewInternalError("Failed to update nudge", err)
	}
	return n, nil
}

func (s *Service) Create(ctx context.Context, n *Nudge) error {
	if err := s.validate.Struct(n); err != nil {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("failed to create nudge", "error", err, "user_id", n.UserID)
		return internal.NewInternalError("Failed to create nudge", err)
	}

	s.logger.Info("nudge created", "nudge_id", n.ID, "user_id", n.UserID, "type", n.Type)
	return nil
}
