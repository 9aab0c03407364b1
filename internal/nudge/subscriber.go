package nudge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/receiptlens/internal/core/events"
)

const (
	failedTitle    = "Receipt processing failed"
	failedMessage  = "We couldn't process one of your receipts. Please try uploading it again."
	degradedTitle  = "Check your receipt"
	degradedFormat = "We couldn't read every detail of your receipt from %s. Review it and update the amount or category if needed."
)

type Creator interface {
	Create(ctx context.Context, n *Nudge) error
}

// Subscriber turns receipt outcome events into nudges.
type Subscriber struct {
	creator Creator
	logger  *slog.Logger
}

func NewSubscriber(creator Creator, logger *slog.Logger) *Subscriber {
	return &Subscriber{creator: creator, logger: logger}
}

func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeReceiptFailed, s.HandleReceiptFailed)
	bus.Subscribe(events.EventTypeReceiptCompleted, s.HandleReceiptCompleted)
}

func (s *Subscriber) HandleReceiptFailed(ctx context.Context, e events.Event) error {
	failed, ok := e.(*events.ReceiptFailedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}

	s.logger.Info("creating alert for failed receipt",
		"receipt_id", failed.ReceiptID,
		"user_id", failed.UserID,
		"reason", failed.Reason)

	return s.creator.Create(ctx, &Nudge{
		UserID:  failed.UserID,
		Title:   failedTitle,
		Message: failedMessage,
		Type:    TypeAlert,
	})
}

// HandleReceiptCompleted only reacts to receipts stored with default values.
func (s *Subscriber) HandleReceiptCompleted(ctx context.Context, e events.Event) error {
	completed, ok := e.(*events.ReceiptCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", e)
	}
	if !completed.Degraded {
		return nil
	}

	return s.creator.Create(ctx, &Nudge{
		UserID:  completed.UserID,
		Title:   degradedTitle,
		Message: fmt.Sprintf(degradedFormat, completed.MerchantName),
		Type:    TypeNudge,
	})
}
