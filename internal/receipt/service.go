package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/blobstore"
	"github.com/frahmantamala/receiptlens/internal/core/events"
	"github.com/frahmantamala/receiptlens/internal/exchangerate"
	"github.com/frahmantamala/receiptlens/internal/llm"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

// Repository interface defines the data access methods for receipts
type Repository interface {
	Create(ctx context.Context, receipt *Receipt) error
	GetByID(ctx context.Context, id int64) (*Receipt, error)
	ListByUser(ctx context.Context, userID int64) ([]*Receipt, error)
	// Complete applies c only while the receipt is still processing.
	Complete(ctx context.Context, id int64, c Completion) (*Receipt, error)
	// MarkFailed reports whether the receipt moved from processing to failed.
	MarkFailed(ctx context.Context, id int64) (bool, error)
	ListStaleProcessing(ctx context.Context, createdBefore time.Time) ([]*Receipt, error)
}

type Extractor interface {
	ExtractReceipt(ctx context.Context, imageURL string) llm.ReceiptExtraction
}

type Normalizer interface {
	ToReference(ctx context.Context, amount decimal.Decimal, currency string) exchangerate.Conversion
}

type Service struct {
	repo       Repository
	extractor  Extractor
	normalizer Normalizer
	blobs      blobstore.Store
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	repo Repository,
	extractor Extractor,
	normalizer Normalizer,
	blobs blobstore.Store,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		extractor:  extractor,
		normalizer: normalizer,
		blobs:      blobs,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest stores the image, records a processing placeholder, runs extraction
// and currency normalization, and finalizes the receipt. Any failure after
// the placeholder exists leaves the receipt in the failed state.
func (s *Service) Ingest(ctx context.Context, userID int64, image []byte, contentType string) (*Receipt, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}
	if len(image) == 0 {
		return nil, ErrNoImage
	}
	if !IsImageContentType(contentType) {
		return nil, ErrUnsupportedImage
	}

	log := logger.FromOr(ctx, s.logger).With("user_id", userID)

	imageRef, err := s.blobs.Put(ctx, userID, image, contentType)
	if err != nil {
		log.Error("failed to store receipt image", "error", err)
		return nil, ErrProcessingFailed.WithCause(err)
	}

	placeholder := NewPlaceholder(userID, imageRef, s.now())
	if err := s.repo.Create(ctx, placeholder); err != nil {
		log.Error("failed to create receipt placeholder", "error", err)
		return nil, ErrProcessingFailed.WithCause(err)
	}
	log = log.With("receipt_id", placeholder.ID)
	log.Info("receipt placeholder created")

	receipt, err := s.finalize(ctx, placeholder, log)
	if err != nil {
		log.Error("receipt processing failed", "error", err)
		s.fail(ctx, placeholder, err.Error(), log)
		return nil, ErrProcessingFailed.WithCause(err)
	}

	s.resolveImage(ctx, receipt)
	return receipt, nil
}

func (s *Service) finalize(ctx context.Context, placeholder *Receipt, log *slog.Logger) (*Receipt, error) {
	imageURL, err := s.blobs.URL(ctx, placeholder.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("resolve image url: %w", err)
	}

	extraction := s.extractor.ExtractReceipt(ctx, imageURL)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request ended during extraction: %w", err)
	}
	if extraction.Degraded {
		log.Warn("extraction degraded, storing defaults", "error", extraction.Err)
	}

	completion := completionFrom(extraction, s.now())
	if !extraction.Degraded && !completion.Amount.IsZero() && completion.Currency != exchangerate.ReferenceCurrency {
		conv := s.normalizer.ToReference(ctx, completion.Amount, completion.Currency)
		if conv.Degraded {
			log.Warn("currency conversion unavailable, keeping original amount",
				"currency", completion.Currency,
				"error", conv.Err)
		}
		completion.AmountInUSD = conv.Amount
	}

	receipt, err := s.repo.Complete(ctx, placeholder.ID, completion)
	if err != nil {
		return nil, fmt.Errorf("complete receipt: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.NewReceiptCompletedEvent(
		receipt.ID, receipt.UserID, completion.MerchantName, completion.Category, extraction.Degraded,
	)); err != nil {
		log.Warn("failed to publish receipt completed event", "error", err)
	}

	log.Info("receipt processed",
		"merchant", completion.MerchantName,
		"currency", completion.Currency,
		"amount_in_usd", completion.AmountInUSD.String(),
		"degraded", extraction.Degraded)

	return receipt, nil
}

// fail runs on a context detached from the request so a dropped client
// cannot leave the receipt stuck in processing.
func (s *Service) fail(ctx context.Context, receipt *Receipt, reason string, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)

	moved, err := s.repo.MarkFailed(ctx, receipt.ID)
	if err != nil {
		log.Error("failed to mark receipt as failed", "error", err)
		return
	}
	if !moved {
		return
	}

	if err := s.publisher.Publish(ctx, events.NewReceiptFailedEvent(receipt.ID, receipt.UserID, reason)); err != nil {
		log.Warn("failed to publish receipt failed event", "error", err)
	}
}

// List returns the caller's receipts, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*Receipt, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}

	receipts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list receipts", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("Failed to fetch receipts", err)
	}
	for _, r := range receipts {
		s.resolveImage(ctx, r)
	}
	return receipts, nil
}

// Get returns a single receipt. Receipts owned by someone else are reported
// as not found.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Receipt, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}

	receipt, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrReceiptNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		s.logger.Error("failed to get receipt", "error", err, "receipt_id", id)
		return nil, internal.NewInternalError("Failed to fetch receipt", err)
	}

	if receipt.UserID != userID {
		s.logger.Warn("receipt requested by non-owner",
			"receipt_id", id,
			"user_id", userID,
			"owner_id", receipt.UserID)
		return nil, ErrReceiptNotFound
	}

	s.resolveImage(ctx, receipt)
	return receipt, nil
}

// resolveImage swaps the stored image reference for a fetchable URL. On
// failure the reference is left in place.
func (s *Service) resolveImage(ctx context.Context, r *Receipt) {
	url, err := s.blobs.URL(ctx, r.ImageURL)
	if err != nil {
		logger.FromOr(ctx, s.logger).Warn("failed to resolve receipt image url", "error", err, "receipt_id", r.ID)
		return
	}
	r.ImageURL = url
}

// ReconcileStale fails receipts that have been processing for longer than
// olderThan and returns how many were moved.
func (s *Service) ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	stale, err := s.repo.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale receipts: %w", err)
	}

	moved := 0
	for _, r := range stale {
		log := s.logger.With("receipt_id", r.ID, "user_id", r.UserID)
		ok, err := s.repo.MarkFailed(ctx, r.ID)
		if err != nil {
			log.Error("failed to mark stale receipt as failed", "error", err)
			continue
		}
		if !ok {
			continue
		}
		moved++
		if err := s.publisher.Publish(ctx, events.NewReceiptFailedEvent(r.ID, r.UserID, "processing timed out")); err != nil {
			log.Warn("failed to publish receipt failed event", "error", err)
		}
	}

	if moved > 0 {
		s.logger.Info("stale receipts reconciled", "count", moved, "cutoff", cutoff)
	}
	return moved, nil
}

func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func completionFrom(ex llm.ReceiptExtraction, now time.Time) Completion {
	c := Completion{
		MerchantName: DefaultMerchant,
		Amount:       decimal.Zero,
		Currency:     exchangerate.ReferenceCurrency,
		Date:         now,
		Category:     DefaultCategory,
		Items:        make([]LineItem, 0, len(ex.Items)),
		RawText:      ex.RawText,
	}

	if ex.MerchantName != "" {
		c.MerchantName = ex.MerchantName
	}
	if ex.Amount != nil && !ex.Amount.IsNegative() {
		c.Amount = *ex.Amount
	}
	if ex.Currency != "" {
		c.Currency = ex.Currency
	}
	if ex.Date != nil {
		c.Date = *ex.Date
	}
	if ex.Category != "" {
		c.Category = ex.Category
	}
	for _, it := range ex.Items {
		c.Items = append(c.Items, LineItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}

	c.AmountInUSD = c.Amount
	return c
}
