package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	receiptDatamodel "github.com/frahmantamala/receiptlens/internal/core/datamodel/receipt"
	"github.com/frahmantamala/receiptlens/internal/receipt"
)

// ReceiptRepository implements receipt.Repository using GORM
type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) Create(ctx context.Context, rec *receipt.Receipt) error {
	model := receipt.ToDataModel(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	rec.ID = model.ID
	rec.CreatedAt = model.CreatedAt
	rec.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*receipt.Receipt, error) {
	var model receiptDatamodel.Receipt
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, receipt.ErrReceiptNotFound
		}
		return nil, err
	}
	return receipt.FromDataModel(&model), nil
}

// ListByUser returns the user's receipts, newest first.
func (r *ReceiptRepository) ListByUser(ctx context.Context, userID int64) ([]*receipt.Receipt, error) {
	var models []*receiptDatamodel.Receipt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return receipt.FromDataModelSlice(models), nil
}

// Complete writes the extracted fields and moves the receipt to completed.
// The status guard keeps terminal receipts immutable. The returned receipt is
// the row read before the write with c applied.
func (r *ReceiptRepository) Complete(ctx context.Context, id int64, c receipt.Completion) (*receipt.Receipt, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, receipt.ErrReceiptFinalized
	}

	now := time.Now()
	date := c.Date
	res := r.db.WithContext(ctx).
		Model(&receiptDatamodel.Receipt{}).
		Where("id = ? AND status = ?", id, string(receipt.StatusProcessing)).
		Updates(map[string]interface{}{
			"merchant_name": c.MerchantName,
			"amount":        decimal.NewNullDecimal(c.Amount.Round(2)),
			"currency":      c.Currency,
			"amount_in_usd": decimal.NewNullDecimal(c.AmountInUSD.Round(2)),
			"date":          &date,
			"category":      c.Category,
			"items":         receipt.ItemsToDataModel(c.Items),
			"raw_text":      c.RawText,
			"status":        string(receipt.StatusCompleted),
			"updated_at":    now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	// Lost a race with MarkFailed between the read and the write.
	if res.RowsAffected == 0 {
		return nil, receipt.ErrReceiptFinalized
	}

	current.Apply(c, now)
	return current, nil
}

func (r *ReceiptRepository) MarkFailed(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&receiptDatamodel.Receipt{}).
		Where("id = ? AND status = ?", id, string(receipt.StatusProcessing)).
		Updates(map[string]interface{}{
			"status":     string(receipt.StatusFailed),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStaleProcessing returns processing receipts created before the cutoff, oldest first.
func (r *ReceiptRepository) ListStaleProcessing(ctx context.Context, createdBefore time.Time) ([]*receipt.Receipt, error) {
	var models []*receiptDatamodel.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(receipt.StatusProcessing), createdBefore).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return receipt.FromDataModelSlice(models), nil
}
