package receipt

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type LineItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity *int            `json:"quantity,omitempty"`
}

type Receipt struct {
	ID           int64                         `gorm:"primaryKey"`
	UserID       int64                         `gorm:"column:user_id;not null;index"`
	ImageURL     string                        `gorm:"column:image_url;not null"`
	MerchantName *string                       `gorm:"column:merchant_name"`
	Amount       decimal.NullDecimal           `gorm:"column:amount;type:numeric(14,2)"`
	Currency     string                        `gorm:"column:currency;size:3;not null;default:'USD'"`
	AmountInUSD  decimal.NullDecimal           `gorm:"column:amount_in_usd;type:numeric(14,2)"`
	Date         *time.Time                    `gorm:"column:date"`
	Category     *string                       `gorm:"column:category"`
	Items        datatypes.JSONSlice[LineItem] `gorm:"column:items"`
	RawText      *string                       `gorm:"column:raw_text"`
	Status       string                        `gorm:"column:status;not null;default:'processing';index"`
	CreatedAt    time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (Receipt) TableName() string {
	return "receipts"
}
