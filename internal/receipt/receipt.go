package receipt

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	receiptDatamodel "github.com/frahmantamala/receiptlens/internal/core/datamodel/receipt"
	"github.com/frahmantamala/receiptlens/internal/exchangerate"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	PlaceholderMerchant = "Processing..."
	DefaultMerchant     = "Unknown Merchant"
	DefaultCategory     = "Uncategorized"
)

type LineItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity *int
}

type Receipt struct {
	ID           int64
	UserID       int64
	ImageURL     string
	MerchantName *string
	Amount       *decimal.Decimal
	Currency     string
	AmountInUSD  *decimal.Decimal
	Date         *time.Time
	Category     *string
	Items        []LineItem
	RawText      *string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Completion carries the final field values written when extraction resolves.
type Completion struct {
	MerchantName string
	Amount       decimal.Decimal
	Currency     string
	AmountInUSD  decimal.Decimal
	Date         time.Time
	Category     string
	Items        []LineItem
	RawText      string
}

func NewPlaceholder(userID int64, imageURL string, now time.Time) *Receipt {
	merchant := PlaceholderMerchant
	zero := decimal.Zero
	return &Receipt{
		UserID:       userID,
		ImageURL:     imageURL,
		MerchantName: &merchant,
		Amount:       &zero,
		Currency:     exchangerate.ReferenceCurrency,
		Items:        []LineItem{},
		Status:       StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply copies c onto the receipt and marks it completed. Amounts are rounded
// the way they are stored.
func (r *Receipt) Apply(c Completion, at time.Time) {
	merchant, category, raw, date := c.MerchantName, c.Category, c.RawText, c.Date
	amount, usd := c.Amount.Round(2), c.AmountInUSD.Round(2)
	r.MerchantName = &merchant
	r.Amount = &amount
	r.Currency = c.Currency
	r.AmountInUSD = &usd
	r.Date = &date
	r.Category = &category
	r.Items = append([]LineItem{}, c.Items...)
	r.RawText = &raw
	r.Status = StatusCompleted
	r.UpdatedAt = at
}

// ReferenceAmount is the value used for aggregation: the USD amount when
// known, else the original amount, else zero.
func (r *Receipt) ReferenceAmount() decimal.Decimal {
	if r.AmountInUSD != nil {
		return *r.AmountInUSD
	}
	if r.Amount != nil {
		return *r.Amount
	}
	return decimal.Zero
}

func (r *Receipt) CategoryOrDefault() string {
	if r.Category == nil || *r.Category == "" {
		return DefaultCategory
	}
	return *r.Category
}

func ToDataModel(r *Receipt) *receiptDatamodel.Receipt {
	return &receiptDatamodel.Receipt{
		ID:           r.ID,
		UserID:       r.UserID,
		ImageURL:     r.ImageURL,
		MerchantName: r.MerchantName,
		Amount:       toNullDecimal(r.Amount),
		Currency:     r.Currency,
		AmountInUSD:  toNullDecimal(r.AmountInUSD),
		Date:         r.Date,
		Category:     r.Category,
		Items:        ItemsToDataModel(r.Items),
		RawText:      r.RawText,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func FromDataModel(m *receiptDatamodel.Receipt) *Receipt {
	items := make([]LineItem, len(m.Items))
	for i, it := range m.Items {
		items[i] = LineItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return &Receipt{
		ID:           m.ID,
		UserID:       m.UserID,
		ImageURL:     m.ImageURL,
		MerchantName: m.MerchantName,
		Amount:       fromNullDecimal(m.Amount),
		Currency:     m.Currency,
		AmountInUSD:  fromNullDecimal(m.AmountInUSD),
		Date:         m.Date,
		Category:     m.Category,
		Items:        items,
		RawText:      m.RawText,
		Status:       Status(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*receiptDatamodel.Receipt) []*Receipt {
	result := make([]*Receipt, len(rows))
	for i, row := range rows {
		result[i] = FromDataModel(row)
	}
	return result
}

func ItemsToDataModel(items []LineItem) datatypes.JSONSlice[receiptDatamodel.LineItem] {
	out := make([]receiptDatamodel.LineItem, len(items))
	for i, it := range items {
		out[i] = receiptDatamodel.LineItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return datatypes.NewJSONSlice(out)
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
