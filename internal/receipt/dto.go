package receipt

import "time"

type LineItemResponse struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity *int    `json:"quantity,omitempty"`
}

// ReceiptResponse is the wire shape of a receipt. Numbers are plain JSON
// numbers with at most two decimals.
type ReceiptResponse struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"userId"`
	ImageURL     string             `json:"imageUrl"`
	MerchantName *string            `json:"merchantName"`
	Amount       *float64           `json:"amount"`
	Currency     string             `json:"currency"`
	AmountInUSD  *float64           `json:"amountInUsd"`
	Date         *time.Time         `json:"date"`
	Category     *string            `json:"category"`
	Items        []LineItemResponse `json:"items"`
	RawText      *string            `json:"rawText"`
	Status       Status             `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func ToResponse(r *Receipt) ReceiptResponse {
	items := make([]LineItemResponse, len(r.Items))
	for i, it := range r.Items {
		items[i] = LineItemResponse{
			Name:     it.Name,
			Price:    it.Price.Round(2).InexactFloat64(),
			Quantity: it.Quantity,
		}
	}

	resp := ReceiptResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		ImageURL:     r.ImageURL,
		MerchantName: r.MerchantName,
		Currency:     r.Currency,
		Date:         r.Date,
		Category:     r.Category,
		Items:        items,
		RawText:      r.RawText,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	}
	if r.Amount != nil {
		v := r.Amount.Round(2).InexactFloat64()
		resp.Amount = &v
	}
	if r.AmountInUSD != nil {
		v := r.AmountInUSD.Round(2).InexactFloat64()
		resp.AmountInUSD = &v
	}
	return resp
}

func ToResponseList(receipts []*Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, len(receipts))
	for i, r := range receipts {
		out[i] = ToResponse(r)
	}
	return out
}
