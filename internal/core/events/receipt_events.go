package events

const (
	EventTypeReceiptCompleted = "receipt.completed"
	EventTypeReceiptFailed    = "receipt.failed"
)

type ReceiptCompletedEvent struct {
	Meta
	ReceiptID    int64  `json:"receipt_id"`
	UserID       int64  `json:"user_id"`
	MerchantName string `json:"merchant_name"`
	Category     string `json:"category"`
	// Degraded is set when extraction failed and defaults were stored.
	Degraded bool `json:"degraded"`
}

func NewReceiptCompletedEvent(receiptID, userID int64, merchantName, category string, degraded bool) *ReceiptCompletedEvent {
	return &ReceiptCompletedEvent{
		Meta:         newMeta(EventTypeReceiptCompleted),
		ReceiptID:    receiptID,
		UserID:       userID,
		MerchantName: merchantName,
		Category:     category,
		Degraded:     degraded,
	}
}

type ReceiptFailedEvent struct {
	Meta
	ReceiptID int64  `json:"receipt_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
}

func NewReceiptFailedEvent(receiptID, userID int64, reason string) *ReceiptFailedEvent {
	return &ReceiptFailedEvent{
		Meta:      newMeta(EventTypeReceiptFailed),
		ReceiptID: receiptID,
		UserID:    userID,
		Reason:    reason,
	}
}
