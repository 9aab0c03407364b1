package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

const extractionPrompt = "Analyze this receipt image. Extract the merchant name, total amount, date, " +
	"category (e.g., Food, Transport, Utilities), a list of items with their prices, and the currency " +
	"code (e.g., USD, EUR, GBP, JPY). Return the result as a JSON object with the keys merchant_name, " +
	"total_amount, date (YYYY-MM-DD), category, currency and items (an array of objects with name, price " +
	"and quantity)."

type LineItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity *int
}

// ReceiptExtraction is a best-effort reading of a receipt. A degraded
// extraction carries no fields at all.
type ReceiptExtraction struct {
	MerchantName string
	// Amount is nil only for degraded extractions; a successful one
	// defaults to zero.
	Amount   *decimal.Decimal
	Currency string
	Date     *time.Time
	Category string
	Items    []LineItem
	RawText  string
	Degraded bool
	Err      error
}

// ExtractReceipt sends imageURL to the vision model and maps the JSON reply.
// It never returns an error; failures come back as a degraded extraction.
func (c *Client) ExtractReceipt(ctx context.Context, imageURL string) ReceiptExtraction {
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: extractionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Warn("receipt extraction failed", "error", err)
		return ReceiptExtraction{Degraded: true, Err: err}
	}

	extraction, err := parseExtraction(content)
	if err != nil {
		c.logger.Warn("receipt extraction returned malformed JSON", "error", err)
		return ReceiptExtraction{Degraded: true, Err: err}
	}
	return extraction
}

func parseExtraction(content string) (ReceiptExtraction, error) {
	payload := extractJSONObject(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return ReceiptExtraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	if data == nil {
		return ReceiptExtraction{}, fmt.Errorf("decode extraction: %w", ErrEmptyCompletion)
	}

	amount := decimal.Zero
	if v, ok := firstValue(data, amountKeys...); ok {
		amount = parseAmount(v)
	}

	currency := parseCurrency(firstString(data, currencyKeys...))
	if currency == "" {
		currency = "USD"
	}

	items := []LineItem{}
	if v, ok := firstValue(data, itemsKeys...); ok {
		items = parseItems(v)
	}

	return ReceiptExtraction{
		MerchantName: firstString(data, merchantKeys...),
		Amount:       &amount,
		Currency:     currency,
		Date:         parseDate(firstString(data, dateKeys...)),
		Category:     firstString(data, categoryKeys...),
		Items:        items,
		RawText:      payload,
	}, nil
}
