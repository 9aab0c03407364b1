package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Accepted keys per field, in priority order. The first present, non-empty
// value wins.
var (
	merchantKeys = []string{"merchant_name", "merchantName", "merchant", "store_name", "storeName"}
	amountKeys   = []string{"total_amount", "totalAmount", "amount", "total"}
	dateKeys     = []string{"date", "transaction_date", "transactionDate", "purchase_date"}
	categoryKeys = []string{"category"}
	currencyKeys = []string{"currency", "currency_code", "currencyCode"}
	itemsKeys    = []string{"items", "line_items", "lineItems"}

	itemNameKeys     = []string{"name", "description", "item"}
	itemPriceKeys    = []string{"price", "unit_price", "unitPrice", "amount", "total"}
	itemQuantityKeys = []string{"quantity", "qty"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var (
	nonNumeric      = regexp.MustCompile(`[^0-9.,\-]`)
	commaDecimal    = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

func firstValue(data map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func firstString(data map[string]any, keys ...string) string {
	v, ok := firstValue(data, keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// parseAmount coerces a number or numeric-looking string into a
// non-negative decimal. Anything unusable becomes zero.
func parseAmount(v any) decimal.Decimal {
	var d decimal.Decimal
	var err error

	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case float64:
		d = decimal.NewFromFloat(t)
	case string:
		d, err = decimal.NewFromString(normalizeNumber(t))
	default:
		return decimal.Zero
	}

	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// normalizeNumber strips currency symbols and digit grouping. When both
// separators appear, the last one is the decimal point.
func normalizeNumber(s string) string {
	s = nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma > dot:
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case commaDecimal.MatchString(s):
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseCurrency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !currencyPattern.MatchString(s) {
		return ""
	}
	return s
}

func parseQuantity(v any) *int {
	var n int
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return nil
			}
			i = int64(f)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	if n <= 0 {
		return nil
	}
	return &n
}

func parseItems(v any) []LineItem {
	raw, ok := v.([]any)
	if !ok {
		return []LineItem{}
	}

	items := make([]LineItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := firstString(m, itemNameKeys...)
		var price decimal.Decimal
		if pv, ok := firstValue(m, itemPriceKeys...); ok {
			price = parseAmount(pv)
		}
		if name == "" && price.IsZero() {
			continue
		}
		item := LineItem{Name: name, Price: price}
		if qv, ok := firstValue(m, itemQuantityKeys...); ok {
			item.Quantity = parseQuantity(qv)
		}
		items = append(items, item)
	}
	return items
}
