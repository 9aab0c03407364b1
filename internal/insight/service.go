// Package insight aggregates a user's receipts into spending totals and asks
// the insight generator for short observations about them.
package insight

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/llm"
	"github.com/frahmantamala/receiptlens/internal/receipt"
)

// ReceiptLister is the read side of the receipt store. Receipts come back
// newest first.
type ReceiptLister interface {
	ListByUser(ctx context.Context, userID int64) ([]*receipt.Receipt, error)
}

type Generator interface {
	GenerateInsights(ctx context.Context, txs []llm.Transaction) llm.InsightResult
}

type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

type Insights struct {
	MonthlyTotal      decimal.Decimal
	CategoryBreakdown []CategoryAmount
	Insights          []string
	// Degraded is set when the generator failed and Insights is empty.
	Degraded bool
}

type Service struct {
	receipts  ReceiptLister
	generator Generator
	logger    *slog.Logger
}

func NewService(receipts ReceiptLister, generator Generator, logger *slog.Logger) *Service {
	return &Service{receipts: receipts, generator: generator, logger: logger}
}

// GetInsights recomputes the aggregation from every stored receipt of the
// user. The total covers all receipts regardless of date.
func (s *Service) GetInsights(ctx context.Context, userID int64) (*Insights, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}

	receipts, err := s.receipts.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load receipts for insights", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("Failed to generate insights", err)
	}

	result := Aggregate(receipts)
	if len(receipts) == 0 {
		return result, nil
	}

	generated := s.generator.GenerateInsights(ctx, toTransactions(receipts))
	if generated.Degraded {
		s.logger.Warn("insight generation degraded", "error", generated.Err, "user_id", userID)
	}
	if generated.Insights != nil {
		result.Insights = generated.Insights
	}
	result.Degraded = generated.Degraded

	return result, nil
}

// Aggregate sums receipts into a total and a per-category breakdown kept in
// order of first appearance.
func Aggregate(receipts []*receipt.Receipt) *Insights {
	result := &Insights{
		MonthlyTotal:      decimal.Zero,
		CategoryBreakdown: []CategoryAmount{},
		Insights:          []string{},
	}

	index := make(map[string]int)
	for _, r := range receipts {
		value := r.ReferenceAmount()
		result.MonthlyTotal = result.MonthlyTotal.Add(value)

		category := r.CategoryOrDefault()
		i, seen := index[category]
		if !seen {
			index[category] = len(result.CategoryBreakdown)
			result.CategoryBreakdown = append(result.CategoryBreakdown, CategoryAmount{Category: category, Amount: value})
			continue
		}
		result.CategoryBreakdown[i].Amount = result.CategoryBreakdown[i].Amount.Add(value)
	}

	return result
}

func toTransactions(receipts []*receipt.Receipt) []llm.Transaction {
	txs := make([]llm.Transaction, len(receipts))
	for i, r := range receipts {
		tx := llm.Transaction{
			Currency:    r.Currency,
			AmountInUSD: r.AmountInUSD,
			Category:    r.CategoryOrDefault(),
			Date:        r.Date,
		}
		if r.MerchantName != nil {
			tx.MerchantName = *r.MerchantName
		}
		if r.Amount != nil {
			tx.Amount = *r.Amount
		}
		txs[i] = tx
	}
	return txs
}
