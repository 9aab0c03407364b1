package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

const MaxInsights = 3

const insightsPrompt = "Analyze these expenses and provide 3 brief, actionable insights or nudges for the user. " +
	"Focus on spending habits, category spikes, or saving opportunities. Answer with one insight per line. " +
	"Expenses: %s"

var bulletPrefix = regexp.MustCompile(`^\s*(?:[•\-*]+\s*|\d+[.)]\s+)`)

// Transaction is the slice of a receipt the insight prompt needs.
type Transaction struct {
	MerchantName string
	Amount       decimal.Decimal
	Currency     string
	AmountInUSD  *decimal.Decimal
	Category     string
	Date         *time.Time
}

type promptTransaction struct {
	Merchant    string   `json:"merchant,omitempty"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency,omitempty"`
	AmountInUSD *float64 `json:"amountInUsd,omitempty"`
	Category    string   `json:"category,omitempty"`
	Date        string   `json:"date,omitempty"`
}

type InsightResult struct {
	Insights []string
	Degraded bool
	Err      error
}

// GenerateInsights asks the model for at most MaxInsights observations about
// the first transactions of txs. Callers pass the newest first.
func (c *Client) GenerateInsights(ctx context.Context, txs []Transaction) InsightResult {
	if len(txs) == 0 {
		return InsightResult{Insights: []string{}}
	}
	if len(txs) > c.maxTransactions {
		txs = txs[:c.maxTransactions]
	}

	payload, err := json.Marshal(toPromptTransactions(txs))
	if err != nil {
		return InsightResult{Insights: []string{}, Degraded: true, Err: err}
	}

	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(insightsPrompt, payload)},
		},
	})
	if err != nil {
		c.logger.Warn("insight generation failed", "error", err, "transactions", len(txs))
		return InsightResult{Insights: []string{}, Degraded: true, Err: err}
	}

	return InsightResult{Insights: splitInsights(content)}
}

func splitInsights(content string) []string {
	insights := make([]string, 0, MaxInsights)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		insights = append(insights, line)
		if len(insights) == MaxInsights {
			break
		}
	}
	return insights
}

func toPromptTransactions(txs []Transaction) []promptTransaction {
	out := make([]promptTransaction, len(txs))
	for i, tx := range txs {
		pt := promptTransaction{
			Merchant: tx.MerchantName,
			Amount:   tx.Amount.InexactFloat64(),
			Currency: tx.Currency,
			Category: tx.Category,
		}
		if tx.AmountInUSD != nil {
			v := tx.AmountInUSD.InexactFloat64()
			pt.AmountInUSD = &v
		}
		if tx.Date != nil {
			pt.Date = tx.Date.Format("2006-01-02")
		}
		out[i] = pt
	}
	return out
}
