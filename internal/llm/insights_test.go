package llm_test

import (
	"context"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/receiptlens/internal/llm"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

var _ = Describe("GenerateInsights", func() {
	var (
		fake   *fakeCompletions
		client *llm.Client
		ctx    context.Context
	)

	transactions := func(n int) []llm.Transaction {
		txs := make([]llm.Transaction, n)
		for i := range txs {
			txs[i] = llm.Transaction{
				MerchantName: fmt.Sprintf("merchant-%02d", i),
				Amount:       decimal.NewFromInt(int64(i + 1)),
				Currency:     "USD",
				Category:     "Food",
			}
		}
		return txs
	}

	BeforeEach(func() {
		fake = newFakeCompletions()
		client = llm.NewClient(llm.Config{BaseURL: fake.URL(), Timeout: 2 * time.Second, MaxTransactions: 5}, logger.Discard())
		ctx = context.Background()
	})

	AfterEach(func() {
		fake.Close()
	})

	It("splits lines, strips bullets and keeps three", func() {
		// Given
		fake.reply(http.StatusOK, "• Groceries are up\n\n- Transport is steady\n  \n1. Cancel a subscription\n* Fourth one")

		// When
		res := client.GenerateInsights(ctx, transactions(2))

		// Then
		Expect(res.Degraded).To(BeFalse())
		Expect(res.Insights).To(Equal([]string{
			"Groceries are up",
			"Transport is steady",
			"Cancel a subscription",
		}))
	})

	It("keeps numbers that open a sentence", func() {
		// Given
		fake.reply(http.StatusOK, "1.5x more spent on dining this week\n2) Transport is steady\n3. 20% of spending went to rent")

		// When
		res := client.GenerateInsights(ctx, transactions(2))

		// Then
		Expect(res.Insights).To(Equal([]string{
			"1.5x more spent on dining this week",
			"Transport is steady",
			"20% of spending went to rent",
		}))
	})

	It("sends at most the configured number of transactions", func() {
		fake.reply(http.StatusOK, "ok")

		client.GenerateInsights(ctx, transactions(8))

		reqs := fake.Requests()
		Expect(reqs).To(HaveLen(1))
		prompt := reqs[0]["messages"].([]any)[0].(map[string]any)["content"].(string)
		Expect(prompt).To(ContainSubstring("merchant-04"))
		Expect(prompt).NotTo(ContainSubstring("merchant-05"))
		Expect(reqs[0]).NotTo(HaveKey("response_format"))
	})

	It("does not call the model for an empty list", func() {
		res := client.GenerateInsights(ctx, nil)

		Expect(res.Insights).To(BeEmpty())
		Expect(res.Insights).NotTo(BeNil())
		Expect(fake.Requests()).To(BeEmpty())
	})

	It("returns an empty list when the model fails", func() {
		fake.reply(http.StatusBadGateway, "")

		res := client.GenerateInsights(ctx, transactions(1))

		Expect(res.Degraded).To(BeTrue())
		Expect(res.Insights).To(BeEmpty())
		Expect(res.Insights).NotTo(BeNil())
	})
})
