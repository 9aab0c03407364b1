package llm_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/receiptlens/internal/llm"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

var _ = Describe("ExtractReceipt", func() {
	var (
		fake   *fakeCompletions
		client *llm.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		fake = newFakeCompletions()
		client = llm.NewClient(llm.Config{BaseURL: fake.URL(), APIKey: "test", Timeout: 2 * time.Second}, logger.Discard())
		ctx = context.Background()
	})

	AfterEach(func() {
		fake.Close()
	})

	It("maps a well formed reply", func() {
		// Given
		fake.reply(http.StatusOK, `{"merchant_name":"Whole Foods Market","total_amount":"84.50","date":"2025-01-02",
			"category":"Groceries","currency":"usd","items":[{"name":"Almond Milk","price":4.5,"quantity":2}]}`)

		// When
		ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

		// Then
		Expect(ex.Degraded).To(BeFalse())
		Expect(ex.MerchantName).To(Equal("Whole Foods Market"))
		Expect(ex.Amount).NotTo(BeNil())
		Expect(ex.Amount.Equal(decimal.RequireFromString("84.5"))).To(BeTrue())
		Expect(ex.Currency).To(Equal("USD"))
		Expect(ex.Category).To(Equal("Groceries"))
		Expect(ex.Date).NotTo(BeNil())
		Expect(ex.Date.Format("2006-01-02")).To(Equal("2025-01-02"))
		Expect(ex.Items).To(HaveLen(1))
		Expect(ex.Items[0].Name).To(Equal("Almond Milk"))
		Expect(ex.Items[0].Price.Equal(decimal.RequireFromString("4.5"))).To(BeTrue())
		Expect(*ex.Items[0].Quantity).To(Equal(2))
		Expect(ex.RawText).To(ContainSubstring("Whole Foods Market"))
	})

	It("sends the image and asks for a JSON object", func() {
		fake.reply(http.StatusOK, `{}`)

		client.ExtractReceipt(ctx, "data:image/jpeg;base64,BBBB")

		reqs := fake.Requests()
		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0]["model"]).To(Equal(llm.DefaultModel))
		Expect(reqs[0]["response_format"]).To(HaveKeyWithValue("type", "json_object"))
		messages := reqs[0]["messages"].([]any)
		parts := messages[0].(map[string]any)["content"].([]any)
		Expect(parts).To(HaveLen(2))
		Expect(parts[1].(map[string]any)["image_url"]).To(HaveKeyWithValue("url", "data:image/jpeg;base64,BBBB"))
	})

	DescribeTable("resolves aliases in order",
		func(payload, merchant, amount string) {
			fake.reply(http.StatusOK, payload)

			ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

			Expect(ex.Degraded).To(BeFalse())
			Expect(ex.MerchantName).To(Equal(merchant))
			Expect(ex.Amount.String()).To(Equal(amount))
		},
		Entry("camelCase keys", `{"merchantName":"Uber","amount":24}`, "Uber", "24"),
		Entry("short keys", `{"merchant":"Netflix","total":"$15.99"}`, "Netflix", "15.99"),
		Entry("first alias wins", `{"merchant_name":"A","merchant":"B","total_amount":1,"total":2}`, "A", "1"),
		Entry("empty alias falls through", `{"merchant_name":"","merchant":"B","amount":"","total":"3"}`, "B", "3"),
		Entry("thousands separators", `{"merchant":"Shop","total":"1,234.50"}`, "Shop", "1234.5"),
		Entry("comma decimals", `{"merchant":"Cafe","total":"12,50 €"}`, "Cafe", "12.5"),
		Entry("dotted thousands", `{"merchant":"Bäckerei","total":"1.234,56"}`, "Bäckerei", "1234.56"),
		Entry("dotted thousands with symbol", `{"merchant":"Bäckerei","total":"€1.234,56"}`, "Bäckerei", "1234.56"),
		Entry("comma thousands before dot decimal", `{"merchant":"Shop","total":"12,345,678.9"}`, "Shop", "12345678.9"),
	)

	DescribeTable("coerces unusable amounts to zero",
		func(payload string) {
			fake.reply(http.StatusOK, payload)

			ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

			Expect(ex.Degraded).To(BeFalse())
			Expect(ex.Amount).NotTo(BeNil())
			Expect(ex.Amount.IsZero()).To(BeTrue())
		},
		Entry("absent", `{"merchant":"X"}`),
		Entry("garbage", `{"total":"n/a"}`),
		Entry("negative", `{"total":-12.5}`),
		Entry("wrong type", `{"total":{"value":3}}`),
	)

	It("defaults unknown currencies to USD", func() {
		fake.reply(http.StatusOK, `{"currency":"euros"}`)

		ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

		Expect(ex.Currency).To(Equal("USD"))
		Expect(ex.Items).To(BeEmpty())
		Expect(ex.Date).To(BeNil())
	})

	It("tolerates fenced JSON", func() {
		fake.reply(http.StatusOK, "```json\n{\"merchant\":\"Fenced\",\"currency\":\"EUR\",\"total\":9}\n```")

		ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

		Expect(ex.Degraded).To(BeFalse())
		Expect(ex.MerchantName).To(Equal("Fenced"))
		Expect(ex.Currency).To(Equal("EUR"))
	})

	It("degrades on malformed JSON", func() {
		fake.reply(http.StatusOK, "I could not read that receipt")

		ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

		Expect(ex.Degraded).To(BeTrue())
		Expect(ex.Err).To(HaveOccurred())
		Expect(ex.Amount).To(BeNil())
		Expect(ex.MerchantName).To(BeEmpty())
	})

	It("degrades on empty content", func() {
		fake.reply(http.StatusOK, "")

		ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

		Expect(ex.Degraded).To(BeTrue())
		Expect(ex.Err).To(MatchError(llm.ErrEmptyCompletion))
	})

	It("degrades on upstream errors", func() {
		fake.reply(http.StatusInternalServerError, "")

		ex := client.ExtractReceipt(ctx, "data:image/png;base64,AAAA")

		Expect(ex.Degraded).To(BeTrue())
		Expect(ex.Err).To(HaveOccurred())
	})
})
