package receipt_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/core/events"
	"github.com/frahmantamala/receiptlens/internal/llm"
	"github.com/frahmantamala/receiptlens/internal/receipt"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

var _ = Describe("Service", func() {
	var (
		repo       *mockReceiptRepository
		extractor  *mockExtractor
		normalizer *mockNormalizer
		blobs      *mockBlobStore
		publisher  *recordingPublisher
		service    *receipt.Service
		ctx        context.Context
	)

	BeforeEach(func() {
		repo = newMockReceiptRepository()
		extractor = &mockExtractor{}
		normalizer = &mockNormalizer{rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.8"),
			"JPY": decimal.RequireFromString("150"),
		}}
		blobs = &mockBlobStore{}
		publisher = &recordingPublisher{}
		service = receipt.NewService(repo, extractor, normalizer, blobs, publisher, logger.Discard())
		ctx = context.Background()
	})

	Describe("Ingest", func() {
		It("converts a foreign currency receipt to USD", func() {
			// Given
			date := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Cafe Paris",
				Amount:       dec("40.00"),
				Currency:     "EUR",
				Date:         &date,
				Category:     "Food",
				Items:        []llm.LineItem{{Name: "Croissant", Price: decimal.RequireFromString("3.50")}},
				RawText:      `{"merchant_name":"Cafe Paris"}`,
			}

			// When
			got, err := service.Ingest(ctx, 7, []byte("img"), "image/jpeg")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(receipt.StatusCompleted))
			Expect(got.UserID).To(Equal(int64(7)))
			Expect(*got.MerchantName).To(Equal("Cafe Paris"))
			Expect(got.Amount.Equal(decimal.NewFromInt(40))).To(BeTrue())
			Expect(got.AmountInUSD.Equal(decimal.NewFromInt(50))).To(BeTrue())
			Expect(got.Currency).To(Equal("EUR"))
			Expect(*got.Category).To(Equal("Food"))
			Expect(got.Date.Equal(date)).To(BeTrue())
			Expect(got.Items).To(HaveLen(1))
			Expect(extractor.gotURL).To(Equal("https://blobs.test/image/jpeg/img?X-Amz-Signature=sig"))
			Expect(normalizer.lastCurrency).To(Equal("EUR"))
			Expect(publisher.Types()).To(Equal([]string{events.EventTypeReceiptCompleted}))
		})

		It("rounds converted amounts to two decimals", func() {
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Ramen Bar", Amount: dec("1000"), Currency: "JPY", Category: "Food", Items: []llm.LineItem{},
			}

			got, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			Expect(err).NotTo(HaveOccurred())
			Expect(got.AmountInUSD.String()).To(Equal("6.67"))
		})

		It("does not call the rate service for USD receipts", func() {
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Uber", Amount: dec("24.00"), Currency: "USD", Category: "Transport", Items: []llm.LineItem{},
			}

			got, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			Expect(err).NotTo(HaveOccurred())
			Expect(normalizer.calls).To(Equal(0))
			Expect(got.AmountInUSD.Equal(decimal.NewFromInt(24))).To(BeTrue())
		})

		It("persists the stable image reference and signs it only for fetching", func() {
			// Given
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Uber", Amount: dec("24.00"), Currency: "USD", Category: "Transport", Items: []llm.LineItem{},
			}

			// When
			got, err := service.Ingest(ctx, 7, []byte("img"), "image/jpeg")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.stored(got.ID).ImageURL).To(Equal("blob://image/jpeg/img"))
			Expect(repo.stored(got.ID).ImageURL).NotTo(ContainSubstring("X-Amz-"))
			Expect(extractor.gotURL).To(ContainSubstring("X-Amz-Signature"))
			Expect(got.ImageURL).To(ContainSubstring("X-Amz-Signature"))
		})

		It("marks the receipt failed when the image url cannot be resolved", func() {
			blobs.urlErr = errBoom

			_, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			Expect(err).To(MatchError(receipt.ErrProcessingFailed))
			Expect(extractor.calls).To(Equal(0))
			Expect(repo.stored(1).Status).To(Equal(receipt.StatusFailed))
		})

		It("skips the rate lookup when the extracted amount is zero", func() {
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Cafe", Amount: dec("0"), Currency: "EUR", Category: "Food", Items: []llm.LineItem{},
			}

			got, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			Expect(err).NotTo(HaveOccurred())
			Expect(normalizer.calls).To(Equal(0))
			Expect(got.Currency).To(Equal("EUR"))
			Expect(got.AmountInUSD.IsZero()).To(BeTrue())
		})

		It("keeps the original amount when no rate is available", func() {
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Pub", Amount: dec("12.00"), Currency: "GBP", Category: "Food", Items: []llm.LineItem{},
			}

			got, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(receipt.StatusCompleted))
			Expect(got.Currency).To(Equal("GBP"))
			Expect(got.AmountInUSD.Equal(decimal.NewFromInt(12))).To(BeTrue())
		})

		It("stores defaults when extraction is degraded", func() {
			// Given
			extractor.result = llm.ReceiptExtraction{Degraded: true, Err: errBoom}
			before := time.Now()

			// When
			got, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(receipt.StatusCompleted))
			Expect(*got.MerchantName).To(Equal(receipt.DefaultMerchant))
			Expect(*got.Category).To(Equal(receipt.DefaultCategory))
			Expect(got.Amount.IsZero()).To(BeTrue())
			Expect(got.AmountInUSD.IsZero()).To(BeTrue())
			Expect(got.Currency).To(Equal("USD"))
			Expect(got.Items).To(BeEmpty())
			Expect(got.Date.Before(before)).To(BeFalse())
			Expect(normalizer.calls).To(Equal(0))

			completed, ok := publisher.Last().(*events.ReceiptCompletedEvent)
			Expect(ok).To(BeTrue())
			Expect(completed.Degraded).To(BeTrue())
		})

		It("exposes a processing placeholder while extraction runs", func() {
			// Given
			extractor.started = make(chan struct{})
			extractor.release = make(chan struct{})
			extractor.result = llm.ReceiptExtraction{
				MerchantName: "Netflix", Amount: dec("15.99"), Currency: "USD", Category: "Entertainment", Items: []llm.LineItem{},
			}
			done := make(chan *receipt.Receipt, 1)

			// When
			go func() {
				defer GinkgoRecover()
				r, err := service.Ingest(ctx, 7, []byte("img"), "image/png")
				Expect(err).NotTo(HaveOccurred())
				done <- r
			}()
			Eventually(extractor.started).Should(BeClosed())

			// Then
			pending, err := service.List(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Status).To(Equal(receipt.StatusProcessing))
			Expect(*pending[0].MerchantName).To(Equal(receipt.PlaceholderMerchant))
			Expect(pending[0].Amount.IsZero()).To(BeTrue())

			close(extractor.release)
			var final *receipt.Receipt
			Eventually(done).Should(Receive(&final))
			Expect(final.ID).To(Equal(pending[0].ID))
			Expect(final.Status).To(Equal(receipt.StatusCompleted))
		})

		It("rejects an empty upload", func() {
			_, err := service.Ingest(ctx, 7, nil, "image/png")

			Expect(err).To(MatchError(receipt.ErrNoImage))
			Expect(blobs.calls).To(Equal(0))
		})

		It("rejects a non-image upload", func() {
			_, err := service.Ingest(ctx, 7, []byte("%PDF"), "application/pdf")

			Expect(err).To(MatchError(receipt.ErrUnsupportedImage))
		})

		It("requires an authenticated user", func() {
			_, err := service.Ingest(ctx, 0, []byte("img"), "image/png")

			Expect(err).To(MatchError(internal.ErrUnauthenticated))
		})

		It("fails without creating a receipt when the image cannot be stored", func() {
			blobs.err = errBoom

			_, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			Expect(err).To(MatchError(receipt.ErrProcessingFailed))
			Expect(repo.receipts).To(BeEmpty())
		})

		It("marks the receipt failed when finalizing errors", func() {
			// Given
			extractor.result = llm.ReceiptExtraction{MerchantName: "X", Amount: dec("1"), Currency: "USD", Items: []llm.LineItem{}}
			repo.completeErr = errBoom

			// When
			_, err := service.Ingest(ctx, 7, []byte("img"), "image/png")

			// Then
			Expect(err).To(MatchError(receipt.ErrProcessingFailed))
			Expect(internal.AsAppError(err).Message).To(Equal("Failed to process receipt"))
			Expect(repo.stored(1).Status).To(Equal(receipt.StatusFailed))
			Expect(publisher.Types()).To(Equal([]string{events.EventTypeReceiptFailed}))
		})

		It("marks the receipt failed when the request is canceled mid-extraction", func() {
			// Given
			extractor.started = make(chan struct{})
			extractor.release = make(chan struct{})
			reqCtx, cancel := context.WithCancel(ctx)
			errs := make(chan error, 1)

			// When
			go func() {
				_, err := service.Ingest(reqCtx, 7, []byte("img"), "image/png")
				errs <- err
			}()
			Eventually(extractor.started).Should(BeClosed())
			cancel()

			// Then
			var err error
			Eventually(errs).Should(Receive(&err))
			Expect(err).To(MatchError(receipt.ErrProcessingFailed))
			Expect(repo.stored(1).Status).To(Equal(receipt.StatusFailed))
		})
	})

	Describe("Get", func() {
		It("hides receipts owned by other users", func() {
			// Given
			r := receipt.NewPlaceholder(1, "u", time.Now())
			Expect(repo.Create(ctx, r)).To(Succeed())

			// When
			_, err := service.Get(ctx, 2, r.ID)

			// Then
			Expect(err).To(MatchError(receipt.ErrReceiptNotFound))
		})

		It("returns the owner's receipt", func() {
			r := receipt.NewPlaceholder(1, "u", time.Now())
			Expect(repo.Create(ctx, r)).To(Succeed())

			got, err := service.Get(ctx, 1, r.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(r.ID))
		})

		It("signs the stored image reference on read", func() {
			r := receipt.NewPlaceholder(1, "blob://image/png/img", time.Now())
			Expect(repo.Create(ctx, r)).To(Succeed())

			got, err := service.Get(ctx, 1, r.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(got.ImageURL).To(Equal("https://blobs.test/image/png/img?X-Amz-Signature=sig"))
			Expect(repo.stored(r.ID).ImageURL).To(Equal("blob://image/png/img"))
		})

		It("returns not found for an unknown id", func() {
			_, err := service.Get(ctx, 1, 404)

			Expect(err).To(MatchError(receipt.ErrReceiptNotFound))
		})
	})

	Describe("List", func() {
		It("keeps the stored reference when signing fails", func() {
			r := receipt.NewPlaceholder(1, "blob://image/png/img", time.Now())
			Expect(repo.Create(ctx, r)).To(Succeed())
			blobs.urlErr = errBoom

			got, err := service.List(ctx, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ImageURL).To(Equal("blob://image/png/img"))
		})

		It("wraps storage errors as internal errors", func() {
			repo.listError = errBoom

			_, err := service.List(ctx, 1)

			Expect(internal.AsAppError(err).StatusCode).To(Equal(500))
		})
	})

	Describe("ReconcileStale", func() {
		It("fails receipts stuck in processing past the threshold", func() {
			// Given
			stale := receipt.NewPlaceholder(1, "u", time.Now().Add(-time.Hour))
			fresh := receipt.NewPlaceholder(1, "u", time.Now())
			Expect(repo.Create(ctx, stale)).To(Succeed())
			Expect(repo.Create(ctx, fresh)).To(Succeed())

			// When
			moved, err := service.ReconcileStale(ctx, 15*time.Minute)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(Equal(1))
			Expect(repo.stored(stale.ID).Status).To(Equal(receipt.StatusFailed))
			Expect(repo.stored(fresh.ID).Status).To(Equal(receipt.StatusProcessing))

			failed, ok := publisher.Last().(*events.ReceiptFailedEvent)
			Expect(ok).To(BeTrue())
			Expect(failed.ReceiptID).To(Equal(stale.ID))
		})
	})
})
