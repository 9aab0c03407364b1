package nudge_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/core/events"
	"github.com/frahmantamala/receiptlens/internal/nudge"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

var _ = Describe("Service", func() {
	var (
		repo    *mockNudgeRepository
		service *nudge.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		repo = newMockNudgeRepository()
		service = nudge.NewService(repo, logger.Discard())
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("stamps created_at and stores the nudge", func() {
			n := &nudge.Nudge{UserID: 1, Title: "Savings Tip", Message: "Review subscriptions", Type: nudge.TypeInsight}

			Expect(service.Create(ctx, n)).To(Succeed())

			Expect(n.ID).To(Equal(int64(1)))
			Expect(n.CreatedAt.IsZero()).To(BeFalse())
		})

		It("rejects unknown types", func() {
			n := &nudge.Nudge{UserID: 1, Title: "t", Message: "m", Type: "banner"}

			err := service.Create(ctx, n)

			Expect(internal.AsAppError(err).StatusCode).To(Equal(400))
			Expect(repo.all()).To(BeEmpty())
		})

		It("rejects a missing title", func() {
			err := service.Create(ctx, &nudge.Nudge{UserID: 1, Message: "m", Type: nudge.TypeAlert})

			Expect(internal.AsAppError(err).Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("MarkRead", func() {
		It("is idempotent", func() {
			// Given
			n := &nudge.Nudge{UserID: 1, Title: "t", Message: "m", Type: nudge.TypeAlert}
			Expect(service.Create(ctx, n)).To(Succeed())

			// When
			first, err := service.MarkRead(ctx, 1, n.ID)
			Expect(err).NotTo(HaveOccurred())
			second, err := service.MarkRead(ctx, 1, n.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(first.IsRead).To(BeTrue())
			Expect(second.IsRead).To(BeTrue())
		})

		It("reports another user's nudge as not found", func() {
			n := &nudge.Nudge{UserID: 1, Title: "t", Message: "m", Type: nudge.TypeAlert}
			Expect(service.Create(ctx, n)).To(Succeed())

			_, err := service.MarkRead(ctx, 2, n.ID)

			Expect(err).To(MatchError(nudge.ErrNudgeNotFound))
		})

		It("requires a user", func() {
			_, err := service.MarkRead(ctx, 0, 1)

			Expect(err).To(MatchError(internal.ErrUnauthenticated))
		})
	})

	Describe("List", func() {
		It("wraps storage failures", func() {
			repo.listErr = errBoom

			_, err := service.List(ctx, 1)

			Expect(internal.AsAppError(err).StatusCode).To(Equal(500))
		})
	})
})

var _ = Describe("Subscriber", func() {
	var (
		repo *mockNudgeRepository
		bus  *events.EventBus
		ctx  context.Context
	)

	BeforeEach(func() {
		repo = newMockNudgeRepository()
		bus = events.NewEventBus(logger.Discard())
		nudge.NewSubscriber(nudge.NewService(repo, logger.Discard()), logger.Discard()).Register(bus)
		ctx = context.Background()
	})

	It("creates an alert when a receipt fails", func() {
		// When
		Expect(bus.PublishSync(ctx, events.NewReceiptFailedEvent(9, 3, "timeout"))).To(Succeed())

		// Then
		created := repo.all()
		Expect(created).To(HaveLen(1))
		Expect(created[0].UserID).To(Equal(int64(3)))
		Expect(created[0].Type).To(Equal(nudge.TypeAlert))
		Expect(created[0].Title).To(Equal("Receipt processing failed"))
	})

	It("asks the user to review a degraded receipt", func() {
		Expect(bus.PublishSync(ctx, events.NewReceiptCompletedEvent(9, 3, "Unknown Merchant", "Uncategorized", true))).To(Succeed())

		created := repo.all()
		Expect(created).To(HaveLen(1))
		Expect(created[0].Type).To(Equal(nudge.TypeNudge))
		Expect(created[0].Title).To(Equal("Check your receipt"))
		Expect(created[0].Message).To(ContainSubstring("Unknown Merchant"))
	})

	It("ignores receipts that were read cleanly", func() {
		Expect(bus.PublishSync(ctx, events.NewReceiptCompletedEvent(9, 3, "Uber", "Transport", false))).To(Succeed())

		Expect(repo.all()).To(BeEmpty())
	})

	It("delivers asynchronously through Publish", func() {
		Expect(bus.Publish(ctx, events.NewReceiptFailedEvent(1, 4, "boom"))).To(Succeed())

		Expect(bus.Wait(ctx)).To(Succeed())
		Expect(repo.all()).To(HaveLen(1))
	})
})
