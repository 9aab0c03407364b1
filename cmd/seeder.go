package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/receiptlens/internal/nudge"
	"github.com/frahmantamala/receiptlens/internal/receipt"
	receiptPostgres "github.com/frahmantamala/receiptlens/internal/receipt/postgres"
)

const (
	demoUsername = "demo"
	demoPassword = "password123"
)

type seedReceipt struct {
	Merchant string
	Amount   string
	Date     string
	Category string
	Items    []seedItem
}

type seedItem struct {
	Name  string
	Price string
}

var demoReceipts = []seedReceipt{
	{
		Merchant: "Whole Foods Market",
		Amount:   "84.50",
		Date:     "2025-01-02",
		Category: "Groceries",
		Items: []seedItem{
			{"Organic Bananas", "2.99"},
			{"Almond Milk", "4.50"},
			{"Chicken Breast", "12.99"},
		},
	},
	{
		Merchant: "Uber",
		Amount:   "24.00",
		Date:     "2025-01-03",
		Category: "Transport",
		Items:    []seedItem{{"Ride to Airport", "24.00"}},
	},
	{
		Merchant: "Netflix",
		Amount:   "15.99",
		Date:     "2025-01-01",
		Category: "Entertainment",
		Items:    []seedItem{{"Standard Plan", "15.99"}},
	},
}

var demoNudges = []nudge.Nudge{
	{
		Title:   "Spending Alert",
		Message: "You've spent 20% more on Transport this week compared to last week.",
		Type:    nudge.TypeAlert,
	},
	{
		Title:   "Savings Tip",
		Message: "Looks like you have multiple subscriptions. Review them to save ~$15/mo.",
		Type:    nudge.TypeInsight,
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a demo user, sample receipts and nudges for development.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		deps, err := initializeDependencies(ctx)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		if clearData {
			if err := deps.Gorm.WithContext(ctx).Exec(
				"DELETE FROM users WHERE username = ?", demoUsername,
			).Error; err != nil {
				log.Fatalf("failed to clear demo data: %v", err)
			}
			fmt.Println("Cleared demo user and its data")
		}

		user, created, err := deps.Auth.EnsureUser(ctx, demoUsername, demoPassword)
		if err != nil {
			log.Fatalf("failed to ensure demo user: %v", err)
		}
		if !created {
			fmt.Println("demo user already exists; nothing to seed")
			return
		}
		fmt.Println("Created demo user:", user.Username)

		repo := receiptPostgres.NewReceiptRepository(deps.Gorm)
		for _, sr := range demoReceipts {
			if err := seedOneReceipt(ctx, repo, user.ID, sr); err != nil {
				log.Fatalf("failed to seed receipt %s: %v", sr.Merchant, err)
			}
		}
		fmt.Println("Added sample receipts")

		for _, n := range demoNudges {
			n.UserID = user.ID
			if err := deps.Nudges.Create(ctx, &n); err != nil {
				log.Fatalf("failed to seed nudge %s: %v", n.Title, err)
			}
		}
		fmt.Println("Added sample nudges")
		fmt.Println("Seeding complete")
	},
}

func seedOneReceipt(ctx context.Context, repo *receiptPostgres.ReceiptRepository, userID int64, sr seedReceipt) error {
	date, err := time.Parse(time.DateOnly, sr.Date)
	if err != nil {
		return err
	}

	placeholder := receipt.NewPlaceholder(userID, "placeholder", time.Now().UTC())
	if err := repo.Create(ctx, placeholder); err != nil {
		return err
	}

	amount := decimal.RequireFromString(sr.Amount)
	items := make([]receipt.LineItem, 0, len(sr.Items))
	for _, it := range sr.Items {
		items = append(items, receipt.LineItem{Name: it.Name, Price: decimal.RequireFromString(it.Price)})
	}

	_, err = repo.Complete(ctx, placeholder.ID, receipt.Completion{
		MerchantName: sr.Merchant,
		Amount:       amount,
		Currency:     "USD",
		AmountInUSD:  amount,
		Date:         date,
		Category:     sr.Category,
		Items:        items,
	})
	return err
}
