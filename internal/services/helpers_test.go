package services

import (
	"context"
	"testing"

	"escrow-market/internal/database/dbtest"
	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fixture struct {
	repo     *repository.Repository
	activity *repository.SQLActivityLog
	deals    *DealService
	disputes *DisputeService
	wallet   *WalletService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	repo := repository.NewRepository(db)
	activity := repository.NewSQLActivityLog(db)
	log := zap.NewNop()

	deals := NewDealService(repo, DefaultFeeSchedule(), activity, log)
	return &fixture{
		repo:     repo,
		activity: activity,
		deals:    deals,
		disputes: NewDisputeService(repo, deals, activity, log),
		wallet:   NewWalletService(repo, DefaultFeeSchedule(), activity, log),
	}
}

func (f *fixture) user(t *testing.T, username string, balance int64) *models.User {
	t.Helper()
	u := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		FullName:      username,
		PasswordHash:  "x",
		WalletBalance: decimal.NewFromInt(balance),
		Rating:        decimal.NewFromInt(5),
	}
	if err := f.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func (f *fixture) verify(t *testing.T, userID uint) {
	t.Helper()
	if err := f.repo.UpdateUserFields(context.Background(), userID, map[string]interface{}{"verified": true}); err != nil {
		t.Fatalf("verify user: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	u, err := f.repo.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.WalletBalance
}

// paidDeal opens a 50000 deal between buyer and seller and takes it to
// in-progress.
func (f *fixture) paidDeal(t *testing.T, buyer, seller *models.User) *models.DealView {
	t.Helper()
	ctx := context.Background()
	view, err := f.deals.Create(ctx, buyer.ID, models.CreateDealRequest{
		Title:          "Used laptop",
		Amount:         decimal.NewFromInt(50000),
		TimelineDays:   7,
		SellerUsername: seller.Username,
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}
	if _, err := f.deals.Accept(ctx, view.ID, seller.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	view, err = f.deals.Pay(ctx, view.ID, buyer.ID, "")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	return view
}

func requireBalance(t *testing.T, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("balance = %s, want %d", got, want)
	}
}
