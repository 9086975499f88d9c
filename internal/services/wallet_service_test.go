package services

import (
	"context"
	"errors"
	"testing"

	"escrow-market/internal/models"

	"github.com/shopspring/decimal"
)

func TestTopUpCreditsOnlyOnCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina", 0)

	txn, err := f.wallet.TopUp(ctx, u.ID, models.TopUpRequest{
		Amount: decimal.NewFromInt(1000), Method: models.MethodMpesa, PhoneNumber: "+254700000001",
	}, "")
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if txn.Status != models.TransactionStatusPending {
		t.Fatalf("status = %s, want pending", txn.Status)
	}
	requireBalance(t, f.balance(t, u.ID), 0)

	summary, err := f.wallet.Summary(ctx, u.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !summary.PendingDeposits.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("pending deposits = %s", summary.PendingDeposits)
	}

	cb := models.ProviderCallback{Reference: txn.Reference, Status: CallbackStatusSuccess, ProviderReference: "MP123"}
	res, err := f.wallet.HandleProviderCallback(ctx, cb)
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !res.Applied || res.Transaction.Status != models.TransactionStatusCompleted {
		t.Fatalf("callback result = %+v", res)
	}
	requireBalance(t, f.balance(t, u.ID), 1000)

	res, err = f.wallet.HandleProviderCallback(ctx, cb)
	if err != nil {
		t.Fatalf("repeated callback: %v", err)
	}
	if res.Applied {
		t.Fatal("repeated callback must not apply again")
	}
	requireBalance(t, f.balance(t, u.ID), 1000)

	notes, err := f.repo.ListNotifications(ctx, u.ID, false, 10)
	if err != nil || len(notes) != 1 {
		t.Fatalf("notifications = %d, %v; want 1", len(notes), err)
	}
}

func TestFailedTopUpLeavesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina", 0)

	txn, err := f.wallet.TopUp(ctx, u.ID, models.TopUpRequest{
		Amount: decimal.NewFromInt(500), Method: models.MethodAirtel, PhoneNumber: "0700",
	}, "")
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	if _, err := f.wallet.HandleProviderCallback(ctx, models.ProviderCallback{Reference: txn.Reference, Status: CallbackStatusFailed}); err != nil {
		t.Fatalf("callback: %v", err)
	}
	requireBalance(t, f.balance(t, u.ID), 0)

	if _, err := f.wallet.HandleProviderCallback(ctx, models.ProviderCallback{Reference: "NOPE-1", Status: CallbackStatusSuccess}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown reference: got %v, want ErrNotFound", err)
	}
	if _, err := f.wallet.HandleProviderCallback(ctx, models.ProviderCallback{Reference: txn.Reference, Status: "maybe"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad status: got %v, want ErrInvalidInput", err)
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina", 540)

	req := models.WithdrawRequest{Amount: decimal.NewFromInt(500), Method: models.MethodMTN, PhoneNumber: "0700"}
	if _, err := f.wallet.Withdraw(ctx, u.ID, req, ""); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("unverified Withdraw: got %v, want ErrNotVerified", err)
	}
	requireBalance(t, f.balance(t, u.ID), 540)
	f.verify(t, u.ID)

	if _, err := f.wallet.Withdraw(ctx, u.ID, req, ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Withdraw over balance: got %v, want ErrInsufficientFunds", err)
	}
	requireBalance(t, f.balance(t, u.ID), 540)

	if err := f.repo.CreditWallet(ctx, u.ID, decimal.NewFromInt(460)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	txn, err := f.wallet.Withdraw(ctx, u.ID, req, "")
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !txn.Fee.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("fee = %s, want 50", txn.Fee)
	}
	requireBalance(t, f.balance(t, u.ID), 450)

	if _, err := f.wallet.HandleProviderCallback(ctx, models.ProviderCallback{Reference: txn.Reference, Status: CallbackStatusFailed}); err != nil {
		t.Fatalf("callback: %v", err)
	}
	requireBalance(t, f.balance(t, u.ID), 1000)
}

func TestWalletIdempotencyKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina", 5000)
	f.verify(t, u.ID)

	req := models.TopUpRequest{Amount: decimal.NewFromInt(1000), Method: models.MethodMpesa, PhoneNumber: "0700"}
	first, err := f.wallet.TopUp(ctx, u.ID, req, "topup-1")
	if err != nil {
		t.Fatalf("TopUp: %v", err)
	}
	second, err := f.wallet.TopUp(ctx, u.ID, req, "topup-1")
	if err != nil {
		t.Fatalf("TopUp replay: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new transaction: %s vs %s", first.ID, second.ID)
	}

	_, err = f.wallet.Withdraw(ctx, u.ID, models.WithdrawRequest{
		Amount: decimal.NewFromInt(1000), Method: models.MethodMpesa, PhoneNumber: "0700",
	}, "topup-1")
	if !errors.Is(err, ErrIdempotencyReuse) {
		t.Fatalf("key reuse across operations: got %v, want ErrIdempotencyReuse", err)
	}
	requireBalance(t, f.balance(t, u.ID), 5000)

	_, total, err := f.wallet.Transactions(ctx, u.ID, "", 10, 0)
	if err != nil || total != 1 {
		t.Fatalf("transactions = %d, %v; want 1", total, err)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina", 0)

	bad := []models.TopUpRequest{
		{Amount: decimal.NewFromInt(50), Method: models.MethodMpesa, PhoneNumber: "0700"},
		{Amount: decimal.NewFromInt(500), Method: models.MethodWallet, PhoneNumber: "0700"},
		{Amount: decimal.NewFromInt(500), Method: models.MethodMpesa, PhoneNumber: " "},
		{Amount: decimal.RequireFromString("500.123"), Method: models.MethodMpesa, PhoneNumber: "0700"},
	}
	for i, req := range bad {
		if _, err := f.wallet.TopUp(ctx, u.ID, req, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
	if _, _, err := f.wallet.Transactions(ctx, u.ID, "bonus", 10, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown type filter: got %v", err)
	}
}
