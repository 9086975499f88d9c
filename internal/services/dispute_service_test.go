package services

import (
	"context"
	"errors"
	"testing"

	"escrow-market/internal/models"
)

func TestDisputeResolution(t *testing.T) {
	tests := []struct {
		name          string
		outcome       models.DisputeOutcome
		dealStatus    models.DealStatus
		disputeStatus models.DisputeStatus
		buyerBalance  int64
		sellerBalance int64
		completed     int
	}{
		{"release pays seller", models.OutcomeRelease, models.DealStatusResolved, models.DisputeStatusResolved, 10000, 50000, 1},
		{"refund returns total", models.OutcomeRefund, models.DealStatusRefunded, models.DisputeStatusResolved, 61000, 0, 0},
		{"reject pays seller", models.OutcomeReject, models.DealStatusResolved, models.DisputeStatusRejected, 10000, 50000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			buyer := f.user(t, "buyer", 61000)
			seller := f.user(t, "seller", 0)
			staff := f.user(t, "staff", 0)

			deal := f.paidDeal(t, buyer, seller)
			requireBalance(t, f.balance(t, buyer.ID), 10000)

			d, err := f.disputes.Raise(ctx, deal.ID, buyer.ID, models.RaiseDisputeRequest{
				Reason:      "Item not delivered",
				Description: "Seller stopped answering",
			})
			if err != nil {
				t.Fatalf("Raise: %v", err)
			}
			if d.Status != models.DisputeStatusOpen {
				t.Fatalf("dispute status = %s", d.Status)
			}

			resolved, err := f.disputes.Resolve(ctx, d.ID, staff.ID, models.ResolveDisputeRequest{
				Outcome:    tt.outcome,
				Resolution: "Reviewed the chat history",
			})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if resolved.Status != tt.disputeStatus {
				t.Errorf("dispute status = %s, want %s", resolved.Status, tt.disputeStatus)
			}
			if resolved.ResolvedBy == nil || *resolved.ResolvedBy != staff.ID || resolved.ResolvedAt == nil {
				t.Errorf("resolver not recorded: %+v", resolved)
			}

			view, err := f.deals.GetDetail(ctx, deal.ID, buyer.ID, false)
			if err != nil {
				t.Fatalf("GetDetail: %v", err)
			}
			if view.Status != tt.dealStatus {
				t.Errorf("deal status = %s, want %s", view.Status, tt.dealStatus)
			}
			requireBalance(t, f.balance(t, buyer.ID), tt.buyerBalance)
			requireBalance(t, f.balance(t, seller.ID), tt.sellerBalance)
			for _, id := range []uint{buyer.ID, seller.ID} {
				u, err := f.repo.GetUserByID(ctx, id)
				if err != nil {
					t.Fatalf("get user: %v", err)
				}
				if u.CompletedDeals != tt.completed {
					t.Errorf("%s completed_deals = %d, want %d", u.Username, u.CompletedDeals, tt.completed)
				}
			}

			logs, err := f.repo.ListAdminLogs(ctx, 10, 0)
			if err != nil || len(logs) != 1 || logs[0].Action != "RESOLVE_DISPUTE" {
				t.Errorf("admin logs = %+v, %v", logs, err)
			}

			_, err = f.disputes.Resolve(ctx, d.ID, staff.ID, models.ResolveDisputeRequest{
				Outcome: tt.outcome, Resolution: "again",
			})
			if !errors.Is(err, ErrDisputeClosed) {
				t.Fatalf("second resolve: got %v, want ErrDisputeClosed", err)
			}
			requireBalance(t, f.balance(t, buyer.ID), tt.buyerBalance)
			requireBalance(t, f.balance(t, seller.ID), tt.sellerBalance)
		})
	}
}

func TestRaiseDisputeRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.user(t, "buyer", 61000)
	seller := f.user(t, "seller", 0)
	stranger := f.user(t, "stranger", 0)
	deal := f.paidDeal(t, buyer, seller)

	req := models.RaiseDisputeRequest{Reason: "Wrong item", Description: "Got a different model"}

	if _, err := f.disputes.Raise(ctx, deal.ID, seller.ID, models.RaiseDisputeRequest{Reason: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty reason: got %v", err)
	}
	if _, err := f.disputes.Raise(ctx, deal.ID, stranger.ID, req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger: got %v, want ErrNotFound", err)
	}

	d, err := f.disputes.Raise(ctx, deal.ID, seller.ID, req)
	if err != nil {
		t.Fatalf("seller raise: %v", err)
	}
	if _, err := f.disputes.Raise(ctx, deal.ID, buyer.ID, req); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second raise: got %v, want ErrInvalidTransition", err)
	}

	if _, err := f.disputes.Get(ctx, d.ID, stranger.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger get: got %v", err)
	}
	if _, err := f.disputes.Get(ctx, d.ID, buyer.ID, false); err != nil {
		t.Fatalf("buyer get: %v", err)
	}

	mine, err := f.disputes.ListForUser(ctx, buyer.ID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListForUser = %d, %v", len(mine), err)
	}
	open, total, err := f.disputes.ListAll(ctx, models.DisputeStatusOpen, 10, 0)
	if err != nil || total != 1 || len(open) != 1 {
		t.Fatalf("ListAll open = %d/%d, %v", len(open), total, err)
	}

	_, err = f.disputes.Resolve(ctx, d.ID, stranger.ID, models.ResolveDisputeRequest{Outcome: "split", Resolution: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown outcome: got %v", err)
	}
}

func TestResolveRejectsPartyStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.user(t, "buyer", 61000)
	seller := f.user(t, "seller", 0)
	if err := f.repo.CreateAdminUser(ctx, &models.AdminUser{UserID: seller.ID, Role: models.AdminRoleSupport}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	deal := f.paidDeal(t, buyer, seller)
	d, err := f.disputes.Raise(ctx, deal.ID, buyer.ID, models.RaiseDisputeRequest{
		Reason: "Item not delivered", Description: "Nothing arrived",
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}

	for _, staff := range []uint{seller.ID, buyer.ID} {
		_, err = f.disputes.Resolve(ctx, d.ID, staff, models.ResolveDisputeRequest{
			Outcome: models.OutcomeRelease, Resolution: "Looks fine to me",
		})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("party resolving own dispute: got %v, want ErrForbidden", err)
		}
	}
	requireBalance(t, f.balance(t, seller.ID), 0)
	requireBalance(t, f.balance(t, buyer.ID), 10000)

	got, err := f.disputes.Get(ctx, d.ID, buyer.ID, false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.DisputeStatusOpen {
		t.Fatalf("dispute status = %s, want open", got.Status)
	}
}
