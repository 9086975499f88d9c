package services

import (
	"context"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Dashboard is the landing summary for a member
type Dashboard struct {
	User               models.PublicProfile `json:"user"`
	Balance            decimal.Decimal      `json:"balance"`
	HeldInEscrow       decimal.Decimal      `json:"held_in_escrow"`
	ActiveDeals        int64                `json:"active_deals"`
	CompletedDeals     int64                `json:"completed_deals"`
	DisputedDeals      int64                `json:"disputed_deals"`
	UnreadNotification int64                `json:"unread_notifications"`
	UnreadMessages     int64                `json:"unread_messages"`
	RecentDeals        []models.DealView    `json:"recent_deals"`
	RecentTransactions []models.Transaction `json:"recent_transactions"`
}

// DashboardService assembles the dashboard from independent queries
type DashboardService struct {
	repo *repository.Repository
}

func NewDashboardService(repo *repository.Repository) *DashboardService {
	return &DashboardService{repo: repo}
}

// Get runs the dashboard queries concurrently and fails if any of them fails
func (s *DashboardService) Get(ctx context.Context, userID uint) (*Dashboard, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	d := &Dashboard{User: user.Public(), Balance: user.WalletBalance}

	var deals []models.Deal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.HeldInEscrow, err = s.repo.SumEscrowHeld(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		d.ActiveDeals, err = s.repo.CountDealsForUser(gctx, userID, DealTabs["active"]...)
		return err
	})
	g.Go(func() error {
		var err error
		d.CompletedDeals, err = s.repo.CountDealsForUser(gctx, userID, DealTabs["completed"]...)
		return err
	})
	g.Go(func() error {
		var err error
		d.DisputedDeals, err = s.repo.CountDealsForUser(gctx, userID, DealTabs["disputed"]...)
		return err
	})
	g.Go(func() error {
		var err error
		d.UnreadNotification, err = s.repo.CountUnreadNotifications(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		d.UnreadMessages, err = s.repo.CountUnreadMessages(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		deals, err = s.repo.ListDealsForUser(gctx, repository.DealFilter{UserID: userID, Limit: 5})
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentTransactions, _, err = s.repo.ListTransactions(gctx, repository.TransactionFilter{UserID: userID, Limit: 5})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.RecentDeals = make([]models.DealView, 0, len(deals))
	for i := range deals {
		role, _ := deals[i].RoleOf(userID)
		d.RecentDeals = append(d.RecentDeals, *buildDealView(&deals[i], role))
	}
	return d, nil
}
