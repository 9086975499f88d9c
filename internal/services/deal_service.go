package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"
	"escrow-market/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	idempotencyScopePay = "deal_pay"
	maxReferenceRetries = 5
)

// DealTabs groups statuses the way the deal list is filtered.
var DealTabs = map[string][]models.DealStatus{
	"active": {
		models.DealStatusPendingAcceptance,
		models.DealStatusPendingPayment,
		models.DealStatusInProgress,
	},
	"completed": {
		models.DealStatusCompleted,
		models.DealStatusResolved,
		models.DealStatusRefunded,
	},
	"disputed": {models.DealStatusDisputed},
	"closed": {
		models.DealStatusCancelled,
		models.DealStatusRejected,
	},
	"all": nil,
}

// DealService owns the deal lifecycle. Every status change goes through
// applyTransition so the status, timeline, ledger and notifications commit
// together.
type DealService struct {
	repo     *repository.Repository
	fees     FeeSchedule
	activity activityRecorder
	log      *zap.Logger
	now      func() time.Time
}

// NewDealService creates a new DealService. activity may be nil.
func NewDealService(repo *repository.Repository, fees FeeSchedule, activity repository.ActivityLog, log *zap.Logger) *DealService {
	log = log.Named("deals")
	return &DealService{
		repo:     repo,
		fees:     fees,
		activity: activityRecorder{sink: activity, log: log},
		log:      log,
		now:      time.Now,
	}
}

// Fees returns the schedule new deals are priced with
func (s *DealService) Fees() FeeSchedule {
	return s.fees
}

// Create opens a deal with the caller as buyer. Without a named seller the
// deal waits for someone to join through its invite code.
func (s *DealService) Create(ctx context.Context, buyerID uint, req models.CreateDealRequest) (*models.DealView, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}
	if !validMoney(req.Amount) {
		return nil, invalidInput("amount must be positive with at most two decimals")
	}
	if req.TimelineDays <= 0 {
		return nil, invalidInput("timeline_days must be positive")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "General"
	}

	var seller *models.User
	if name := strings.TrimSpace(req.SellerUsername); name != "" {
		u, err := s.repo.GetUserByUsername(ctx, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: seller %q", ErrNotFound, name)
			}
			return nil, err
		}
		if u.ID == buyerID {
			return nil, invalidInput("you cannot open a deal with yourself")
		}
		seller = u
	}

	fee, total := s.fees.DealCharges(req.Amount)
	now := s.now().UTC()

	var deal *models.Deal
	for attempt := 0; ; attempt++ {
		reference, err := utils.GenerateDealReference()
		if err != nil {
			return nil, err
		}
		inviteCode, err := utils.GenerateInviteCode()
		if err != nil {
			return nil, err
		}

		deal = &models.Deal{
			Reference:       reference,
			InviteCode:      inviteCode,
			Title:           title,
			Description:     strings.TrimSpace(req.Description),
			Category:        category,
			Amount:          req.Amount,
			PlatformFeeRate: s.fees.PlatformRate,
			PlatformFee:     fee,
			TotalAmount:     total,
			BuyerID:         buyerID,
			Status:          models.DealStatusPendingAcceptance,
			TimelineDays:    req.TimelineDays,
			Deadline:        now.AddDate(0, 0, req.TimelineDays),
			CreatedAt:       now,
		}
		if seller != nil {
			deal.SellerID = &seller.ID
		}

		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if err := tx.CreateDeal(ctx, deal); err != nil {
				return err
			}
			actor := buyerID
			if err := tx.AppendDealEvent(ctx, &models.DealEvent{
				DealID:    deal.ID,
				Action:    models.DealActionCreate,
				ToStatus:  deal.Status,
				ActorID:   &actor,
				ActorRole: models.RoleBuyer,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			if seller != nil {
				return notify(ctx, tx, seller.ID, &deal.ID, models.NotificationDealInvite,
					fmt.Sprintf("New deal %s", deal.Reference),
					fmt.Sprintf("You were invited to sell %q for %s", deal.Title, deal.Amount.StringFixed(2)))
			}
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt+1 >= maxReferenceRetries {
			return nil, err
		}
		s.log.Debug("deal reference collision, retrying", zap.String("reference", reference))
	}

	s.log.Info("deal created",
		zap.String("deal_id", deal.ID.String()),
		zap.String("reference", deal.Reference),
		zap.Uint("buyer_id", buyerID))
	s.activity.record(ctx, "deal", deal.ID.String(), "", string(deal.Status), &buyerID, "created")

	return s.GetDetail(ctx, deal.ID, buyerID, false)
}

// GetDetail returns a deal with its timeline as seen by viewerID. Non-parties
// get ErrNotFound unless they are support staff.
func (s *DealService) GetDetail(ctx context.Context, dealID uuid.UUID, viewerID uint, isSupport bool) (*models.DealView, error) {
	deal, err := s.repo.GetDeal(ctx, dealID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	role, ok := deal.RoleOf(viewerID)
	if !ok {
		if !isSupport {
			return nil, ErrNotFound
		}
		role = models.RoleSupport
	}

	events, err := s.repo.ListDealEvents(ctx, deal.ID)
	if err != nil {
		return nil, err
	}

	view := buildDealView(deal, role)
	view.Timeline = events
	return view, nil
}

// List returns the user's deals for a tab (active, completed, disputed,
// closed or all)
func (s *DealService) List(ctx context.Context, userID uint, tab string, limit, offset int) ([]models.DealView, error) {
	if tab == "" {
		tab = "all"
	}
	statuses, ok := DealTabs[tab]
	if !ok {
		return nil, invalidInput("unknown tab %q", tab)
	}

	deals, err := s.repo.ListDealsForUser(ctx, repository.DealFilter{
		UserID:   userID,
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.DealView, 0, len(deals))
	for i := range deals {
		role, _ := deals[i].RoleOf(userID)
		out = append(out, *buildDealView(&deals[i], role))
	}
	return out, nil
}

// PreviewInvite shows an open deal to a prospective seller
func (s *DealService) PreviewInvite(ctx context.Context, code string) (*models.DealInvite, error) {
	deal, err := s.repo.GetDealByInviteCode(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if deal.SellerID != nil || deal.Status != models.DealStatusPendingAcceptance {
		return nil, fmt.Errorf("%w: invite is no longer open", ErrNotFound)
	}

	invite := &models.DealInvite{
		Reference:    deal.Reference,
		Title:        deal.Title,
		Description:  deal.Description,
		Category:     deal.Category,
		Amount:       deal.Amount,
		TimelineDays: deal.TimelineDays,
		Deadline:     deal.Deadline,
		Status:       deal.Status,
	}
	if deal.Buyer != nil {
		invite.Buyer = deal.Buyer.Public()
	}
	return invite, nil
}

// AcceptInvite makes the caller the seller of an open deal and accepts it in
// the same transaction.
func (s *DealService) AcceptInvite(ctx context.Context, code string, userID uint) (*models.DealView, error) {
	deal, err := s.repo.GetDealByInviteCode(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}

	return s.act(ctx, transitionInput{
		dealID:  deal.ID,
		action:  models.DealActionAccept,
		actorID: &userID,
		note:    "joined via invite",
		prepare: func(tx *repository.Repository, d *models.Deal) error {
			if d.BuyerID == userID {
				return fmt.Errorf("%w: you cannot join your own deal", ErrForbidden)
			}
			if d.SellerID != nil {
				if *d.SellerID == userID {
					return nil
				}
				return fmt.Errorf("%w: invite is no longer open", ErrNotFound)
			}
			if err := tx.ClaimSeller(ctx, d.ID, userID); err != nil {
				return mapRepoError(err)
			}
			d.SellerID = &userID
			return nil
		},
	})
}

// Accept is the seller agreeing to the deal terms
func (s *DealService) Accept(ctx context.Context, dealID uuid.UUID, userID uint) (*models.DealView, error) {
	return s.act(ctx, transitionInput{dealID: dealID, action: models.DealActionAccept, actorID: &userID})
}

// Reject is the seller declining the deal
func (s *DealService) Reject(ctx context.Context, dealID uuid.UUID, userID uint, reason string) (*models.DealView, error) {
	return s.act(ctx, transitionInput{dealID: dealID, action: models.DealActionReject, actorID: &userID, note: reason})
}

// Cancel is the buyer withdrawing the deal before the seller accepts
func (s *DealService) Cancel(ctx context.Context, dealID uuid.UUID, userID uint, reason string) (*models.DealView, error) {
	return s.act(ctx, transitionInput{dealID: dealID, action: models.DealActionCancel, actorID: &userID, note: reason})
}

// Pay moves total_amount from the buyer's wallet into escrow. A repeated
// call with the same idempotency key returns the deal without charging again.
func (s *DealService) Pay(ctx context.Context, dealID uuid.UUID, userID uint, idempotencyKey string) (*models.DealView, error) {
	scope := idempotencyScopePay + ":" + dealID.String()
	var (
		res    *transitionResult
		replay bool
	)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if idempotencyKey != "" {
			k, err := tx.FindIdempotencyKey(ctx, userID, idempotencyKey)
			switch {
			case err == nil:
				if k.Scope != scope {
					return ErrIdempotencyReuse
				}
				replay = true
				return nil
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}

		var err error
		res, err = s.applyTransition(ctx, tx, transitionInput{
			dealID:  dealID,
			action:  models.DealActionPay,
			actorID: &userID,
			effect: func(tx *repository.Repository, deal *models.Deal, now time.Time) error {
				if err := tx.DebitWallet(ctx, userID, deal.TotalAmount); err != nil {
					return mapRepoError(err)
				}
				payment, err := s.ledgerEntry(deal, userID, models.TransactionTypePayment, deal.TotalAmount, now,
					fmt.Sprintf("Escrow payment for deal %s", deal.Reference))
				if err != nil {
					return err
				}
				payment.Fee = deal.PlatformFee
				if err := tx.CreateTransaction(ctx, payment); err != nil {
					return err
				}
				if idempotencyKey == "" {
					return nil
				}
				return tx.SaveIdempotencyKey(ctx, &models.IdempotencyKey{
					UserID:        userID,
					Key:           idempotencyKey,
					Scope:         scope,
					TransactionID: &payment.ID,
				})
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !replay {
		s.afterTransition(ctx, res)
	}
	return s.GetDetail(ctx, dealID, userID, false)
}

// Complete is the buyer confirming delivery. The seller is credited the deal
// amount; the platform keeps the fee.
func (s *DealService) Complete(ctx context.Context, dealID uuid.UUID, userID uint) (*models.DealView, error) {
	return s.act(ctx, transitionInput{
		dealID:  dealID,
		action:  models.DealActionComplete,
		actorID: &userID,
		effect: func(tx *repository.Repository, deal *models.Deal, now time.Time) error {
			if err := s.releaseToSeller(ctx, tx, deal, now); err != nil {
				return err
			}
			return tx.IncrementCompletedDeals(ctx, deal.BuyerID, *deal.SellerID)
		},
	})
}

// Expire cancels a deal the seller never answered. It runs as the system.
func (s *DealService) Expire(ctx context.Context, dealID uuid.UUID) error {
	_, err := s.transition(ctx, transitionInput{
		dealID: dealID,
		action: models.DealActionExpire,
		role:   models.RoleSystem,
		note:   "deadline passed without seller response",
	})
	return err
}

// ListExpired returns pending-acceptance deals past their deadline
func (s *DealService) ListExpired(ctx context.Context, limit int) ([]models.Deal, error) {
	return s.repo.ListExpiredPendingDeals(ctx, s.now().UTC(), limit)
}

// releaseToSeller credits the seller the deal amount and records the payout
func (s *DealService) releaseToSeller(ctx context.Context, tx *repository.Repository, deal *models.Deal, now time.Time) error {
	if deal.SellerID == nil {
		return fmt.Errorf("deal %s has no seller to pay", deal.Reference)
	}
	if err := tx.CreditWallet(ctx, *deal.SellerID, deal.Amount); err != nil {
		return mapRepoError(err)
	}
	payout, err := s.ledgerEntry(deal, *deal.SellerID, models.TransactionTypePayout, deal.Amount, now,
		fmt.Sprintf("Payout for deal %s", deal.Reference))
	if err != nil {
		return err
	}
	return tx.CreateTransaction(ctx, payout)
}

// refundToBuyer returns the full amount the buyer paid, fee included
func (s *DealService) refundToBuyer(ctx context.Context, tx *repository.Repository, deal *models.Deal, now time.Time) error {
	if err := tx.CreditWallet(ctx, deal.BuyerID, deal.TotalAmount); err != nil {
		return mapRepoError(err)
	}
	refund, err := s.ledgerEntry(deal, deal.BuyerID, models.TransactionTypeRefund, deal.TotalAmount, now,
		fmt.Sprintf("Refund for deal %s", deal.Reference))
	if err != nil {
		return err
	}
	return tx.CreateTransaction(ctx, refund)
}

// ledgerEntry builds a completed wallet transaction tied to a deal
func (s *DealService) ledgerEntry(deal *models.Deal, userID uint, typ models.TransactionType,
	amount decimal.Decimal, now time.Time, description string) (*models.Transaction, error) {

	reference, err := utils.GenerateTransactionReference(string(typ))
	if err != nil {
		return nil, err
	}
	return &models.Transaction{
		UserID:      userID,
		DealID:      &deal.ID,
		Type:        typ,
		Amount:      amount,
		Method:      models.MethodWallet,
		Reference:   reference,
		Status:      models.TransactionStatusCompleted,
		Description: description,
		CreatedAt:   now,
		CompletedAt: &now,
	}, nil
}

// transitionInput describes one requested status change
type transitionInput struct {
	dealID  uuid.UUID
	action  models.DealAction
	actorID *uint
	// role is derived from actorID's place in the deal when empty
	role models.PartyRole
	note string
	// prepare runs on the locked deal before the role is resolved
	prepare func(tx *repository.Repository, deal *models.Deal) error
	// effect runs after the status update, inside the same transaction
	effect func(tx *repository.Repository, deal *models.Deal, now time.Time) error
}

type transitionResult struct {
	deal    *models.Deal
	from    models.DealStatus
	role    models.PartyRole
	actorID *uint
	note    string
}

// act runs a transition and returns the deal as the actor now sees it
func (s *DealService) act(ctx context.Context, in transitionInput) (*models.DealView, error) {
	res, err := s.transition(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.GetDetail(ctx, res.deal.ID, *in.actorID, false)
}

// transition runs applyTransition in its own database transaction
func (s *DealService) transition(ctx context.Context, in transitionInput) (*transitionResult, error) {
	var res *transitionResult
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		res, err = s.applyTransition(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, res)
	return res, nil
}

// applyTransition validates and performs a status change on tx. The status
// update is conditional on the status that was read, so two racing actors
// cannot both succeed.
func (s *DealService) applyTransition(ctx context.Context, tx *repository.Repository, in transitionInput) (*transitionResult, error) {
	deal, err := tx.GetDealForUpdate(ctx, in.dealID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if in.prepare != nil {
		if err := in.prepare(tx, deal); err != nil {
			return nil, err
		}
	}

	role := in.role
	if role == "" {
		if in.actorID == nil {
			return nil, ErrForbidden
		}
		r, ok := deal.RoleOf(*in.actorID)
		if !ok {
			return nil, ErrNotFound
		}
		role = r
	}

	next, err := NextDealStatus(deal.Status, in.action, role)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := tx.TransitionDeal(ctx, deal.ID, deal.Status, next, timestampFields(next, now)); err != nil {
		return nil, mapRepoError(err)
	}

	from := deal.Status
	deal.Status = next

	if err := tx.AppendDealEvent(ctx, &models.DealEvent{
		DealID:     deal.ID,
		Action:     in.action,
		FromStatus: from,
		ToStatus:   next,
		ActorID:    in.actorID,
		ActorRole:  role,
		Note:       in.note,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	if in.effect != nil {
		if err := in.effect(tx, deal, now); err != nil {
			return nil, err
		}
	}

	title := fmt.Sprintf("Deal %s is now %s", deal.Reference, next)
	for _, uid := range notifyTargets(deal, role) {
		if err := notify(ctx, tx, uid, &deal.ID, models.NotificationDealUpdate, title, deal.Title); err != nil {
			return nil, err
		}
	}

	return &transitionResult{deal: deal, from: from, role: role, actorID: in.actorID, note: in.note}, nil
}

func (s *DealService) afterTransition(ctx context.Context, res *transitionResult) {
	if res == nil {
		return
	}
	s.log.Info("deal transition",
		zap.String("deal_id", res.deal.ID.String()),
		zap.String("from", string(res.from)),
		zap.String("to", string(res.deal.Status)),
		zap.String("role", string(res.role)))
	s.activity.record(ctx, "deal", res.deal.ID.String(), string(res.from), string(res.deal.Status), res.actorID, res.note)
}

// notifyTargets picks who hears about a transition: the other party when a
// party acted, both parties otherwise.
func notifyTargets(deal *models.Deal, role models.PartyRole) []uint {
	switch role {
	case models.RoleBuyer:
		if deal.SellerID != nil {
			return []uint{*deal.SellerID}
		}
		return nil
	case models.RoleSeller:
		return []uint{deal.BuyerID}
	}
	out := []uint{deal.BuyerID}
	if deal.SellerID != nil {
		out = append(out, *deal.SellerID)
	}
	return out
}

func timestampFields(next models.DealStatus, now time.Time) map[string]interface{} {
	switch next {
	case models.DealStatusPendingPayment:
		return map[string]interface{}{"accepted_at": now}
	case models.DealStatusInProgress:
		return map[string]interface{}{"paid_at": now}
	case models.DealStatusCompleted:
		return map[string]interface{}{"completed_at": now, "closed_at": now}
	case models.DealStatusDisputed:
		return nil
	}
	if IsTerminal(next) {
		return map[string]interface{}{"closed_at": now}
	}
	return nil
}

func buildDealView(deal *models.Deal, role models.PartyRole) *models.DealView {
	d := *deal
	if role != models.RoleBuyer {
		d.InviteCode = ""
	}
	view := &models.DealView{
		Deal:           &d,
		ViewerRole:     role,
		AllowedActions: AllowedActions(deal.Status, role),
	}
	if deal.Buyer != nil {
		p := deal.Buyer.Public()
		view.BuyerProfile = &p
	}
	if deal.Seller != nil {
		p := deal.Seller.Public()
		view.SellerProfile = &p
	}
	return view
}
