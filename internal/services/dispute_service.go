package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DisputeService handles disputes raised on in-progress deals and their
// resolution by support staff
type DisputeService struct {
	repo     *repository.Repository
	deals    *DealService
	activity activityRecorder
	log      *zap.Logger
}

func NewDisputeService(repo *repository.Repository, deals *DealService, activity repository.ActivityLog, log *zap.Logger) *DisputeService {
	log = log.Named("disputes")
	return &DisputeService{
		repo:     repo,
		deals:    deals,
		activity: activityRecorder{sink: activity, log: log},
		log:      log,
	}
}

// Raise opens a dispute and moves the deal to disputed in one transaction
func (s *DisputeService) Raise(ctx context.Context, dealID uuid.UUID, userID uint, req models.RaiseDisputeRequest) (*models.Dispute, error) {
	reason := strings.TrimSpace(req.Reason)
	description := strings.TrimSpace(req.Description)
	if reason == "" || description == "" {
		return nil, invalidInput("reason and description are required")
	}

	var (
		dispute *models.Dispute
		res     *transitionResult
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		res, err = s.deals.applyTransition(ctx, tx, transitionInput{
			dealID:  dealID,
			action:  models.DealActionDispute,
			actorID: &userID,
			note:    reason,
			effect: func(tx *repository.Repository, deal *models.Deal, now time.Time) error {
				open, err := tx.HasOpenDispute(ctx, deal.ID)
				if err != nil {
					return err
				}
				if open {
					return ErrDisputeOpen
				}
				dispute = &models.Dispute{
					DealID:      deal.ID,
					RaisedBy:    userID,
					Reason:      reason,
					Description: description,
					Status:      models.DisputeStatusOpen,
					CreatedAt:   now,
				}
				return tx.CreateDispute(ctx, dispute)
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deals.afterTransition(ctx, res)
	s.activity.record(ctx, "dispute", dispute.ID.String(), "", string(dispute.Status), &userID, reason)
	s.log.Info("dispute raised",
		zap.String("dispute_id", dispute.ID.String()),
		zap.String("deal_id", dealID.String()),
		zap.Uint("raised_by", userID))
	return dispute, nil
}

// Resolve closes an open dispute. release and reject pay the seller the deal
// amount, mark the deal resolved and count it as completed for both parties;
// refund returns the total to the buyer and marks the deal refunded. Staff
// cannot resolve disputes on deals they are a party to.
func (s *DisputeService) Resolve(ctx context.Context, disputeID uuid.UUID, staffUserID uint, req models.ResolveDisputeRequest) (*models.Dispute, error) {
	resolution := strings.TrimSpace(req.Resolution)
	if resolution == "" {
		return nil, invalidInput("resolution is required")
	}

	var action models.DealAction
	closedAs := models.DisputeStatusResolved
	switch req.Outcome {
	case models.OutcomeRelease:
		action = models.DealActionRelease
	case models.OutcomeReject:
		action = models.DealActionRelease
		closedAs = models.DisputeStatusRejected
	case models.OutcomeRefund:
		action = models.DealActionRefund
	default:
		return nil, invalidInput("outcome must be release, refund or reject")
	}

	var res *transitionResult
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		d, err := tx.GetDisputeForUpdate(ctx, disputeID)
		if err != nil {
			return mapRepoError(err)
		}
		if d.Status != models.DisputeStatusOpen {
			return ErrDisputeClosed
		}

		res, err = s.deals.applyTransition(ctx, tx, transitionInput{
			dealID:  d.DealID,
			action:  action,
			actorID: &staffUserID,
			role:    models.RoleSupport,
			note:    resolution,
			prepare: func(_ *repository.Repository, deal *models.Deal) error {
				if _, party := deal.RoleOf(staffUserID); party {
					return fmt.Errorf("%w: staff cannot resolve a dispute on their own deal", ErrForbidden)
				}
				return nil
			},
			effect: func(tx *repository.Repository, deal *models.Deal, now time.Time) error {
				if err := tx.CloseDispute(ctx, d.ID, closedAs, req.Outcome, resolution, staffUserID, now); err != nil {
					return mapRepoError(err)
				}
				if action == models.DealActionRefund {
					return s.deals.refundToBuyer(ctx, tx, deal, now)
				}
				if err := s.deals.releaseToSeller(ctx, tx, deal, now); err != nil {
					return err
				}
				// a paid-out deal counts as completed for both parties
				return tx.IncrementCompletedDeals(ctx, deal.BuyerID, *deal.SellerID)
			},
		})
		if err != nil {
			return err
		}

		msg := fmt.Sprintf("Dispute on deal %s closed: %s", res.deal.Reference, req.Outcome)
		for _, uid := range notifyTargets(res.deal, models.RoleSupport) {
			if err := notify(ctx, tx, uid, &res.deal.ID, models.NotificationDisputeUpdate, msg, resolution); err != nil {
				return err
			}
		}

		return tx.CreateAdminLog(ctx, &models.AdminLog{
			AdminID:      staffUserID,
			Action:       "RESOLVE_DISPUTE",
			ResourceType: "dispute",
			ResourceID:   d.ID.String(),
			Details: models.JSONB{
				"outcome": string(req.Outcome),
				"deal_id": d.DealID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.deals.afterTransition(ctx, res)
	s.activity.record(ctx, "dispute", disputeID.String(), string(models.DisputeStatusOpen), string(closedAs), &staffUserID, resolution)
	s.log.Info("dispute resolved",
		zap.String("dispute_id", disputeID.String()),
		zap.String("outcome", string(req.Outcome)),
		zap.Uint("staff_user_id", staffUserID))

	return s.repo.GetDispute(ctx, disputeID)
}

// Get returns a dispute visible to the caller
func (s *DisputeService) Get(ctx context.Context, disputeID uuid.UUID, userID uint, isSupport bool) (*models.Dispute, error) {
	d, err := s.repo.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !isSupport {
		if d.Deal == nil {
			return nil, ErrNotFound
		}
		if _, ok := d.Deal.RoleOf(userID); !ok {
			return nil, ErrNotFound
		}
	}
	return d, nil
}

// ListForUser returns disputes on the caller's deals
func (s *DisputeService) ListForUser(ctx context.Context, userID uint) ([]models.Dispute, error) {
	return s.repo.ListDisputesForUser(ctx, userID)
}

// ListAll returns disputes for support staff, oldest first
func (s *DisputeService) ListAll(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error) {
	return s.repo.ListDisputes(ctx, status, limit, offset)
}
