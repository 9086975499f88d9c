package jobs

import (
	"context"
	"errors"
	"time"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	expiryBatchSize       = 100
	defaultExpiryInterval = 5 * time.Minute
)

// dealExpirer is the part of DealService the job drives
type dealExpirer interface {
	ListExpired(ctx context.Context, limit int) ([]models.Deal, error)
	Expire(ctx context.Context, dealID uuid.UUID) error
}

// DealExpiryJob cancels deals whose seller never answered before the deadline
type DealExpiryJob struct {
	deals    dealExpirer
	interval time.Duration
	log      *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewDealExpiryJob creates a new deal expiry job
func NewDealExpiryJob(deals *services.DealService, interval time.Duration, log *zap.Logger) *DealExpiryJob {
	return newDealExpiryJob(deals, interval, log)
}

func newDealExpiryJob(deals dealExpirer, interval time.Duration, log *zap.Logger) *DealExpiryJob {
	// time.NewTicker panics on a non-positive interval
	if interval <= 0 {
		interval = defaultExpiryInterval
	}
	return &DealExpiryJob{
		deals:    deals,
		interval: interval,
		log:      log.Named("deal_expiry"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval until Stop
func (j *DealExpiryJob) Start() {
	defer close(j.done)
	j.log.Info("starting deal expiry job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(context.Background())
	for {
		select {
		case <-ticker.C:
			j.RunOnce(context.Background())
		case <-j.stopChan:
			j.log.Info("stopping deal expiry job")
			return
		}
	}
}

// Stop ends the loop and waits for the pass in flight to finish
func (j *DealExpiryJob) Stop() {
	close(j.stopChan)
	<-j.done
}

// RunOnce expires every overdue deal and returns how many it cancelled. A
// deal the seller answered in the meantime is skipped.
func (j *DealExpiryJob) RunOnce(ctx context.Context) int {
	expired := 0
	for {
		deals, err := j.deals.ListExpired(ctx, expiryBatchSize)
		if err != nil {
			j.log.Error("listing expired deals failed", zap.Error(err))
			return expired
		}

		progressed := 0
		for _, deal := range deals {
			err := j.deals.Expire(ctx, deal.ID)
			switch {
			case err == nil:
				progressed++
				j.log.Info("deal expired",
					zap.String("deal_id", deal.ID.String()),
					zap.String("reference", deal.Reference),
					zap.Time("deadline", deal.Deadline))
			case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrConcurrentUpdate):
				j.log.Debug("deal moved on before expiry", zap.String("deal_id", deal.ID.String()))
			default:
				j.log.Error("expiring deal failed", zap.String("deal_id", deal.ID.String()), zap.Error(err))
			}
		}
		expired += progressed

		if len(deals) < expiryBatchSize || progressed == 0 {
			return expired
		}
	}
}
