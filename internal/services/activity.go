package services

import (
	"context"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"go.uber.org/zap"
)

// activityRecorder writes status history after the owning transaction has
// committed. Failures are logged and never reach the caller.
type activityRecorder struct {
	sink repository.ActivityLog
	log  *zap.Logger
}

func (a activityRecorder) record(ctx context.Context, relatedType, relatedID string, oldStatus, newStatus string, changedBy *uint, note string) {
	if a.sink == nil {
		return
	}
	entry := &models.ActivityLog{
		RelatedID:   relatedID,
		RelatedType: relatedType,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		ChangedBy:   changedBy,
		Note:        note,
	}
	if err := a.sink.Record(context.WithoutCancel(ctx), entry); err != nil {
		a.log.Warn("activity log write failed",
			zap.String("related_type", relatedType),
			zap.String("related_id", relatedID),
			zap.Error(err))
	}
}
