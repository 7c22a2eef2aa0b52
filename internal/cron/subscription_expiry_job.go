package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/skillroads/skillroads-backend/pkg/logger"
)

const expiryBatchSize = 200

type subscriptionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// SubscriptionExpiryJobParams configure the subscription expiry sweep.
type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionExpirer
}

// NewSubscriptionExpiryJob builds the cron job that flips lapsed
// subscriptions to expired.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	return &subscriptionExpiryJob{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		now:           time.Now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg          *logger.Logger
	subscriptions subscriptionExpirer
	now           func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

// Run sweeps in batches until a batch comes back short, so one cycle drains
// the backlog even after worker downtime.
func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for {
		expired, err := j.subscriptions.ExpireDue(ctx, now, expiryBatchSize)
		total += expired
		if err != nil {
			return fmt.Errorf("expire subscriptions: %w", err)
		}
		if expired < expiryBatchSize {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": total})
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return nil
}
