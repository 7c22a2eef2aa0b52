package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/outbox"
	"github.com/skillroads/skillroads-backend/pkg/outbox/payloads"
)

// CreatePlanInput holds the validated payload to create a plan.
type CreatePlanInput struct {
	ID           string
	Name         string
	Interval     enums.PlanInterval
	DurationDays int
	PricePaise   int64
	IsDefault    bool
	Features     []string
}

// Service manages subscription plans and the activate/expire lifecycle.
// Activation stacks: renewing before expiry extends the current end date
// instead of resetting it to now.
type Service interface {
	CreatePlan(ctx context.Context, input CreatePlanInput) (*models.Plan, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)

	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Activate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan *models.Plan, now time.Time) (*models.Subscription, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	outboxSvc *outbox.Service
}

// NewService constructs a subscriptions service instance.
func NewService(repo *Repository, dbClient *db.Client, outboxSvc *outbox.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{repo: repo, dbClient: dbClient, outboxSvc: outboxSvc}, nil
}

// CreatePlan validates and inserts a plan.
func (s *service) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	input.ID = strings.ToLower(strings.TrimSpace(input.ID))
	if input.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if !input.Interval.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan interval")
	}
	if input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan duration must be positive")
	}
	if input.PricePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan price must not be negative")
	}

	plan := &models.Plan{
		ID:           input.ID,
		Name:         strings.TrimSpace(input.Name),
		Status:       enums.PlanStatusActive,
		Interval:     input.Interval,
		DurationDays: input.DurationDays,
		PricePaise:   input.PricePaise,
		CurrencyCode: "INR",
		IsDefault:    input.IsDefault,
		Features:     input.Features,
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, "plans_pkey") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "plan id already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create plan")
	}
	return plan, nil
}

// GetPlan loads a plan by id.
func (s *service) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := s.repo.FindPlan(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

// ListPlans returns the sellable plans.
func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	return plans, nil
}

// GetByUser loads the user's subscription.
func (s *service) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription")
	}
	return sub, nil
}

// Activate starts or extends the user's subscription inside the caller's
// transaction. An active subscription stacks the plan's duration onto the
// existing end date so early renewal never loses paid-for time; a lapsed or
// missing one restarts from now.
func (s *service) Activate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan *models.Plan, now time.Time) (*models.Subscription, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activation requires a transaction")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activation requires a plan")
	}

	repo := s.repo.WithTx(tx)
	sub, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}

	renewal := false
	switch {
	case sub == nil:
		sub = &models.Subscription{
			ID:        uuid.New(),
			UserID:    userID,
			PlanID:    &plan.ID,
			Status:    enums.SubscriptionStatusActive,
			StartDate: now,
			EndDate:   now.Add(plan.Duration()),
		}
		if err := repo.Create(ctx, sub); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
		}
	case sub.IsActiveAt(now):
		renewal = true
		sub.PlanID = &plan.ID
		sub.EndDate = sub.EndDate.Add(plan.Duration())
		if err := repo.Update(ctx, sub); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "extend subscription")
		}
	default:
		sub.PlanID = &plan.ID
		sub.Status = enums.SubscriptionStatusActive
		sub.StartDate = now
		sub.EndDate = now.Add(plan.Duration())
		if err := repo.Update(ctx, sub); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reactivate subscription")
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventSubscriptionActivated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.SubscriptionActivatedEvent{
			SubscriptionID: sub.ID,
			UserID:         userID,
			PlanID:         plan.ID,
			StartDate:      sub.StartDate,
			EndDate:        sub.EndDate,
			Renewal:        renewal,
		},
	}
	if err := s.outboxSvc.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue activation event")
	}
	return sub, nil
}

// ExpireDue flips lapsed subscriptions to expired and queues one expiry
// event per transition. Rows another sweep already flipped are skipped.
// Returns how many subscriptions this call expired.
func (s *service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.ListDueForExpiry(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due subscriptions")
	}

	expired := 0
	for _, sub := range due {
		sub := sub
		err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			flipped, err := s.repo.WithTx(tx).MarkExpired(ctx, sub.ID)
			if err != nil {
				return err
			}
			if !flipped {
				return nil
			}
			expired++

			planID := ""
			if sub.PlanID != nil {
				planID = *sub.PlanID
			}
			return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSubscriptionExpired,
				AggregateType: enums.AggregateSubscription,
				AggregateID:   sub.ID,
				Version:       1,
				OccurredAt:    now,
				Data: payloads.SubscriptionExpiredEvent{
					SubscriptionID: sub.ID,
					UserID:         sub.UserID,
					PlanID:         planID,
					ExpiredAt:      now,
				},
			})
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire subscription")
		}
	}
	return expired, nil
}
