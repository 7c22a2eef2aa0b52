package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/internal/testdb"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := testdb.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "subscriptions-test", Level: zerolog.ErrorLevel})
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	svc, err := NewService(NewRepository(conn), client, outboxSvc)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func mustCreatePlan(t *testing.T, svc Service, id string, days int) *models.Plan {
	t.Helper()
	plan, err := svc.CreatePlan(context.Background(), CreatePlanInput{
		ID:           id,
		Name:         id,
		Interval:     enums.PlanIntervalMonthly,
		DurationDays: days,
		PricePaise:   39900,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return plan
}

func activate(t *testing.T, svc Service, conn *gorm.DB, userID uuid.UUID, plan *models.Plan, now time.Time) *models.Subscription {
	t.Helper()
	var sub *models.Subscription
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = svc.Activate(context.Background(), tx, userID, plan, now)
		return err
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	return sub
}

func TestActivateStartsFromNow(t *testing.T) {
	svc, conn := newTestService(t)
	plan := mustCreatePlan(t, svc, "pro-monthly", 30)

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	sub := activate(t, svc, conn, uuid.New(), plan, now)

	if !sub.EndDate.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("expected end 30 days out, got %s", sub.EndDate)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", sub.Status)
	}
}

func TestActivateStacksOnActiveSubscription(t *testing.T) {
	svc, conn := newTestService(t)
	plan := mustCreatePlan(t, svc, "pro-monthly", 30)
	userID := uuid.New()

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	first := activate(t, svc, conn, userID, plan, start)

	// Renew 10 days in, well before expiry.
	renewedAt := start.Add(10 * 24 * time.Hour)
	second := activate(t, svc, conn, userID, plan, renewedAt)

	if second.ID != first.ID {
		t.Fatalf("renewal must extend the existing row, got %s and %s", first.ID, second.ID)
	}
	want := first.EndDate.Add(30 * 24 * time.Hour)
	if !second.EndDate.Equal(want) {
		t.Fatalf("expected stacked end %s, got %s", want, second.EndDate)
	}
	if !second.StartDate.Equal(first.StartDate) {
		t.Fatalf("renewal must not move the start date, got %s", second.StartDate)
	}
}

func TestActivateAfterLapseRestartsFromNow(t *testing.T) {
	svc, conn := newTestService(t)
	plan := mustCreatePlan(t, svc, "pro-monthly", 30)
	userID := uuid.New()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	activate(t, svc, conn, userID, plan, start)

	// Come back long after the first term ended.
	rejoinedAt := start.Add(90 * 24 * time.Hour)
	sub := activate(t, svc, conn, userID, plan, rejoinedAt)

	if !sub.StartDate.Equal(rejoinedAt) {
		t.Fatalf("expected restart from now, got start %s", sub.StartDate)
	}
	if !sub.EndDate.Equal(rejoinedAt.Add(30 * 24 * time.Hour)) {
		t.Fatalf("expected fresh 30 day term, got end %s", sub.EndDate)
	}
}

func TestExpireDueFlipsLapsedAndQueuesEvents(t *testing.T) {
	svc, conn := newTestService(t)
	plan := mustCreatePlan(t, svc, "pro-monthly", 30)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	lapsedUser := uuid.New()
	activeUser := uuid.New()
	activate(t, svc, conn, lapsedUser, plan, start)
	activate(t, svc, conn, activeUser, plan, start.Add(25*24*time.Hour))

	sweepAt := start.Add(31 * 24 * time.Hour)
	expired, err := svc.ExpireDue(context.Background(), sweepAt, 50)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected one expiry, got %d", expired)
	}

	lapsed, err := svc.GetByUser(context.Background(), lapsedUser)
	if err != nil {
		t.Fatalf("load lapsed: %v", err)
	}
	if lapsed.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("expected expired status, got %s", lapsed.Status)
	}

	stillActive, err := svc.GetByUser(context.Background(), activeUser)
	if err != nil {
		t.Fatalf("load active: %v", err)
	}
	if stillActive.Status != enums.SubscriptionStatusActive {
		t.Fatalf("active subscription must survive the sweep, got %s", stillActive.Status)
	}

	// A second sweep finds nothing left to do.
	expired, err = svc.ExpireDue(context.Background(), sweepAt, 50)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected idempotent sweep, got %d", expired)
	}

	var events []models.OutboxEvent
	if err := conn.Where("event_type = ?", enums.EventSubscriptionExpired).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one expiry event, got %d", len(events))
	}
}

func TestCreatePlanValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreatePlanInput
	}{
		{"missing id", CreatePlanInput{Name: "Pro", Interval: enums.PlanIntervalMonthly, DurationDays: 30}},
		{"bad interval", CreatePlanInput{ID: "pro", Name: "Pro", Interval: enums.PlanInterval("weekly"), DurationDays: 30}},
		{"zero duration", CreatePlanInput{ID: "pro", Name: "Pro", Interval: enums.PlanIntervalMonthly}},
		{"negative price", CreatePlanInput{ID: "pro", Name: "Pro", Interval: enums.PlanIntervalMonthly, DurationDays: 30, PricePaise: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreatePlan(ctx, tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := svc.CreatePlan(ctx, CreatePlanInput{ID: "pro", Name: "Pro", Interval: enums.PlanIntervalMonthly, DurationDays: 30, PricePaise: 100}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	_, err := svc.CreatePlan(ctx, CreatePlanInput{ID: "PRO", Name: "Pro Again", Interval: enums.PlanIntervalMonthly, DurationDays: 30, PricePaise: 100})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
