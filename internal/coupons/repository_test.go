package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/internal/testdb"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
)

func seedCoupon(t *testing.T, repo *Repository, limit int) *models.Coupon {
	t.Helper()
	now := time.Now().UTC()
	coupon := &models.Coupon{
		ID:              uuid.New(),
		Code:            "LAUNCH50",
		DiscountPercent: 50,
		ValidFrom:       now.Add(-time.Hour),
		ValidTo:         now.Add(time.Hour),
		Active:          true,
		UsageLimit:      limit,
	}
	if err := repo.Create(context.Background(), coupon); err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func TestConsumeRespectsUsageLimit(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	coupon := seedCoupon(t, repo, 2)
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		ok, err := repo.Consume(ctx, coupon.ID, now)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("consume %d should succeed", i)
		}
	}

	ok, err := repo.Consume(ctx, coupon.ID, now)
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if ok {
		t.Fatal("consume past the usage limit must fail")
	}

	got, err := repo.FindByID(ctx, coupon.ID)
	if err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if got.UsedCount != 2 {
		t.Fatalf("used_count must stop at the limit, got %d", got.UsedCount)
	}
}

func TestConsumeOutsideWindow(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	coupon := seedCoupon(t, repo, 10)

	ok, err := repo.Consume(ctx, coupon.ID, coupon.ValidTo.Add(time.Minute))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expired coupon must not be consumable")
	}

	ok, err = repo.Consume(ctx, coupon.ID, coupon.ValidFrom.Add(-time.Minute))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("not-yet-valid coupon must not be consumable")
	}
}

func TestConsumeInactive(t *testing.T) {
	conn := testdb.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	coupon := seedCoupon(t, repo, 10)

	if err := repo.Deactivate(ctx, coupon.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	ok, err := repo.Consume(ctx, coupon.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("inactive coupon must not be consumable")
	}
}

func TestServiceCreateValidations(t *testing.T) {
	conn := testdb.Open(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		name  string
		input CreateCouponInput
	}{
		{"emptyCode", CreateCouponInput{DiscountPercent: 10, ValidFrom: now, ValidTo: now.Add(time.Hour), UsageLimit: 1}},
		{"percentTooHigh", CreateCouponInput{Code: "X", DiscountPercent: 101, ValidFrom: now, ValidTo: now.Add(time.Hour), UsageLimit: 1}},
		{"negativePercent", CreateCouponInput{Code: "X", DiscountPercent: -1, ValidFrom: now, ValidTo: now.Add(time.Hour), UsageLimit: 1}},
		{"zeroLimit", CreateCouponInput{Code: "X", DiscountPercent: 10, ValidFrom: now, ValidTo: now.Add(time.Hour)}},
		{"invertedWindow", CreateCouponInput{Code: "X", DiscountPercent: 10, ValidFrom: now.Add(time.Hour), ValidTo: now, UsageLimit: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	created, err := svc.Create(ctx, CreateCouponInput{
		Code:            " launch50 ",
		DiscountPercent: 50,
		ValidFrom:       now,
		ValidTo:         now.Add(time.Hour),
		UsageLimit:      100,
	})
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	if created.Code != "LAUNCH50" {
		t.Fatalf("expected normalized code, got %q", created.Code)
	}

	if _, err := svc.Create(ctx, CreateCouponInput{
		Code:            "LAUNCH50",
		DiscountPercent: 10,
		ValidFrom:       now,
		ValidTo:         now.Add(time.Hour),
		UsageLimit:      5,
	}); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for duplicate code, got %v", err)
	}
}
