package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/internal/coupons"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
)

// Quote is the authoritative pricing result for a checkout. All amounts are
// integer paise; the discount is rounded half up and the total never drops
// below zero.
type Quote struct {
	BasePaise     int64
	DiscountPaise int64
	TotalPaise    int64
	CouponID      *uuid.UUID
	CouponCode    string
}

// Engine computes checkout prices and redeems coupons.
type Engine struct {
	coupons *coupons.Repository
}

// NewEngine constructs a pricing engine.
func NewEngine(couponRepo *coupons.Repository) (*Engine, error) {
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Engine{coupons: couponRepo}, nil
}

// Preview computes the price a coupon would produce without consuming a
// usage slot. An unusable coupon is reported as CouponInvalid.
func (e *Engine) Preview(ctx context.Context, basePaise int64, code string, now time.Time) (*Quote, error) {
	if basePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
	}
	if strings.TrimSpace(code) == "" {
		return &Quote{BasePaise: basePaise, TotalPaise: basePaise}, nil
	}

	coupon, err := e.lookupUsable(ctx, e.coupons, code, now)
	if err != nil {
		return nil, err
	}
	return buildQuote(basePaise, coupon), nil
}

// Redeem computes the final price and consumes one usage slot atomically.
// It must run inside the checkout transaction so a failed checkout insert
// rolls the slot back. Losing the race for the last slot is CouponInvalid.
func (e *Engine) Redeem(ctx context.Context, tx *gorm.DB, basePaise int64, code string, now time.Time) (*Quote, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if basePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
	}
	if strings.TrimSpace(code) == "" {
		return &Quote{BasePaise: basePaise, TotalPaise: basePaise}, nil
	}

	repo := e.coupons.WithTx(tx)
	coupon, err := e.lookupUsable(ctx, repo, code, now)
	if err != nil {
		return nil, err
	}

	consumed, err := repo.Consume(ctx, coupon.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming coupon")
	}
	if !consumed {
		return nil, couponInvalid("coupon is no longer redeemable")
	}
	return buildQuote(basePaise, coupon), nil
}

func (e *Engine) lookupUsable(ctx context.Context, repo *coupons.Repository, code string, now time.Time) (*models.Coupon, error) {
	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, couponInvalid("unknown coupon code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading coupon")
	}
	switch {
	case !coupon.Active:
		return nil, couponInvalid("coupon is inactive")
	case now.Before(coupon.ValidFrom):
		return nil, couponInvalid("coupon is not valid yet")
	case now.After(coupon.ValidTo):
		return nil, couponInvalid("coupon has expired")
	case coupon.UsedCount >= coupon.UsageLimit:
		return nil, couponInvalid("coupon usage limit reached")
	}
	return coupon, nil
}

func buildQuote(basePaise int64, coupon *models.Coupon) *Quote {
	discount := discountPaise(basePaise, coupon.DiscountPercent)
	total := basePaise - discount
	if total < 0 {
		total = 0
	}
	id := coupon.ID
	return &Quote{
		BasePaise:     basePaise,
		DiscountPaise: discount,
		TotalPaise:    total,
		CouponID:      &id,
		CouponCode:    coupon.Code,
	}
}

// discountPaise computes base * percent / 100 in paise, rounding half up.
func discountPaise(basePaise int64, percent int) int64 {
	return decimal.NewFromInt(basePaise).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func couponInvalid(reason string) error {
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon cannot be applied").
		WithDetails(map[string]any{"reason": reason})
}
