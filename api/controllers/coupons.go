package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/api/responses"
	"github.com/skillroads/skillroads-backend/api/validators"
	"github.com/skillroads/skillroads-backend/internal/catalog"
	"github.com/skillroads/skillroads-backend/internal/coupons"
	"github.com/skillroads/skillroads-backend/internal/pricing"
	"github.com/skillroads/skillroads-backend/internal/subscriptions"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

// AdminCreateCoupon registers a percentage coupon with a usage cap.
func AdminCreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		coupon, err := svc.Create(r.Context(), coupons.CreateCouponInput{
			Code:            payload.Code,
			DiscountPercent: payload.DiscountPercent,
			ValidFrom:       payload.ValidFrom,
			ValidTo:         payload.ValidTo,
			UsageLimit:      payload.UsageLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(*coupon))
	}
}

// AdminListCoupons returns all coupons with their usage counters.
func AdminListCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]couponResponse, 0, len(list))
		for _, coupon := range list {
			out = append(out, newCouponResponse(coupon))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminDeactivateCoupon retires a coupon without deleting its redemption
// history.
func AdminDeactivateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		couponID, err := parseUUIDParam(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), couponID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deactivated": true})
	}
}

// CouponPreview quotes what a coupon would do to a purchasable's price
// without consuming a usage slot.
func CouponPreview(engine *pricing.Engine, catalogSvc catalog.Service, plansSvc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload couponPreviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		basePaise, err := previewBasePrice(r, payload, catalogSvc, plansSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := engine.Preview(r.Context(), basePaise, payload.Code, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quoteResponse{
			BasePaise:     quote.BasePaise,
			DiscountPaise: quote.DiscountPaise,
			TotalPaise:    quote.TotalPaise,
			CouponCode:    quote.CouponCode,
		})
	}
}

func previewBasePrice(r *http.Request, payload couponPreviewRequest, catalogSvc catalog.Service, plansSvc subscriptions.Service) (int64, error) {
	switch enums.CheckoutKind(payload.Kind) {
	case enums.CheckoutKindPlan:
		if payload.PlanID == "" {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "plan_id is required for plan previews")
		}
		plan, err := plansSvc.GetPlan(r.Context(), payload.PlanID)
		if err != nil {
			return 0, err
		}
		return plan.PricePaise, nil
	case enums.CheckoutKindItem:
		if payload.ItemID == nil {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "item_id is required for item previews")
		}
		item, err := catalogSvc.GetItem(r.Context(), *payload.ItemID)
		if err != nil {
			return 0, err
		}
		return item.PricePaise, nil
	case enums.CheckoutKindBundle:
		if payload.BundleID == nil {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "bundle_id is required for bundle previews")
		}
		bundle, err := catalogSvc.GetBundle(r.Context(), *payload.BundleID)
		if err != nil {
			return 0, err
		}
		return bundle.PricePaise, nil
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, "kind must be plan, item, or bundle")
}

type createCouponRequest struct {
	Code            string    `json:"code" validate:"required,min=2,max=64"`
	DiscountPercent int       `json:"discount_percent" validate:"min=0,max=100"`
	ValidFrom       time.Time `json:"valid_from" validate:"required"`
	ValidTo         time.Time `json:"valid_to" validate:"required"`
	UsageLimit      int       `json:"usage_limit" validate:"required,min=1"`
}

type couponPreviewRequest struct {
	Kind     string     `json:"kind" validate:"required,oneof=plan item bundle"`
	PlanID   string     `json:"plan_id,omitempty"`
	ItemID   *uuid.UUID `json:"item_id,omitempty"`
	BundleID *uuid.UUID `json:"bundle_id,omitempty"`
	Code     string     `json:"code" validate:"required,min=2,max=64"`
}

type couponResponse struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	Active          bool      `json:"active"`
	UsageLimit      int       `json:"usage_limit"`
	UsedCount       int       `json:"used_count"`
}

type quoteResponse struct {
	BasePaise     int64  `json:"base_paise"`
	DiscountPaise int64  `json:"discount_paise"`
	TotalPaise    int64  `json:"total_paise"`
	CouponCode    string `json:"coupon_code,omitempty"`
}

func newCouponResponse(coupon models.Coupon) couponResponse {
	return couponResponse{
		ID:              coupon.ID,
		Code:            coupon.Code,
		DiscountPercent: coupon.DiscountPercent,
		ValidFrom:       coupon.ValidFrom,
		ValidTo:         coupon.ValidTo,
		Active:          coupon.Active,
		UsageLimit:      coupon.UsageLimit,
		UsedCount:       coupon.UsedCount,
	}
}
