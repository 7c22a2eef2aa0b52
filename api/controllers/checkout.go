package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/api/middleware"
	"github.com/skillroads/skillroads-backend/api/responses"
	"github.com/skillroads/skillroads-backend/api/validators"
	checkoutsvc "github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/pagination"
)

// CheckoutStart opens a pending transaction and hands back the gateway
// session the client pays through.
func CheckoutStart(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutStartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.StartInput{
			UserID:     userID,
			Kind:       enums.CheckoutKind(payload.Kind),
			PlanID:     payload.PlanID,
			CouponCode: payload.CouponCode,
		}
		if payload.ItemID != nil {
			input.ItemID = *payload.ItemID
		}
		if payload.BundleID != nil {
			input.BundleID = *payload.BundleID
		}

		result, err := svc.Start(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutStartResponse{
			Transaction:   newTransactionResponse(*result.Transaction),
			SessionToken:  result.SessionToken,
			CouponApplied: result.CouponApplied,
		})
	}
}

// CheckoutConfirm settles a transaction against the gateway's order status.
// Safe to call repeatedly.
func CheckoutConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		transactionID, err := parseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, confirmResponse{
			Status:         string(result.Status),
			Granted:        result.Granted,
			AlreadyGranted: result.AlreadyGranted,
		})
	}
}

// CheckoutHistory pages through the caller's transactions, newest first.
func CheckoutHistory(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByUser(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]transactionResponse, 0, len(page.Transactions))
		for _, txn := range page.Transactions {
			out = append(out, newTransactionResponse(txn))
		}
		responses.WriteSuccess(w, historyResponse{
			Transactions: out,
			NextCursor:   page.NextCursor,
		})
	}
}

func authedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return userID, nil
}

type checkoutStartRequest struct {
	Kind       string     `json:"kind" validate:"required,oneof=plan item bundle"`
	PlanID     string     `json:"plan_id,omitempty" validate:"omitempty,max=64"`
	ItemID     *uuid.UUID `json:"item_id,omitempty"`
	BundleID   *uuid.UUID `json:"bundle_id,omitempty"`
	CouponCode string     `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
}

type checkoutStartResponse struct {
	Transaction   transactionResponse `json:"transaction"`
	SessionToken  string              `json:"session_token"`
	CouponApplied bool                `json:"coupon_applied"`
}

type confirmResponse struct {
	Status         string `json:"status"`
	Granted        bool   `json:"granted"`
	AlreadyGranted bool   `json:"already_granted"`
}

type historyResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	NextCursor   string                `json:"next_cursor,omitempty"`
}

type transactionResponse struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       string     `json:"order_id"`
	Kind          string     `json:"kind"`
	PlanID        *string    `json:"plan_id,omitempty"`
	ItemID        *uuid.UUID `json:"item_id,omitempty"`
	BundleID      *uuid.UUID `json:"bundle_id,omitempty"`
	BasePaise     int64      `json:"base_paise"`
	DiscountPaise int64      `json:"discount_paise"`
	AmountPaise   int64      `json:"amount_paise"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newTransactionResponse(txn models.CheckoutTransaction) transactionResponse {
	return transactionResponse{
		ID:            txn.ID,
		OrderID:       txn.OrderID,
		Kind:          string(txn.Kind),
		PlanID:        txn.PlanID,
		ItemID:        txn.ItemID,
		BundleID:      txn.BundleID,
		BasePaise:     txn.BasePaise,
		DiscountPaise: txn.DiscountPaise,
		AmountPaise:   txn.AmountPaise,
		Currency:      txn.Currency,
		Status:        string(txn.Status),
		FailureReason: txn.FailureReason,
		CreatedAt:     txn.CreatedAt,
	}
}
