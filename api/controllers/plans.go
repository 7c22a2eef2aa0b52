package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/api/responses"
	"github.com/skillroads/skillroads-backend/api/validators"
	"github.com/skillroads/skillroads-backend/internal/subscriptions"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

// ListPlans returns sellable subscription plans, cheapest first.
func ListPlans(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, newPlanResponse(plan))
		}
		responses.WriteSuccess(w, out)
	}
}

// MySubscription returns the caller's subscription row, if any.
func MySubscription(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.GetByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if sub == nil {
			responses.WriteSuccess(w, subscriptionResponse{Status: "none"})
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(*sub, time.Now().UTC()))
	}
}

// AdminCreatePlan registers a subscription plan.
func AdminCreatePlan(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.CreatePlan(r.Context(), subscriptions.CreatePlanInput{
			ID:           payload.ID,
			Name:         payload.Name,
			Interval:     enums.PlanInterval(payload.Interval),
			DurationDays: payload.DurationDays,
			PricePaise:   payload.PricePaise,
			Features:     payload.Features,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPlanResponse(*plan))
	}
}

type createPlanRequest struct {
	ID           string   `json:"id" validate:"required,min=2,max=64"`
	Name         string   `json:"name" validate:"required,min=2,max=200"`
	Interval     string   `json:"interval" validate:"required,oneof=monthly yearly lifetime"`
	DurationDays int      `json:"duration_days" validate:"required,min=1"`
	PricePaise   int64    `json:"price_paise" validate:"min=0"`
	Features     []string `json:"features,omitempty"`
}

type planResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Interval     string   `json:"interval"`
	DurationDays int      `json:"duration_days"`
	PricePaise   int64    `json:"price_paise"`
	CurrencyCode string   `json:"currency_code"`
	Features     []string `json:"features"`
}

type subscriptionResponse struct {
	ID        uuid.UUID  `json:"id,omitempty"`
	PlanID    *string    `json:"plan_id,omitempty"`
	Status    string     `json:"status"`
	Active    bool       `json:"active"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

func newPlanResponse(plan models.Plan) planResponse {
	return planResponse{
		ID:           plan.ID,
		Name:         plan.Name,
		Status:       string(plan.Status),
		Interval:     string(plan.Interval),
		DurationDays: plan.DurationDays,
		PricePaise:   plan.PricePaise,
		CurrencyCode: plan.CurrencyCode,
		Features:     plan.Features,
	}
}

func newSubscriptionResponse(sub models.Subscription, now time.Time) subscriptionResponse {
	start := sub.StartDate
	end := sub.EndDate
	return subscriptionResponse{
		ID:        sub.ID,
		PlanID:    sub.PlanID,
		Status:    string(sub.Status),
		Active:    sub.IsActiveAt(now),
		StartDate: &start,
		EndDate:   &end,
	}
}
