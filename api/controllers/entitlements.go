package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/api/responses"
	"github.com/skillroads/skillroads-backend/internal/enrollments"
	"github.com/skillroads/skillroads-backend/internal/entitlements"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

// ItemAccess reports whether the caller can open a roadmap and which
// entitlement unlocks it.
func ItemAccess(resolver entitlements.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, itemID, err := accessParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		access, err := resolver.HasAccess(r.Context(), userID, itemID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessResponse{
			Allowed: access.Allowed,
			Source:  string(access.Source),
		})
	}
}

// ItemCapability reports whether the caller can use AI features on a
// roadmap. Free access never qualifies here.
func ItemCapability(resolver entitlements.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, itemID, err := accessParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		access, err := resolver.HasCapability(r.Context(), userID, itemID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accessResponse{
			Allowed: access.Allowed,
			Source:  string(access.Source),
		})
	}
}

// ItemView records the caller opening a roadmap. The first view enrolls
// them; later views are no-ops. Access is checked first so a locked roadmap
// never creates an enrollment.
func ItemView(resolver entitlements.Resolver, enrollSvc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, itemID, err := accessParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now().UTC()
		access, err := resolver.HasAccess(r.Context(), userID, itemID, now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !access.Allowed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "roadmap is locked"))
			return
		}

		enrollment, err := enrollSvc.EnsureEnrolled(r.Context(), userID, itemID, now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEnrollmentResponse(*enrollment))
	}
}

// ListEnrollments returns the caller's roadmap history, newest first.
func ListEnrollments(enrollSvc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := enrollSvc.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]enrollmentResponse, 0, len(list))
		for _, enrollment := range list {
			out = append(out, newEnrollmentResponse(enrollment))
		}
		responses.WriteSuccess(w, out)
	}
}

// ListPurchases returns the caller's owned roadmaps with provenance.
func ListPurchases(resolver entitlements.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := resolver.ListPurchases(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]purchaseResponse, 0, len(records))
		for _, record := range records {
			out = append(out, newPurchaseResponse(record))
		}
		responses.WriteSuccess(w, out)
	}
}

func accessParams(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := authedUserID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	itemID, err := parseUUIDParam(r, "itemId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, itemID, nil
}

type accessResponse struct {
	Allowed bool   `json:"allowed"`
	Source  string `json:"source"`
}

type enrollmentResponse struct {
	ID            uuid.UUID `json:"id"`
	ItemID        uuid.UUID `json:"item_id"`
	FirstViewedAt time.Time `json:"first_viewed_at"`
}

type purchaseResponse struct {
	ItemID        uuid.UUID  `json:"item_id"`
	BundleID      *uuid.UUID `json:"bundle_id,omitempty"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	PurchasedAt   time.Time  `json:"purchased_at"`
}

func newEnrollmentResponse(enrollment models.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:            enrollment.ID,
		ItemID:        enrollment.ItemID,
		FirstViewedAt: enrollment.FirstViewedAt,
	}
}

func newPurchaseResponse(record models.PurchaseRecord) purchaseResponse {
	return purchaseResponse{
		ItemID:        record.ItemID,
		BundleID:      record.BundleID,
		TransactionID: record.TransactionID,
		PurchasedAt:   record.PurchasedAt,
	}
}
