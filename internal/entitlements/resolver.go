package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
)

// AccessSource names the rule that let an access check through.
type AccessSource string

const (
	AccessSourceFree         AccessSource = "free"
	AccessSourceSubscription AccessSource = "subscription"
	AccessSourcePurchase     AccessSource = "purchase"
	AccessSourceBundle       AccessSource = "bundle"
	AccessSourceNone         AccessSource = "none"
)

// Access is the outcome of an access or capability check.
type Access struct {
	Allowed bool
	Source  AccessSource
}

// GrantResult reports how a grant call landed. A repeated grant is a no-op,
// not an error, so callers can retry confirmations safely.
type GrantResult struct {
	Granted        int
	AlreadyGranted int
	// GrantedItemIDs lists the items this call actually unlocked, in grant
	// order. Skipped duplicates are not included.
	GrantedItemIDs []uuid.UUID
}

// Resolver decides whether a user may see paid content and records the paid
// entitlements that decision reads. Enrollment rows never feed into it; only
// purchase records and subscriptions count as proof of payment.
type Resolver interface {
	HasAccess(ctx context.Context, userID, itemID uuid.UUID, now time.Time) (Access, error)
	HasCapability(ctx context.Context, userID, itemID uuid.UUID, now time.Time) (Access, error)
	GrantDirect(ctx context.Context, tx *gorm.DB, userID, itemID, transactionID uuid.UUID, at time.Time) (GrantResult, error)
	GrantBundle(ctx context.Context, tx *gorm.DB, userID, bundleID, transactionID uuid.UUID, at time.Time) (GrantResult, error)
	ListPurchases(ctx context.Context, userID uuid.UUID) ([]models.PurchaseRecord, error)
}

type resolver struct {
	repo *Repository
}

// NewResolver constructs the entitlement resolver.
func NewResolver(repo *Repository) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("entitlements repository required")
	}
	return &resolver{repo: repo}, nil
}

// HasAccess decides whether the user may view the item's content.
// Non-premium items are open to any authenticated user. Premium items need
// an active global subscription or a purchase record for the item; bundle
// purchases were fanned out into per-item records at grant time, so one
// lookup covers both.
func (r *resolver) HasAccess(ctx context.Context, userID, itemID uuid.UUID, now time.Time) (Access, error) {
	item, err := r.repo.FindItem(ctx, itemID)
	if err != nil {
		return denied(), asResolverError(err, "load item")
	}

	if !item.Premium {
		return Access{Allowed: true, Source: AccessSourceFree}, nil
	}

	subscribed, err := r.hasQualifyingSubscription(ctx, userID, now)
	if err != nil {
		return denied(), err
	}
	if subscribed {
		return Access{Allowed: true, Source: AccessSourceSubscription}, nil
	}

	record, err := r.repo.FindPurchase(ctx, userID, itemID)
	if err != nil {
		return denied(), asResolverError(err, "load purchase record")
	}
	if record != nil {
		source := AccessSourcePurchase
		if record.BundleID != nil {
			source = AccessSourceBundle
		}
		return Access{Allowed: true, Source: source}, nil
	}

	return denied(), nil
}

// HasCapability runs the stricter check that gates restricted features such
// as the AI tutor. A free item never unlocks it: the user needs an active
// global subscription, or a paid purchase of this exact item while the item
// is premium. Enrollment alone is never enough.
func (r *resolver) HasCapability(ctx context.Context, userID, itemID uuid.UUID, now time.Time) (Access, error) {
	subscribed, err := r.hasQualifyingSubscription(ctx, userID, now)
	if err != nil {
		return denied(), err
	}
	if subscribed {
		return Access{Allowed: true, Source: AccessSourceSubscription}, nil
	}

	item, err := r.repo.FindItem(ctx, itemID)
	if err != nil {
		return denied(), asResolverError(err, "load item")
	}
	if !item.Premium {
		return denied(), nil
	}

	record, err := r.repo.FindPurchase(ctx, userID, itemID)
	if err != nil {
		return denied(), asResolverError(err, "load purchase record")
	}
	if record != nil {
		source := AccessSourcePurchase
		if record.BundleID != nil {
			source = AccessSourceBundle
		}
		return Access{Allowed: true, Source: source}, nil
	}

	return denied(), nil
}

// GrantDirect records that the user bought the item. Safe to call more than
// once for the same user/item pair; the repeat is absorbed by the unique
// constraint and reported as AlreadyGranted.
func (r *resolver) GrantDirect(ctx context.Context, tx *gorm.DB, userID, itemID, transactionID uuid.UUID, at time.Time) (GrantResult, error) {
	if tx == nil {
		return GrantResult{}, pkgerrors.New(pkgerrors.CodeInternal, "grant requires a transaction")
	}
	return r.grantOne(ctx, tx, userID, itemID, nil, transactionID, at)
}

// GrantBundle fans a bundle purchase out into one purchase record per item,
// each tagged with the bundle for provenance. Items the user already owns
// are skipped, so buying a bundle that overlaps a direct purchase still
// succeeds.
func (r *resolver) GrantBundle(ctx context.Context, tx *gorm.DB, userID, bundleID, transactionID uuid.UUID, at time.Time) (GrantResult, error) {
	if tx == nil {
		return GrantResult{}, pkgerrors.New(pkgerrors.CodeInternal, "grant requires a transaction")
	}

	itemIDs, err := r.repo.WithTx(tx).ListBundleItemIDs(ctx, bundleID)
	if err != nil {
		return GrantResult{}, asResolverError(err, "load bundle items")
	}
	if len(itemIDs) == 0 {
		return GrantResult{}, pkgerrors.New(pkgerrors.CodeInternal, "bundle resolves to no items").
			WithDetails(map[string]string{"bundle_id": bundleID.String()})
	}

	var result GrantResult
	for _, itemID := range itemIDs {
		one, err := r.grantOne(ctx, tx, userID, itemID, &bundleID, transactionID, at)
		if err != nil {
			return result, err
		}
		result.Granted += one.Granted
		result.AlreadyGranted += one.AlreadyGranted
		result.GrantedItemIDs = append(result.GrantedItemIDs, one.GrantedItemIDs...)
	}
	return result, nil
}

// ListPurchases returns the user's paid entitlements, newest first.
func (r *resolver) ListPurchases(ctx context.Context, userID uuid.UUID) ([]models.PurchaseRecord, error) {
	records, err := r.repo.ListPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, asResolverError(err, "list purchases")
	}
	return records, nil
}

func (r *resolver) grantOne(ctx context.Context, tx *gorm.DB, userID, itemID uuid.UUID, bundleID *uuid.UUID, transactionID uuid.UUID, at time.Time) (GrantResult, error) {
	record := newPurchase(userID, itemID, bundleID, transactionID, at)
	err := r.repo.WithTx(tx).CreatePurchase(ctx, record)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_purchase_records_user_item") {
			return GrantResult{AlreadyGranted: 1}, nil
		}
		return GrantResult{}, asResolverError(err, "create purchase record")
	}
	return GrantResult{Granted: 1, GrantedItemIDs: []uuid.UUID{itemID}}, nil
}

// hasQualifyingSubscription reports whether the user holds an active
// subscription on a plan whose interval unlocks all premium content.
func (r *resolver) hasQualifyingSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	sub, err := r.repo.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return false, asResolverError(err, "load subscription")
	}
	if sub == nil || !sub.IsActiveAt(now) {
		return false, nil
	}
	if sub.PlanID == nil {
		return false, nil
	}

	plan, err := r.repo.FindPlan(ctx, *sub.PlanID)
	if err != nil {
		return false, asResolverError(err, "load plan")
	}
	if plan == nil {
		return false, nil
	}
	return plan.Interval.GrantsGlobalAccess(), nil
}

func denied() Access {
	return Access{Allowed: false, Source: AccessSourceNone}
}

func asResolverError(err error, context string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, context)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, context)
}
