package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/pkg/db/models"
)

// Repository persists purchase records and reads the subscription and plan
// rows the access checks depend on.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreatePurchase inserts a purchase record. Callers rely on the
// user/item unique constraint for idempotency.
func (r *Repository) CreatePurchase(ctx context.Context, record *models.PurchaseRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindPurchase loads the purchase record for a user/item pair, or nil when
// the user never bought the item.
func (r *Repository) FindPurchase(ctx context.Context, userID, itemID uuid.UUID) (*models.PurchaseRecord, error) {
	var record models.PurchaseRecord
	err := r.db.WithContext(ctx).
		First(&record, "user_id = ? AND item_id = ?", userID, itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListPurchasesByUser returns every item the user bought, newest first.
func (r *Repository) ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.PurchaseRecord, error) {
	var records []models.PurchaseRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchased_at DESC").
		Find(&records).Error
	return records, err
}

// FindSubscriptionByUser loads the user's subscription row, or nil when the
// user never subscribed.
func (r *Repository) FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		First(&sub, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindPlan loads a subscription plan by id, or nil when it does not exist.
func (r *Repository) FindPlan(ctx context.Context, planID string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).
		First(&plan, "id = ?", planID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindItem loads an item by id.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListBundleItemIDs returns the ids of every item sold inside the bundle.
func (r *Repository) ListBundleItemIDs(ctx context.Context, bundleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.BundleItem{}).
		Where("bundle_id = ?", bundleID).
		Order("created_at ASC").
		Pluck("item_id", &ids).Error
	return ids, err
}

// newPurchase builds the immutable purchase fact shared by direct and bundle
// grants.
func newPurchase(userID, itemID uuid.UUID, bundleID *uuid.UUID, transactionID uuid.UUID, at time.Time) *models.PurchaseRecord {
	return &models.PurchaseRecord{
		ID:            uuid.New(),
		UserID:        userID,
		ItemID:        itemID,
		BundleID:      bundleID,
		TransactionID: transactionID,
		PurchasedAt:   at,
	}
}
