package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/pkg/db/models"
)

// Repository wires together catalog persistence for items, stages, and bundles.
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

// FindItemByID loads the item without associations.
func (r *Repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemBySlug loads the item by its slug.
func (r *Repository) FindItemBySlug(ctx context.Context, slug string) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemWithStages loads the item and its stages ordered by position.
func (r *Repository) FindItemWithStages(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListActiveItems returns all active items ordered by title.
func (r *Repository) ListActiveItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("title ASC").
		Find(&items).Error
	return items, err
}

// CreateItem inserts the item.
func (r *Repository) CreateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem persists the mutated item fields.
func (r *Repository) UpdateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// SetItemPremium writes the derived premium flag.
func (r *Repository) SetItemPremium(ctx context.Context, itemID uuid.UUID, premium bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", itemID).
		Update("premium", premium).Error
}

// CountPaidStages returns the number of non-free stages for the item.
func (r *Repository) CountPaidStages(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Stage{}).
		Where("item_id = ? AND free = ?", itemID, false).
		Count(&count).Error
	return count, err
}

// FindStageByID loads a single stage.
func (r *Repository) FindStageByID(ctx context.Context, id uuid.UUID) (*models.Stage, error) {
	var stage models.Stage
	if err := r.db.WithContext(ctx).First(&stage, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stage, nil
}

// ListStagesByItem returns the item's stages ordered by position.
func (r *Repository) ListStagesByItem(ctx context.Context, itemID uuid.UUID) ([]models.Stage, error) {
	var stages []models.Stage
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("position ASC").
		Find(&stages).Error
	return stages, err
}

// CreateStage inserts the stage.
func (r *Repository) CreateStage(ctx context.Context, stage *models.Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

// UpdateStage persists the mutated stage fields.
func (r *Repository) UpdateStage(ctx context.Context, stage *models.Stage) error {
	return r.db.WithContext(ctx).Save(stage).Error
}

// DeleteStage removes the stage.
func (r *Repository) DeleteStage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Stage{}, "id = ?", id).Error
}

// FindBundleByID loads the bundle with its item links.
func (r *Repository) FindBundleByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	var bundle models.Bundle
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&bundle, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ListActiveBundles returns all active bundles with their item links.
func (r *Repository) ListActiveBundles(ctx context.Context) ([]models.Bundle, error) {
	var bundles []models.Bundle
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("active = ?", true).
		Order("name ASC").
		Find(&bundles).Error
	return bundles, err
}

// CreateBundle inserts the bundle and its item links.
func (r *Repository) CreateBundle(ctx context.Context, bundle *models.Bundle) error {
	return r.db.WithContext(ctx).Create(bundle).Error
}

// AddBundleItem links an item into the bundle.
func (r *Repository) AddBundleItem(ctx context.Context, link *models.BundleItem) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// ListBundleItemIDs returns the item ids contained in the bundle.
func (r *Repository) ListBundleItemIDs(ctx context.Context, bundleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.BundleItem{}).
		Where("bundle_id = ?", bundleID).
		Pluck("item_id", &ids).Error
	return ids, err
}
