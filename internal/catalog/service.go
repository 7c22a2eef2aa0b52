package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
)

// Service exposes catalog management for roadmaps, stages, and bundles.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	GetItemBySlug(ctx context.Context, slug string) (*models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)

	CreateStage(ctx context.Context, itemID uuid.UUID, input StageInput) (*models.Stage, error)
	UpdateStage(ctx context.Context, stageID uuid.UUID, input StageInput) (*models.Stage, error)
	DeleteStage(ctx context.Context, stageID uuid.UUID) error

	CreateBundle(ctx context.Context, input CreateBundleInput) (*models.Bundle, error)
	GetBundle(ctx context.Context, bundleID uuid.UUID) (*models.Bundle, error)
	ListBundles(ctx context.Context) ([]models.Bundle, error)
}

// CreateItemInput holds the validated payload to create a roadmap.
type CreateItemInput struct {
	Slug        string
	Title       string
	Description string
	PricePaise  int64
}

// UpdateItemInput holds optional mutation values for a roadmap.
type UpdateItemInput struct {
	Title       *string
	Description *string
	PricePaise  *int64
	Active      *bool
}

// StageInput holds the payload for creating or updating a stage.
type StageInput struct {
	Title    string
	Position int
	Free     bool
}

// CreateBundleInput holds the payload to create a bundle of roadmaps.
type CreateBundleInput struct {
	Slug       string
	Name       string
	PricePaise int64
	ItemIDs    []uuid.UUID
}

type service struct {
	repo     *Repository
	dbClient *db.Client
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	title := strings.TrimSpace(input.Title)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.PricePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	item := &models.Item{
		ID:          uuid.New(),
		Slug:        slug,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		PricePaise:  input.PricePaise,
		Active:      true,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "uq_items_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an item with this slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating item")
	}
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.Item, error) {
	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		item.Title = title
	}
	if input.Description != nil {
		item.Description = strings.TrimSpace(*input.Description)
	}
	if input.PricePaise != nil {
		if *input.PricePaise < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		item.PricePaise = *input.PricePaise
	}
	if input.Active != nil {
		item.Active = *input.Active
	}

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating item")
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindItemWithStages(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}
	return item, nil
}

func (s *service) GetItemBySlug(ctx context.Context, slug string) (*models.Item, error) {
	item, err := s.repo.FindItemBySlug(ctx, strings.TrimSpace(strings.ToLower(slug)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]models.Item, error) {
	items, err := s.repo.ListActiveItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing items")
	}
	return items, nil
}

// CreateStage adds a stage and recomputes the item's premium flag in the
// same transaction.
func (s *service) CreateStage(ctx context.Context, itemID uuid.UUID, input StageInput) (*models.Stage, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stage title is required")
	}

	stage := &models.Stage{
		ID:       uuid.New(),
		ItemID:   itemID,
		Title:    title,
		Position: input.Position,
		Free:     input.Free,
	}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindItemByID(ctx, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			return err
		}
		if err := repo.CreateStage(ctx, stage); err != nil {
			return err
		}
		return recomputePremium(ctx, repo, itemID)
	})
	if err != nil {
		return nil, asServiceError(err, "creating stage")
	}
	return stage, nil
}

func (s *service) UpdateStage(ctx context.Context, stageID uuid.UUID, input StageInput) (*models.Stage, error) {
	var updated *models.Stage
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stage, err := repo.FindStageByID(ctx, stageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "stage not found")
			}
			return err
		}
		if title := strings.TrimSpace(input.Title); title != "" {
			stage.Title = title
		}
		stage.Position = input.Position
		stage.Free = input.Free
		if err := repo.UpdateStage(ctx, stage); err != nil {
			return err
		}
		updated = stage
		return recomputePremium(ctx, repo, stage.ItemID)
	})
	if err != nil {
		return nil, asServiceError(err, "updating stage")
	}
	return updated, nil
}

func (s *service) DeleteStage(ctx context.Context, stageID uuid.UUID) error {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stage, err := repo.FindStageByID(ctx, stageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "stage not found")
			}
			return err
		}
		if err := repo.DeleteStage(ctx, stageID); err != nil {
			return err
		}
		return recomputePremium(ctx, repo, stage.ItemID)
	})
	if err != nil {
		return asServiceError(err, "deleting stage")
	}
	return nil
}

func (s *service) CreateBundle(ctx context.Context, input CreateBundleInput) (*models.Bundle, error) {
	slug := strings.TrimSpace(strings.ToLower(input.Slug))
	name := strings.TrimSpace(input.Name)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.PricePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if len(input.ItemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle needs at least one item")
	}

	bundle := &models.Bundle{
		ID:         uuid.New(),
		Slug:       slug,
		Name:       name,
		PricePaise: input.PricePaise,
		Active:     true,
	}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, itemID := range input.ItemIDs {
			if _, err := repo.FindItemByID(ctx, itemID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation,
						fmt.Sprintf("item %s does not exist", itemID))
				}
				return err
			}
		}
		if err := repo.CreateBundle(ctx, bundle); err != nil {
			return err
		}
		for _, itemID := range input.ItemIDs {
			link := &models.BundleItem{
				ID:       uuid.New(),
				BundleID: bundle.ID,
				ItemID:   itemID,
			}
			if err := repo.AddBundleItem(ctx, link); err != nil {
				if db.IsUniqueViolation(err, "uq_bundle_items_bundle_item") {
					return pkgerrors.New(pkgerrors.CodeValidation, "duplicate item in bundle")
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "creating bundle")
	}
	return s.repo.FindBundleByID(ctx, bundle.ID)
}

func (s *service) GetBundle(ctx context.Context, bundleID uuid.UUID) (*models.Bundle, error) {
	bundle, err := s.repo.FindBundleByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading bundle")
	}
	return bundle, nil
}

func (s *service) ListBundles(ctx context.Context) ([]models.Bundle, error) {
	bundles, err := s.repo.ListActiveBundles(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing bundles")
	}
	return bundles, nil
}

// recomputePremium derives the item's premium flag: true iff at least one
// stage is not free. An item with no stages is not premium.
func recomputePremium(ctx context.Context, repo *Repository, itemID uuid.UUID) error {
	paid, err := repo.CountPaidStages(ctx, itemID)
	if err != nil {
		return err
	}
	return repo.SetItemPremium(ctx, itemID, paid > 0)
}

func asServiceError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
