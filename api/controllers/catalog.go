package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/api/responses"
	"github.com/skillroads/skillroads-backend/api/validators"
	"github.com/skillroads/skillroads-backend/internal/catalog"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

// ListItems returns the public roadmap catalog.
func ListItems(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListItems(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]itemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, newItemResponse(item))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetItem returns one roadmap with its stages, looked up by slug.
func GetItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := validators.SanitizeString(chi.URLParam(r, "slug"), 120)
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug is required"))
			return
		}
		item, err := svc.GetItemBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(*item))
	}
}

// ListBundles returns the public bundle catalog.
func ListBundles(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bundles, err := svc.ListBundles(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]bundleResponse, 0, len(bundles))
		for _, bundle := range bundles {
			out = append(out, newBundleResponse(bundle))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetBundle returns one bundle with its member items.
func GetBundle(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bundleID, err := parseUUIDParam(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundle, err := svc.GetBundle(r.Context(), bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBundleResponse(*bundle))
	}
}

// AdminCreateItem creates a roadmap. Premium is derived from the price, not
// accepted from the client.
func AdminCreateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), catalog.CreateItemInput{
			Slug:        payload.Slug,
			Title:       payload.Title,
			Description: payload.Description,
			PricePaise:  payload.PricePaise,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(*item))
	}
}

// AdminUpdateItem applies a partial update to a roadmap.
func AdminUpdateItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := parseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.UpdateItem(r.Context(), itemID, catalog.UpdateItemInput{
			Title:       payload.Title,
			Description: payload.Description,
			PricePaise:  payload.PricePaise,
			Active:      payload.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(*item))
	}
}

// AdminCreateStage appends a stage to a roadmap.
func AdminCreateStage(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := parseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload stageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stage, err := svc.CreateStage(r.Context(), itemID, catalog.StageInput{
			Title:    payload.Title,
			Position: payload.Position,
			Free:     payload.Free,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newStageResponse(*stage))
	}
}

// AdminUpdateStage rewrites a stage's title, position, and free flag.
func AdminUpdateStage(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stageID, err := parseUUIDParam(r, "stageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload stageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stage, err := svc.UpdateStage(r.Context(), stageID, catalog.StageInput{
			Title:    payload.Title,
			Position: payload.Position,
			Free:     payload.Free,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStageResponse(*stage))
	}
}

// AdminDeleteStage removes a stage from its roadmap.
func AdminDeleteStage(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stageID, err := parseUUIDParam(r, "stageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteStage(r.Context(), stageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// AdminCreateBundle creates a bundle over existing roadmaps.
func AdminCreateBundle(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createBundleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundle, err := svc.CreateBundle(r.Context(), catalog.CreateBundleInput{
			Slug:       payload.Slug,
			Name:       payload.Name,
			PricePaise: payload.PricePaise,
			ItemIDs:    payload.ItemIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBundleResponse(*bundle))
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"param": name})
	}
	return id, nil
}

type createItemRequest struct {
	Slug        string `json:"slug" validate:"required,min=2,max=120"`
	Title       string `json:"title" validate:"required,min=2,max=200"`
	Description string `json:"description" validate:"max=4000"`
	PricePaise  int64  `json:"price_paise" validate:"min=0"`
}

type updateItemRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=4000"`
	PricePaise  *int64  `json:"price_paise,omitempty" validate:"omitempty,min=0"`
	Active      *bool   `json:"active,omitempty"`
}

type stageRequest struct {
	Title    string `json:"title" validate:"required,min=2,max=200"`
	Position int    `json:"position" validate:"min=0"`
	Free     bool   `json:"free"`
}

type createBundleRequest struct {
	Slug       string      `json:"slug" validate:"required,min=2,max=120"`
	Name       string      `json:"name" validate:"required,min=2,max=200"`
	PricePaise int64       `json:"price_paise" validate:"min=0"`
	ItemIDs    []uuid.UUID `json:"item_ids" validate:"required,min=1"`
}

type itemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	PricePaise  int64           `json:"price_paise"`
	Premium     bool            `json:"premium"`
	Active      bool            `json:"active"`
	Stages      []stageResponse `json:"stages,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type stageResponse struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"item_id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`
	Free     bool      `json:"free"`
}

type bundleResponse struct {
	ID         uuid.UUID   `json:"id"`
	Slug       string      `json:"slug"`
	Name       string      `json:"name"`
	PricePaise int64       `json:"price_paise"`
	Active     bool        `json:"active"`
	ItemIDs    []uuid.UUID `json:"item_ids"`
	CreatedAt  time.Time   `json:"created_at"`
}

func newItemResponse(item models.Item) itemResponse {
	stages := make([]stageResponse, 0, len(item.Stages))
	for _, stage := range item.Stages {
		stages = append(stages, newStageResponse(stage))
	}
	return itemResponse{
		ID:          item.ID,
		Slug:        item.Slug,
		Title:       item.Title,
		Description: item.Description,
		PricePaise:  item.PricePaise,
		Premium:     item.Premium,
		Active:      item.Active,
		Stages:      stages,
		CreatedAt:   item.CreatedAt,
	}
}

func newStageResponse(stage models.Stage) stageResponse {
	return stageResponse{
		ID:       stage.ID,
		ItemID:   stage.ItemID,
		Title:    stage.Title,
		Position: stage.Position,
		Free:     stage.Free,
	}
}

func newBundleResponse(bundle models.Bundle) bundleResponse {
	itemIDs := make([]uuid.UUID, 0, len(bundle.Items))
	for _, link := range bundle.Items {
		itemIDs = append(itemIDs, link.ItemID)
	}
	return bundleResponse{
		ID:         bundle.ID,
		Slug:       bundle.Slug,
		Name:       bundle.Name,
		PricePaise: bundle.PricePaise,
		Active:     bundle.Active,
		ItemIDs:    itemIDs,
		CreatedAt:  bundle.CreatedAt,
	}
}
