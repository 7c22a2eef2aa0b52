package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	"github.com/skillroads/skillroads-backend/pkg/pagination"
)

// Repository persists checkout transactions.
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

// Create inserts a transaction row.
func (r *Repository) Create(ctx context.Context, txn *models.CheckoutTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindByID loads a transaction by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutTransaction, error) {
	var txn models.CheckoutTransaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByOrderID loads a transaction by its gateway order id.
func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*models.CheckoutTransaction, error) {
	var txn models.CheckoutTransaction
	if err := r.db.WithContext(ctx).First(&txn, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// SetGatewaySession stores the gateway session token on a transaction.
func (r *Repository) SetGatewaySession(ctx context.Context, id uuid.UUID, token string) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutTransaction{}).
		Where("id = ?", id).
		Update("gateway_session", token).Error
}

// MarkSuccessIfPending atomically flips a pending transaction to success.
// Returns true only for the caller that performed the transition; concurrent
// confirmations of the same transaction see false and must not grant.
func (r *Repository) MarkSuccessIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Update("status", enums.TransactionStatusSuccess)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailedIfPending flips a pending transaction to failed with a reason.
// Already-terminal transactions are left untouched.
func (r *Repository) MarkFailedIfPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         enums.TransactionStatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListStalePending returns pending transactions created before the cutoff,
// oldest first. The reconciliation job re-polls these against the gateway.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutTransaction, error) {
	var txns []models.CheckoutTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.TransactionStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// ListByUser returns one page of the user's transactions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CheckoutTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var txns []models.CheckoutTransaction
	err := query.Find(&txns).Error
	return txns, err
}

// FindUser loads the paying user, or nil if the id is unknown.
func (r *Repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
