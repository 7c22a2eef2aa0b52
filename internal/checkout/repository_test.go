package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/internal/testdb"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	"github.com/skillroads/skillroads-backend/pkg/pagination"
)

func createTransaction(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.TransactionStatus, created time.Time) *models.CheckoutTransaction {
	t.Helper()

	itemID := uuid.New()
	txn := &models.CheckoutTransaction{
		ID:          uuid.New(),
		OrderID:     "order_" + uuid.NewString(),
		UserID:      userID,
		Kind:        enums.CheckoutKindItem,
		ItemID:      &itemID,
		BasePaise:   49900,
		AmountPaise: 49900,
		Currency:    "INR",
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func TestRepositoryMarkSuccessIfPending(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	txn := createTransaction(t, db, uuid.New(), enums.TransactionStatusPending, time.Now().UTC())

	flipped, err := repo.MarkSuccessIfPending(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	// a second confirmation loses the race
	flipped, err = repo.MarkSuccessIfPending(ctx, txn.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	stored, err := repo.FindByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccess, stored.Status)
}

func TestRepositoryMarkFailedLeavesTerminalAlone(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	txn := createTransaction(t, db, uuid.New(), enums.TransactionStatusSuccess, time.Now().UTC())

	flipped, err := repo.MarkFailedIfPending(ctx, txn.ID, "gateway declined")
	require.NoError(t, err)
	assert.False(t, flipped)

	stored, err := repo.FindByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusSuccess, stored.Status)
	assert.Nil(t, stored.FailureReason)
}

func TestRepositoryListStalePending(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	userID := uuid.New()
	stale := createTransaction(t, db, userID, enums.TransactionStatusPending, now.Add(-48*time.Hour))
	createTransaction(t, db, userID, enums.TransactionStatusPending, now.Add(-1*time.Hour))
	createTransaction(t, db, userID, enums.TransactionStatusSuccess, now.Add(-48*time.Hour))

	rows, err := repo.ListStalePending(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestRepositoryListByUserPagination(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	var txns []*models.CheckoutTransaction
	for i := 0; i < 5; i++ {
		txns = append(txns, createTransaction(t, db, userID, enums.TransactionStatusSuccess, base.Add(time.Duration(i)*time.Minute)))
	}
	createTransaction(t, db, uuid.New(), enums.TransactionStatusSuccess, base)

	first, err := repo.ListByUser(ctx, userID, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, txns[4].ID, first[0].ID)
	assert.Equal(t, txns[2].ID, first[2].ID)

	cursor := &pagination.Cursor{CreatedAt: first[2].CreatedAt, ID: first[2].ID}
	second, err := repo.ListByUser(ctx, userID, cursor, 3)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, txns[1].ID, second[0].ID)
	assert.Equal(t, txns[0].ID, second[1].ID)
}
