package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

const staleTransactionBatchSize = 100

type staleTransactionLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutTransaction, error)
}

type transactionConfirmer interface {
	Confirm(ctx context.Context, transactionID uuid.UUID) (*checkout.ConfirmResult, error)
}

// StaleTransactionJobParams configure the pending transaction reconciler.
type StaleTransactionJobParams struct {
	Logger           *logger.Logger
	Transactions     staleTransactionLister
	Confirmer        transactionConfirmer
	PendingThreshold time.Duration
}

// NewStaleTransactionJob builds the cron job that re-polls transactions
// stuck in pending. Each stale transaction is confirmed against the gateway
// one more time; whatever is still pending after that is reported as an
// ambiguous payment for an operator to look at. Nothing is ever promoted to
// success without the gateway saying PAID.
func NewStaleTransactionJob(params StaleTransactionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction lister required")
	}
	if params.Confirmer == nil {
		return nil, fmt.Errorf("transaction confirmer required")
	}
	if params.PendingThreshold <= 0 {
		return nil, fmt.Errorf("pending threshold must be positive")
	}
	return &staleTransactionJob{
		logg:      params.Logger,
		lister:    params.Transactions,
		confirmer: params.Confirmer,
		threshold: params.PendingThreshold,
		now:       time.Now,
	}, nil
}

type staleTransactionJob struct {
	logg      *logger.Logger
	lister    staleTransactionLister
	confirmer transactionConfirmer
	threshold time.Duration
	now       func() time.Time
}

func (j *staleTransactionJob) Name() string { return "stale-transactions" }

func (j *staleTransactionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.threshold)
	stale, err := j.lister.ListStalePending(ctx, cutoff, staleTransactionBatchSize)
	if err != nil {
		return fmt.Errorf("list stale transactions: %w", err)
	}

	settled := 0
	var errs []error
	for _, txn := range stale {
		result, err := j.confirmer.Confirm(ctx, txn.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("confirm %s: %w", txn.ID, err))
			continue
		}
		if result.Status == enums.TransactionStatusPending {
			errs = append(errs, pkgerrors.New(pkgerrors.CodePaymentAmbiguous,
				fmt.Sprintf("transaction %s pending past threshold, gateway still undecided", txn.ID)))
			continue
		}
		settled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale":   len(stale),
		"settled": settled,
	})
	j.logg.Info(logCtx, "stale transaction sweep complete")
	return multierr.Combine(errs...)
}
