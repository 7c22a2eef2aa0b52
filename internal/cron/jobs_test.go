package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

type fakeExpirer struct {
	batches []int
	calls   int
	err     error
}

func (f *fakeExpirer) ExpireDue(context.Context, time.Time, int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	count := f.batches[f.calls]
	f.calls++
	return count, nil
}

func TestSubscriptionExpiryJobDrainsBacklog(t *testing.T) {
	expirer := &fakeExpirer{batches: []int{expiryBatchSize, 17}}
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Subscriptions: expirer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expirer.calls != 2 {
		t.Fatalf("expected a second sweep after a full batch, got %d calls", expirer.calls)
	}
}

func TestSubscriptionExpiryJobPropagatesError(t *testing.T) {
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Subscriptions: &fakeExpirer{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeLister struct {
	txns []models.CheckoutTransaction
}

func (f *fakeLister) ListStalePending(context.Context, time.Time, int) ([]models.CheckoutTransaction, error) {
	return f.txns, nil
}

type fakeConfirmer struct {
	results map[uuid.UUID]*checkout.ConfirmResult
	errs    map[uuid.UUID]error
	calls   int
}

func (f *fakeConfirmer) Confirm(_ context.Context, id uuid.UUID) (*checkout.ConfirmResult, error) {
	f.calls++
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return f.results[id], nil
}

func TestStaleTransactionJobSurfacesAmbiguousState(t *testing.T) {
	settledID := uuid.New()
	stuckID := uuid.New()
	lister := &fakeLister{txns: []models.CheckoutTransaction{
		{ID: settledID, Status: enums.TransactionStatusPending},
		{ID: stuckID, Status: enums.TransactionStatusPending},
	}}
	confirmer := &fakeConfirmer{results: map[uuid.UUID]*checkout.ConfirmResult{
		settledID: {Status: enums.TransactionStatusFailed},
		stuckID:   {Status: enums.TransactionStatusPending},
	}}

	job, err := NewStaleTransactionJob(StaleTransactionJobParams{
		Logger:           logger.New(logger.Options{ServiceName: "cron-test"}),
		Transactions:     lister,
		Confirmer:        confirmer,
		PendingThreshold: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected ambiguous state to surface as an error")
	}
	if !pkgerrors.HasCode(runErr, pkgerrors.CodePaymentAmbiguous) {
		t.Fatalf("expected payment ambiguous code, got %v", runErr)
	}
	if confirmer.calls != 2 {
		t.Fatalf("expected both transactions re-polled, got %d", confirmer.calls)
	}
}

func TestStaleTransactionJobContinuesPastConfirmErrors(t *testing.T) {
	failingID := uuid.New()
	okID := uuid.New()
	lister := &fakeLister{txns: []models.CheckoutTransaction{
		{ID: failingID, Status: enums.TransactionStatusPending},
		{ID: okID, Status: enums.TransactionStatusPending},
	}}
	confirmer := &fakeConfirmer{
		results: map[uuid.UUID]*checkout.ConfirmResult{
			okID: {Status: enums.TransactionStatusSuccess, Granted: true},
		},
		errs: map[uuid.UUID]error{
			failingID: pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway unreachable"),
		},
	}

	job, err := NewStaleTransactionJob(StaleTransactionJobParams{
		Logger:           logger.New(logger.Options{ServiceName: "cron-test"}),
		Transactions:     lister,
		Confirmer:        confirmer,
		PendingThreshold: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected the gateway error to propagate")
	}
	if confirmer.calls != 2 {
		t.Fatalf("one failed confirm must not stop the sweep, got %d calls", confirmer.calls)
	}
}
