package enrollments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/internal/testdb"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn := testdb.Open(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestEnsureEnrolledIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	userID := uuid.New()
	itemID := uuid.New()
	firstView := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := svc.EnsureEnrolled(ctx, userID, itemID, firstView)
	if err != nil {
		t.Fatalf("first view: %v", err)
	}

	second, err := svc.EnsureEnrolled(ctx, userID, itemID, firstView.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("second view: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the original enrollment row, got %s and %s", first.ID, second.ID)
	}
	if !second.FirstViewedAt.Equal(first.FirstViewedAt) {
		t.Fatalf("first viewed timestamp must not move, got %s", second.FirstViewedAt)
	}

	list, err := svc.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one enrollment, got %d", len(list))
	}
}

func TestListByUserOrdersNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	userID := uuid.New()
	older := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	newer := older.Add(72 * time.Hour)

	if _, err := svc.EnsureEnrolled(ctx, userID, uuid.New(), older); err != nil {
		t.Fatalf("enroll older: %v", err)
	}
	newest, err := svc.EnsureEnrolled(ctx, userID, uuid.New(), newer)
	if err != nil {
		t.Fatalf("enroll newer: %v", err)
	}

	list, err := svc.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two enrollments, got %d", len(list))
	}
	if list[0].ID != newest.ID {
		t.Fatalf("expected newest enrollment first, got %s", list[0].ID)
	}
}
