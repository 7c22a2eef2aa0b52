package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/internal/catalog"
	"github.com/skillroads/skillroads-backend/internal/coupons"
	"github.com/skillroads/skillroads-backend/internal/entitlements"
	"github.com/skillroads/skillroads-backend/internal/pricing"
	"github.com/skillroads/skillroads-backend/internal/subscriptions"
	"github.com/skillroads/skillroads-backend/internal/testdb"
	"github.com/skillroads/skillroads-backend/pkg/config"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/gateway"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/outbox"
	"github.com/skillroads/skillroads-backend/pkg/pagination"
)

type stubGateway struct {
	createErr   error
	statusErr   error
	orderStatus string
	created     int
}

func (g *stubGateway) CreateOrder(_ context.Context, params gateway.CreateOrderParams) (*gateway.OrderSession, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created++
	return &gateway.OrderSession{
		OrderID:      params.OrderID,
		SessionToken: "session-" + params.OrderID,
		Status:       gateway.StatusActive,
	}, nil
}

func (g *stubGateway) GetOrderStatus(_ context.Context, orderID string) (*gateway.OrderStatus, error) {
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return &gateway.OrderStatus{OrderID: orderID, Status: g.orderStatus}, nil
}

type harness struct {
	svc     Service
	gateway *stubGateway
	conn    *gorm.DB
	user    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := testdb.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Level: zerolog.ErrorLevel})

	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	couponRepo := coupons.NewRepository(conn)
	engine, err := pricing.NewEngine(couponRepo)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	resolver, err := entitlements.NewResolver(entitlements.NewRepository(conn))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	subsSvc, err := subscriptions.NewService(subscriptions.NewRepository(conn), client, outboxSvc)
	if err != nil {
		t.Fatalf("new subscriptions service: %v", err)
	}

	gw := &stubGateway{orderStatus: gateway.StatusActive}
	svc, err := NewService(Deps{
		Repo:          NewRepository(conn),
		DBClient:      client,
		Catalog:       catalog.NewRepository(conn),
		Pricing:       engine,
		Gateway:       gw,
		Entitlements:  resolver,
		Subscriptions: subsSvc,
		Outbox:        outboxSvc,
		Logger:        logg,
		Config:        config.CheckoutConfig{Currency: "INR"},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        "learner@example.com",
		PasswordHash: "x",
		FullName:     "Test Learner",
		Role:         enums.UserRoleLearner,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return &harness{svc: svc, gateway: gw, conn: conn, user: user}
}

func (h *harness) seedItem(t *testing.T, slug string, pricePaise int64) *models.Item {
	t.Helper()
	item := &models.Item{
		ID:         uuid.New(),
		Slug:       slug,
		Title:      slug,
		PricePaise: pricePaise,
		Premium:    true,
		Active:     true,
	}
	if err := h.conn.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func (h *harness) seedCoupon(t *testing.T, code string, percent, limit int) *models.Coupon {
	t.Helper()
	now := time.Now()
	coupon := &models.Coupon{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: percent,
		ValidFrom:       now.Add(-time.Hour),
		ValidTo:         now.Add(time.Hour),
		Active:          true,
		UsageLimit:      limit,
	}
	if err := h.conn.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func (h *harness) countPurchases(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := h.conn.Model(&models.PurchaseRecord{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count purchases: %v", err)
	}
	return count
}

func TestStartCreatesPendingTransaction(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID: h.user.ID,
		Kind:   enums.CheckoutKindItem,
		ItemID: item.ID,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.Transaction.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending, got %s", result.Transaction.Status)
	}
	if result.Transaction.AmountPaise != 69900 {
		t.Fatalf("expected full price, got %d", result.Transaction.AmountPaise)
	}
	if result.SessionToken == "" {
		t.Fatal("expected a gateway session token")
	}
}

func TestStartRedeemsCoupon(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)
	coupon := h.seedCoupon(t, "WELCOME50", 50, 1)

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID:     h.user.ID,
		Kind:       enums.CheckoutKindItem,
		ItemID:     item.ID,
		CouponCode: "welcome50",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !result.CouponApplied {
		t.Fatal("expected coupon to apply")
	}
	if result.Transaction.AmountPaise != 34950 {
		t.Fatalf("expected half price 34950, got %d", result.Transaction.AmountPaise)
	}

	var stored models.Coupon
	if err := h.conn.First(&stored, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if stored.UsedCount != 1 {
		t.Fatalf("expected one redemption, got %d", stored.UsedCount)
	}
}

func TestStartWithRejectedCouponProceedsAtFullPrice(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID:     h.user.ID,
		Kind:       enums.CheckoutKindItem,
		ItemID:     item.ID,
		CouponCode: "NOSUCHCODE",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.CouponApplied {
		t.Fatal("rejected coupon must not be reported as applied")
	}
	if result.Transaction.AmountPaise != 69900 {
		t.Fatalf("expected full price, got %d", result.Transaction.AmountPaise)
	}
}

func TestStartKeepsPendingWhenGatewayDown(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)
	h.gateway.createErr = pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway unreachable")

	_, err := h.svc.Start(context.Background(), StartInput{
		UserID: h.user.ID,
		Kind:   enums.CheckoutKindItem,
		ItemID: item.ID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}

	// The transaction survives for reconciliation.
	var count int64
	if err := h.conn.Model(&models.CheckoutTransaction{}).
		Where("user_id = ? AND status = ?", h.user.ID, enums.TransactionStatusPending).
		Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one pending transaction, got %d", count)
	}
}

func TestConfirmPaidGrantsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID: h.user.ID,
		Kind:   enums.CheckoutKindItem,
		ItemID: item.ID,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	h.gateway.orderStatus = gateway.StatusPaid
	first, err := h.svc.Confirm(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if first.Status != enums.TransactionStatusSuccess || !first.Granted {
		t.Fatalf("expected success with grant, got %+v", first)
	}

	for i := 0; i < 3; i++ {
		again, err := h.svc.Confirm(context.Background(), result.Transaction.ID)
		if err != nil {
			t.Fatalf("repeat confirm: %v", err)
		}
		if again.Granted || !again.AlreadyGranted {
			t.Fatalf("repeat confirm must not grant, got %+v", again)
		}
	}

	if got := h.countPurchases(t, h.user.ID); got != 1 {
		t.Fatalf("expected exactly one purchase record, got %d", got)
	}
}

func TestConfirmActiveStaysPendingThenPaidGrants(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID: h.user.ID,
		Kind:   enums.CheckoutKindItem,
		ItemID: item.ID,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	pending, err := h.svc.Confirm(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("confirm while active: %v", err)
	}
	if pending.Status != enums.TransactionStatusPending || pending.Granted {
		t.Fatalf("expected pending no-op, got %+v", pending)
	}
	if got := h.countPurchases(t, h.user.ID); got != 0 {
		t.Fatalf("pending confirm must not grant, got %d purchases", got)
	}

	h.gateway.orderStatus = gateway.StatusPaid
	settled, err := h.svc.Confirm(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("confirm after payment: %v", err)
	}
	if !settled.Granted {
		t.Fatalf("expected grant after payment, got %+v", settled)
	}
	if got := h.countPurchases(t, h.user.ID); got != 1 {
		t.Fatalf("expected one purchase record, got %d", got)
	}
}

func TestConfirmUnpaidOrderFails(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID: h.user.ID,
		Kind:   enums.CheckoutKindItem,
		ItemID: item.ID,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	h.gateway.orderStatus = "EXPIRED"
	confirmed, err := h.svc.Confirm(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != enums.TransactionStatusFailed {
		t.Fatalf("expected failed, got %+v", confirmed)
	}
	if got := h.countPurchases(t, h.user.ID); got != 0 {
		t.Fatalf("failed confirm must not grant, got %d purchases", got)
	}

	txn, err := NewRepository(h.conn).FindByID(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("reload transaction: %v", err)
	}
	if txn.FailureReason == nil || *txn.FailureReason == "" {
		t.Fatal("expected a recorded failure reason")
	}
}

func TestConfirmBundleFansOutGrants(t *testing.T) {
	h := newHarness(t)
	first := h.seedItem(t, "docker", 49900)
	second := h.seedItem(t, "ci-cd", 49900)
	bundle := &models.Bundle{
		ID:         uuid.New(),
		Slug:       "devops-pack",
		Name:       "DevOps Pack",
		PricePaise: 79900,
		Active:     true,
	}
	if err := h.conn.Create(bundle).Error; err != nil {
		t.Fatalf("seed bundle: %v", err)
	}
	for _, itemID := range []uuid.UUID{first.ID, second.ID} {
		link := &models.BundleItem{ID: uuid.New(), BundleID: bundle.ID, ItemID: itemID}
		if err := h.conn.Create(link).Error; err != nil {
			t.Fatalf("seed bundle item: %v", err)
		}
	}

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID:   h.user.ID,
		Kind:     enums.CheckoutKindBundle,
		BundleID: bundle.ID,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	h.gateway.orderStatus = gateway.StatusPaid
	if _, err := h.svc.ConfirmByOrderID(context.Background(), result.Transaction.OrderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if got := h.countPurchases(t, h.user.ID); got != 2 {
		t.Fatalf("expected a purchase record per bundle item, got %d", got)
	}

	var events int64
	if err := h.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventEntitlementGranted).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 2 {
		t.Fatalf("expected one grant event per item, got %d", events)
	}
}

func TestConfirmPlanActivatesSubscription(t *testing.T) {
	h := newHarness(t)
	plan := &models.Plan{
		ID:           "pro-monthly",
		Name:         "Pro Monthly",
		Status:       enums.PlanStatusActive,
		Interval:     enums.PlanIntervalMonthly,
		DurationDays: 30,
		PricePaise:   39900,
		CurrencyCode: "INR",
	}
	if err := h.conn.Create(plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	result, err := h.svc.Start(context.Background(), StartInput{
		UserID: h.user.ID,
		Kind:   enums.CheckoutKindPlan,
		PlanID: plan.ID,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	h.gateway.orderStatus = gateway.StatusPaid
	confirmed, err := h.svc.Confirm(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !confirmed.Granted {
		t.Fatalf("expected subscription grant, got %+v", confirmed)
	}

	var sub models.Subscription
	if err := h.conn.First(&sub, "user_id = ?", h.user.ID).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active subscription, got %s", sub.Status)
	}
}

func TestListByUserPaginates(t *testing.T) {
	h := newHarness(t)
	item := h.seedItem(t, "go-backend", 69900)

	for i := 0; i < 3; i++ {
		if _, err := h.svc.Start(context.Background(), StartInput{
			UserID: h.user.ID,
			Kind:   enums.CheckoutKindItem,
			ItemID: item.ID,
		}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}

	page, err := h.svc.ListByUser(context.Background(), h.user.ID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Transactions) != 2 {
		t.Fatalf("expected two transactions, got %d", len(page.Transactions))
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}

	rest, err := h.svc.ListByUser(context.Background(), h.user.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(rest.Transactions) != 1 {
		t.Fatalf("expected one transaction on the last page, got %d", len(rest.Transactions))
	}
	if rest.NextCursor != "" {
		t.Fatalf("expected no further pages, got cursor %q", rest.NextCursor)
	}
}
