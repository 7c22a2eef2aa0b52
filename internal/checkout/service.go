package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillroads/skillroads-backend/internal/catalog"
	"github.com/skillroads/skillroads-backend/internal/entitlements"
	"github.com/skillroads/skillroads-backend/internal/pricing"
	"github.com/skillroads/skillroads-backend/internal/subscriptions"
	"github.com/skillroads/skillroads-backend/pkg/config"
	"github.com/skillroads/skillroads-backend/pkg/db"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/gateway"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/metrics"
	"github.com/skillroads/skillroads-backend/pkg/outbox"
	"github.com/skillroads/skillroads-backend/pkg/outbox/payloads"
	"github.com/skillroads/skillroads-backend/pkg/pagination"
)

// Gateway is the slice of the payment gateway client this service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, params gateway.CreateOrderParams) (*gateway.OrderSession, error)
	GetOrderStatus(ctx context.Context, orderID string) (*gateway.OrderStatus, error)
}

// StartInput describes one purchase attempt.
type StartInput struct {
	UserID     uuid.UUID
	Kind       enums.CheckoutKind
	PlanID     string
	ItemID     uuid.UUID
	BundleID   uuid.UUID
	CouponCode string
}

// StartResult is the pending transaction plus the gateway session the client
// completes payment with. CouponApplied is false when a supplied coupon was
// rejected and the checkout proceeded at full price.
type StartResult struct {
	Transaction   *models.CheckoutTransaction
	SessionToken  string
	CouponApplied bool
}

// ConfirmResult reports where a confirmation landed. AlreadyGranted means the
// transaction was settled by an earlier confirmation and this call changed
// nothing.
type ConfirmResult struct {
	Status         enums.TransactionStatus
	Granted        bool
	AlreadyGranted bool
}

// Page is one cursor page of a user's transaction history.
type Page struct {
	Transactions []models.CheckoutTransaction
	NextCursor   string
}

// Service runs the checkout state machine: create a pending transaction, hand
// the buyer to the gateway, and settle on the gateway's authoritative order
// status. Success settles exactly once no matter how many times it is
// confirmed.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	Confirm(ctx context.Context, transactionID uuid.UUID) (*ConfirmResult, error)
	ConfirmByOrderID(ctx context.Context, orderID string) (*ConfirmResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
}

// Deps carries the collaborators the checkout service is built from.
type Deps struct {
	Repo          *Repository
	DBClient      *db.Client
	Catalog       *catalog.Repository
	Pricing       *pricing.Engine
	Gateway       Gateway
	Entitlements  entitlements.Resolver
	Subscriptions subscriptions.Service
	Outbox        *outbox.Service
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
	Config        config.CheckoutConfig
}

type service struct {
	repo          *Repository
	dbClient      *db.Client
	catalogRepo   *catalog.Repository
	pricing       *pricing.Engine
	gateway       Gateway
	entitlements  entitlements.Resolver
	subscriptions subscriptions.Service
	outboxSvc     *outbox.Service
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger
	cfg           config.CheckoutConfig
}

// NewService constructs a checkout service instance.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case deps.DBClient == nil:
		return nil, fmt.Errorf("db client required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case deps.Pricing == nil:
		return nil, fmt.Errorf("pricing engine required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case deps.Entitlements == nil:
		return nil, fmt.Errorf("entitlement resolver required")
	case deps.Subscriptions == nil:
		return nil, fmt.Errorf("subscriptions service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox service required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if deps.Config.Currency == "" {
		deps.Config.Currency = "INR"
	}
	return &service{
		repo:          deps.Repo,
		dbClient:      deps.DBClient,
		catalogRepo:   deps.Catalog,
		pricing:       deps.Pricing,
		gateway:       deps.Gateway,
		entitlements:  deps.Entitlements,
		subscriptions: deps.Subscriptions,
		outboxSvc:     deps.Outbox,
		metrics:       deps.Metrics,
		logg:          deps.Logger,
		cfg:           deps.Config,
	}, nil
}

// Start resolves the price, redeems the coupon, records a pending transaction,
// and opens a gateway order. A rejected coupon does not abort the checkout;
// it proceeds at full price with CouponApplied=false so the UI can warn. A
// gateway failure surfaces as GatewayUnavailable while the pending
// transaction stays on record for later reconciliation.
func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout kind")
	}
	user, err := s.repo.FindUser(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	basePaise, description, err := s.resolvePrice(ctx, input)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &models.CheckoutTransaction{
		ID:        uuid.New(),
		OrderID:   fmt.Sprintf("sr-%s", uuid.NewString()),
		UserID:    input.UserID,
		Kind:      input.Kind,
		BasePaise: basePaise,
		Currency:  s.cfg.Currency,
		Status:    enums.TransactionStatusPending,
	}
	switch input.Kind {
	case enums.CheckoutKindPlan:
		planID := input.PlanID
		txn.PlanID = &planID
	case enums.CheckoutKindItem:
		itemID := input.ItemID
		txn.ItemID = &itemID
	case enums.CheckoutKindBundle:
		bundleID := input.BundleID
		txn.BundleID = &bundleID
	}

	couponApplied := false
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		quote, err := s.pricing.Redeem(ctx, tx, basePaise, input.CouponCode, now)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeCouponInvalid) {
				// Warn-and-proceed: charge full price, flag the rejection.
				s.metrics.IncCouponRedeem("rejected")
				logCtx := s.logg.WithFields(ctx, map[string]interface{}{
					"user_id":     input.UserID.String(),
					"coupon_code": input.CouponCode,
				})
				s.logg.Warn(logCtx, "coupon rejected, proceeding at full price")
				quote = &pricing.Quote{BasePaise: basePaise, TotalPaise: basePaise}
			} else {
				return err
			}
		} else if quote.CouponID != nil {
			couponApplied = true
			s.metrics.IncCouponRedeem("redeemed")
		}

		txn.CouponID = quote.CouponID
		txn.DiscountPaise = quote.DiscountPaise
		txn.AmountPaise = quote.TotalPaise
		return s.repo.WithTx(tx).Create(ctx, txn)
	})
	if err != nil {
		return nil, asCheckoutError(err, "create transaction")
	}
	s.metrics.IncStarted(string(input.Kind))

	session, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderParams{
		OrderID:       txn.OrderID,
		AmountPaise:   txn.AmountPaise,
		Currency:      txn.Currency,
		CustomerEmail: user.Email,
		Description:   description,
	})
	if err != nil {
		// The pending transaction stays on record; the reconciliation job or
		// a later confirm picks it up.
		logCtx := s.logg.WithFields(ctx, map[string]interface{}{
			"transaction_id": txn.ID.String(),
			"order_id":       txn.OrderID,
		})
		s.logg.Warn(logCtx, "gateway order creation failed, transaction kept pending")
		return nil, asCheckoutError(err, "create gateway order")
	}

	if err := s.repo.SetGatewaySession(ctx, txn.ID, session.SessionToken); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store gateway session")
	}
	token := session.SessionToken
	txn.GatewaySession = &token

	return &StartResult{
		Transaction:   txn,
		SessionToken:  session.SessionToken,
		CouponApplied: couponApplied,
	}, nil
}

// Confirm settles a transaction against the gateway's order status.
func (s *service) Confirm(ctx context.Context, transactionID uuid.UUID) (*ConfirmResult, error) {
	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, asCheckoutError(err, "load transaction")
	}
	return s.confirm(ctx, txn)
}

// ConfirmByOrderID settles the transaction behind a gateway order id. Used by
// the webhook path, where the gateway names orders, not transactions.
func (s *service) ConfirmByOrderID(ctx context.Context, orderID string) (*ConfirmResult, error) {
	txn, err := s.repo.FindByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, asCheckoutError(err, "load transaction by order")
	}
	return s.confirm(ctx, txn)
}

func (s *service) confirm(ctx context.Context, txn *models.CheckoutTransaction) (*ConfirmResult, error) {
	// Settled transactions never move again; repeat confirmations are no-ops.
	if txn.Status == enums.TransactionStatusSuccess {
		s.metrics.IncConfirmation("already_success")
		return &ConfirmResult{Status: txn.Status, AlreadyGranted: true}, nil
	}
	if txn.Status.IsTerminal() {
		return &ConfirmResult{Status: txn.Status}, nil
	}

	status, err := s.gateway.GetOrderStatus(ctx, txn.OrderID)
	if err != nil {
		return nil, asCheckoutError(err, "query gateway order status")
	}

	switch status.Status {
	case gateway.StatusPaid:
		return s.settle(ctx, txn)
	case gateway.StatusActive, gateway.StatusPending:
		// Nobody paid yet. Leave the transaction pending and re-check later.
		s.metrics.IncConfirmation("pending")
		return &ConfirmResult{Status: enums.TransactionStatusPending}, nil
	default:
		return s.fail(ctx, txn, fmt.Sprintf("gateway reported %s", status.Status))
	}
}

// settle flips the transaction to success and issues its single grant. The
// conditional update makes the flip first-writer-wins: a concurrent webhook
// and redirect confirming the same order race on it, and only the winner
// grants.
func (s *service) settle(ctx context.Context, txn *models.CheckoutTransaction) (*ConfirmResult, error) {
	now := time.Now().UTC()
	result := &ConfirmResult{Status: enums.TransactionStatusSuccess}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, err := s.repo.WithTx(tx).MarkSuccessIfPending(ctx, txn.ID)
		if err != nil {
			return err
		}
		if !flipped {
			current, err := s.repo.WithTx(tx).FindByID(ctx, txn.ID)
			if err != nil {
				return err
			}
			result.Status = current.Status
			result.AlreadyGranted = current.Status == enums.TransactionStatusSuccess
			return nil
		}

		if err := s.grant(ctx, tx, txn, now); err != nil {
			return err
		}
		result.Granted = true

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutSucceeded,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CheckoutSucceededEvent{
				TransactionID: txn.ID,
				OrderID:       txn.OrderID,
				UserID:        txn.UserID,
				Kind:          txn.Kind,
				AmountPaise:   txn.AmountPaise,
				CouponID:      txn.CouponID,
				ConfirmedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, asCheckoutError(err, "settle transaction")
	}

	s.metrics.IncConfirmation(string(result.Status))
	if result.Granted {
		s.metrics.IncGrant(string(txn.Kind))
	}
	return result, nil
}

func (s *service) grant(ctx context.Context, tx *gorm.DB, txn *models.CheckoutTransaction, now time.Time) error {
	switch txn.Kind {
	case enums.CheckoutKindPlan:
		if txn.PlanID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "plan transaction without plan id")
		}
		plan, err := s.subscriptions.GetPlan(ctx, *txn.PlanID)
		if err != nil {
			return err
		}
		_, err = s.subscriptions.Activate(ctx, tx, txn.UserID, plan, now)
		return err

	case enums.CheckoutKindItem:
		if txn.ItemID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "item transaction without item id")
		}
		granted, err := s.entitlements.GrantDirect(ctx, tx, txn.UserID, *txn.ItemID, txn.ID, now)
		if err != nil {
			return err
		}
		return s.emitGrants(ctx, tx, txn, granted, now)

	case enums.CheckoutKindBundle:
		if txn.BundleID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "bundle transaction without bundle id")
		}
		granted, err := s.entitlements.GrantBundle(ctx, tx, txn.UserID, *txn.BundleID, txn.ID, now)
		if err != nil {
			return err
		}
		return s.emitGrants(ctx, tx, txn, granted, now)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "unknown checkout kind")
}

func (s *service) emitGrants(ctx context.Context, tx *gorm.DB, txn *models.CheckoutTransaction, granted entitlements.GrantResult, now time.Time) error {
	for _, itemID := range granted.GrantedItemIDs {
		err := s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEntitlementGranted,
			AggregateType: enums.AggregateUser,
			AggregateID:   txn.UserID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.EntitlementGrantedEvent{
				UserID:        txn.UserID,
				ItemID:        itemID,
				BundleID:      txn.BundleID,
				TransactionID: txn.ID,
				GrantedAt:     now,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) fail(ctx context.Context, txn *models.CheckoutTransaction, reason string) (*ConfirmResult, error) {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, err := s.repo.WithTx(tx).MarkFailedIfPending(ctx, txn.ID, reason)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}
		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutFailed,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   txn.ID,
			Version:       1,
			OccurredAt:    time.Now().UTC(),
			Data: payloads.CheckoutFailedEvent{
				TransactionID: txn.ID,
				OrderID:       txn.OrderID,
				UserID:        txn.UserID,
				Reason:        reason,
			},
		})
	})
	if err != nil {
		return nil, asCheckoutError(err, "fail transaction")
	}
	s.metrics.IncConfirmation(string(enums.TransactionStatusFailed))
	return &ConfirmResult{Status: enums.TransactionStatusFailed}, nil
}

// ListByUser returns one page of the user's transaction history.
func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	txns, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}

	page := &Page{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		last := page.Transactions[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) resolvePrice(ctx context.Context, input StartInput) (int64, string, error) {
	switch input.Kind {
	case enums.CheckoutKindPlan:
		plan, err := s.subscriptions.GetPlan(ctx, input.PlanID)
		if err != nil {
			return 0, "", err
		}
		if plan.Status != enums.PlanStatusActive {
			return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "plan is not sellable")
		}
		return plan.PricePaise, plan.Name, nil

	case enums.CheckoutKindItem:
		item, err := s.catalogRepo.FindItemByID(ctx, input.ItemID)
		if err != nil {
			return 0, "", asCheckoutError(err, "load item")
		}
		if !item.Active {
			return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "item is not sellable")
		}
		return item.PricePaise, item.Title, nil

	case enums.CheckoutKindBundle:
		bundle, err := s.catalogRepo.FindBundleByID(ctx, input.BundleID)
		if err != nil {
			return 0, "", asCheckoutError(err, "load bundle")
		}
		if !bundle.Active {
			return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "bundle is not sellable")
		}
		return bundle.PricePaise, bundle.Name, nil
	}
	return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "unknown checkout kind")
}

func asCheckoutError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
