package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/api/middleware"
	checkoutsvc "github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/pkg/db/models"
	"github.com/skillroads/skillroads-backend/pkg/enums"
	"github.com/skillroads/skillroads-backend/pkg/pagination"
)

type testCheckoutService struct {
	startFn   func(ctx context.Context, input checkoutsvc.StartInput) (*checkoutsvc.StartResult, error)
	confirmFn func(ctx context.Context, transactionID uuid.UUID) (*checkoutsvc.ConfirmResult, error)
	byOrderFn func(ctx context.Context, orderID string) (*checkoutsvc.ConfirmResult, error)
	listFn    func(ctx context.Context, userID uuid.UUID, params pagination.Params) (*checkoutsvc.Page, error)
}

func (s *testCheckoutService) Start(ctx context.Context, input checkoutsvc.StartInput) (*checkoutsvc.StartResult, error) {
	if s.startFn != nil {
		return s.startFn(ctx, input)
	}
	return nil, nil
}

func (s *testCheckoutService) Confirm(ctx context.Context, transactionID uuid.UUID) (*checkoutsvc.ConfirmResult, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, transactionID)
	}
	return nil, nil
}

func (s *testCheckoutService) ConfirmByOrderID(ctx context.Context, orderID string) (*checkoutsvc.ConfirmResult, error) {
	if s.byOrderFn != nil {
		return s.byOrderFn(ctx, orderID)
	}
	return nil, nil
}

func (s *testCheckoutService) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*checkoutsvc.Page, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, params)
	}
	return &checkoutsvc.Page{}, nil
}

func TestCheckoutStartRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"kind":"item"}`))
	resp := httptest.NewRecorder()
	CheckoutStart(&testCheckoutService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCheckoutStartCreatesTransaction(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()
	svc := &testCheckoutService{
		startFn: func(ctx context.Context, input checkoutsvc.StartInput) (*checkoutsvc.StartResult, error) {
			if input.UserID != userID {
				t.Fatalf("unexpected user %s", input.UserID)
			}
			if input.Kind != enums.CheckoutKindItem {
				t.Fatalf("unexpected kind %s", input.Kind)
			}
			if input.ItemID != itemID {
				t.Fatalf("unexpected item %s", input.ItemID)
			}
			if input.CouponCode != "WELCOME50" {
				t.Fatalf("unexpected coupon %q", input.CouponCode)
			}
			item := itemID
			return &checkoutsvc.StartResult{
				Transaction: &models.CheckoutTransaction{
					ID:          uuid.New(),
					OrderID:     "sr-test",
					UserID:      userID,
					Kind:        enums.CheckoutKindItem,
					ItemID:      &item,
					AmountPaise: 34950,
					Currency:    "INR",
					Status:      enums.TransactionStatusPending,
				},
				SessionToken:  "session-token",
				CouponApplied: true,
			}, nil
		},
	}

	body := `{"kind":"item","item_id":"` + itemID.String() + `","coupon_code":"WELCOME50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	CheckoutStart(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Transaction struct {
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"transaction"`
			SessionToken  string `json:"session_token"`
			CouponApplied bool   `json:"coupon_applied"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Transaction.Status != "pending" {
		t.Fatalf("expected pending got %s", envelope.Data.Transaction.Status)
	}
	if envelope.Data.SessionToken != "session-token" {
		t.Fatalf("missing session token")
	}
	if !envelope.Data.CouponApplied {
		t.Fatal("expected coupon applied flag")
	}
}

func TestCheckoutStartRejectsUnknownKind(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"kind":"donation"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	CheckoutStart(&testCheckoutService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutConfirmPassesTransactionID(t *testing.T) {
	transactionID := uuid.New()
	svc := &testCheckoutService{
		confirmFn: func(ctx context.Context, id uuid.UUID) (*checkoutsvc.ConfirmResult, error) {
			if id != transactionID {
				t.Fatalf("unexpected transaction %s", id)
			}
			return &checkoutsvc.ConfirmResult{Status: enums.TransactionStatusSuccess, Granted: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/"+transactionID.String()+"/confirm", nil)
	req = addRouteParam(req, "transactionId", transactionID.String())
	resp := httptest.NewRecorder()
	CheckoutConfirm(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data confirmResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != "success" || !envelope.Data.Granted {
		t.Fatalf("unexpected result %+v", envelope.Data)
	}
}

func TestCheckoutConfirmRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/not-a-uuid/confirm", nil)
	req = addRouteParam(req, "transactionId", "not-a-uuid")
	resp := httptest.NewRecorder()
	CheckoutConfirm(&testCheckoutService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutHistoryForwardsCursor(t *testing.T) {
	userID := uuid.New()
	svc := &testCheckoutService{
		listFn: func(ctx context.Context, uid uuid.UUID, params pagination.Params) (*checkoutsvc.Page, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if params.Limit != 2 || params.Cursor != "abc" {
				t.Fatalf("unexpected params %+v", params)
			}
			return &checkoutsvc.Page{
				Transactions: []models.CheckoutTransaction{{ID: uuid.New(), Status: enums.TransactionStatusSuccess}},
				NextCursor:   "next",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout?limit=2&cursor=abc", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	CheckoutHistory(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data historyResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Transactions) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}
