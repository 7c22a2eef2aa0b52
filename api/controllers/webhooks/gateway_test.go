package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	checkoutsvc "github.com/skillroads/skillroads-backend/internal/checkout"
	"github.com/skillroads/skillroads-backend/pkg/enums"
)

const testSecret = "webhook-secret"

type testConfirmService struct {
	byOrderFn func(ctx context.Context, orderID string) (*checkoutsvc.ConfirmResult, error)
	calls     int
}

func (s *testConfirmService) ConfirmByOrderID(ctx context.Context, orderID string) (*checkoutsvc.ConfirmResult, error) {
	s.calls++
	if s.byOrderFn != nil {
		return s.byOrderFn(ctx, orderID)
	}
	return &checkoutsvc.ConfirmResult{Status: enums.TransactionStatusSuccess}, nil
}

type fakeGuard struct {
	seen map[string]bool
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: map[string]bool{}}
}

func (g *fakeGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *fakeGuard) Delete(_ context.Context, eventID string) error {
	delete(g.seen, eventID)
	return nil
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(payload, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set(gatewaySignatureHeader, signature)
	}
	return req
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	svc := &testConfirmService{}
	handler := GatewayWebhook(svc, newFakeGuard(), testSecret, nil)

	payload := `{"event_id":"evt-1","order_id":"sr-1","status":"PAID"}`
	resp := httptest.NewRecorder()
	handler(resp, webhookRequest(payload, "deadbeef"))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service must not run on signature mismatch")
	}
}

func TestGatewayWebhookRequiresSignatureHeader(t *testing.T) {
	handler := GatewayWebhook(&testConfirmService{}, newFakeGuard(), testSecret, nil)
	resp := httptest.NewRecorder()
	handler(resp, webhookRequest(`{"event_id":"evt-1","order_id":"sr-1"}`, ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGatewayWebhookConfirmsByOrderID(t *testing.T) {
	svc := &testConfirmService{
		byOrderFn: func(ctx context.Context, orderID string) (*checkoutsvc.ConfirmResult, error) {
			if orderID != "sr-42" {
				t.Fatalf("unexpected order %s", orderID)
			}
			return &checkoutsvc.ConfirmResult{Status: enums.TransactionStatusSuccess, Granted: true}, nil
		},
	}
	handler := GatewayWebhook(svc, newFakeGuard(), testSecret, nil)

	payload := `{"event_id":"evt-42","order_id":"sr-42","status":"PAID"}`
	resp := httptest.NewRecorder()
	handler(resp, webhookRequest(payload, sign(payload, testSecret)))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data["status"] != "success" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestGatewayWebhookDedupesRedelivery(t *testing.T) {
	svc := &testConfirmService{}
	guard := newFakeGuard()
	handler := GatewayWebhook(svc, guard, testSecret, nil)

	payload := `{"event_id":"evt-7","order_id":"sr-7","status":"PAID"}`
	sig := sign(payload, testSecret)

	first := httptest.NewRecorder()
	handler(first, webhookRequest(payload, sig))
	second := httptest.NewRecorder()
	handler(second, webhookRequest(payload, sig))

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected both deliveries acknowledged, got %d and %d", first.Code, second.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected exactly one confirmation, got %d", svc.calls)
	}
}

func TestGatewayWebhookReleasesGuardOnFailure(t *testing.T) {
	calls := 0
	svc := &testConfirmService{
		byOrderFn: func(ctx context.Context, orderID string) (*checkoutsvc.ConfirmResult, error) {
			calls++
			if calls == 1 {
				return nil, context.DeadlineExceeded
			}
			return &checkoutsvc.ConfirmResult{Status: enums.TransactionStatusSuccess}, nil
		},
	}
	guard := newFakeGuard()
	handler := GatewayWebhook(svc, guard, testSecret, nil)

	payload := `{"event_id":"evt-9","order_id":"sr-9","status":"PAID"}`
	sig := sign(payload, testSecret)

	first := httptest.NewRecorder()
	handler(first, webhookRequest(payload, sig))
	if first.Code == http.StatusOK {
		t.Fatal("expected first delivery to fail")
	}

	second := httptest.NewRecorder()
	handler(second, webhookRequest(payload, sig))
	if second.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", second.Code)
	}
	if calls != 2 {
		t.Fatalf("expected confirmation retried, got %d calls", calls)
	}
}
