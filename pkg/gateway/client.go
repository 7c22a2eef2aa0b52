package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skillroads/skillroads-backend/pkg/config"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("gateway base url is required")
	errLoggerRequired  = errors.New("gateway logger is required")
)

// Client wraps the payment gateway HTTP API with centralized auth, logging,
// timeouts, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	logger     *logger.Logger
}

// Order statuses the gateway reports. PAID is the only state this backend
// ever treats as proof of payment.
const (
	StatusPaid    = "PAID"
	StatusActive  = "ACTIVE"
	StatusPending = "PENDING"
)

// CreateOrderParams captures the inputs for opening a gateway order.
type CreateOrderParams struct {
	OrderID       string `json:"order_id"`
	AmountPaise   int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	Description   string `json:"description,omitempty"`
}

// OrderSession is the gateway handle a client uses to complete payment.
type OrderSession struct {
	OrderID      string `json:"order_id"`
	SessionToken string `json:"session_token"`
	Status       string `json:"status"`
}

// OrderStatus is the gateway's view of an order.
type OrderStatus struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// NewClient initializes the gateway wrapper and validates the configuration.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
		logger:     logg,
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// CreateOrder opens an order at the gateway and returns the client session.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*OrderSession, error) {
	if strings.TrimSpace(params.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	if params.AmountPaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order amount cannot be negative")
	}
	c.log(ctx, "request", "create_order", map[string]any{
		"order_id": params.OrderID,
		"amount":   params.AmountPaise,
		"currency": params.Currency,
	})

	session := &OrderSession{}
	if err := c.do(ctx, http.MethodPost, "/v1/orders", params, session); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": session.OrderID,
		"status":   session.Status,
	})
	return session, nil
}

// GetOrderStatus polls the gateway for the current state of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	c.log(ctx, "request", "get_order_status", map[string]any{"order_id": orderID})

	status := &OrderStatus{}
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, status); err != nil {
		c.log(ctx, "error", "get_order_status", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_order_status", map[string]any{
		"order_id": status.OrderID,
		"status":   status.Status,
	})
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.SetBasicAuth(c.apiKey, c.apiSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "reading gateway response")
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.CodeGatewayUnavailable,
			fmt.Sprintf("payment gateway returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway order not found")
	case resp.StatusCode >= http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("payment gateway rejected the request with %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": truncate(string(payload), 512)})
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "decoding gateway response")
		}
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Warn(ctx, fmt.Sprintf("gateway %s failed", op))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", op))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
