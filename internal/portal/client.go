package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the portal backend REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}, nil
}

// ===========================
// Registration endpoints

// RegisterFree registers the bearer of token into a free event.
// An already registered user is reported through Confirmation, not an error.
func (c *Client) RegisterFree(ctx context.Context, token, eventID string) (*Confirmation, error) {
	var out Confirmation
	path := "events/" + url.PathEscape(eventID) + "/register-free"
	if err := c.do(ctx, http.MethodPost, path, token, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder asks the backend for a gateway order. Amount is a hint only.
func (c *Client) CreateOrder(ctx context.Context, token string, req CreateOrderRequest) (*CreateOrderResponse, error) {
	var out CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "payment/create-order", token, req, &out); err != nil {
		return nil, err
	}
	if out.Order.ID == "" {
		return nil, &Error{Kind: KindServer, Message: "order id missing in create-order response"}
	}
	return &out, nil
}

// VerifyPayment submits the gateway result for server-side verification.
func (c *Client) VerifyPayment(ctx context.Context, token string, req VerifyPaymentRequest) (*Confirmation, error) {
	var out Confirmation
	if err := c.do(ctx, http.MethodPost, "payment/verify-payment", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegisteredEvents(ctx context.Context, token, userID string) ([]Event, error) {
	var out EventList
	if err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(userID)+"/registrations", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) AttendedEvents(ctx context.Context, token, userID string) ([]Event, error) {
	var out EventList
	if err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(userID)+"/attended", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Events lists the approved event catalog.
func (c *Client) Events(ctx context.Context, token string) ([]Event, error) {
	var out EventList
	if err := c.do(ctx, http.MethodGet, "events", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "auth/login", "", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===========================
// Transport

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %s: %w", path, err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		buf, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("encode %s body: %w", path, mErr)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("portal request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		e := decodeFailure(resp.StatusCode, raw)
		c.logger.Info("portal request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", e.Kind.String()),
		)
		return e
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "unreadable response from server", Err: err}
	}
	if conf, ok := out.(*Confirmation); ok && conf.Status == StatusFailure {
		return &Error{Kind: kindForCode(conf.Code, resp.StatusCode), Status: resp.StatusCode, Code: conf.Code, Message: conf.Message}
	}
	return nil
}

func decodeFailure(status int, raw []byte) *Error {
	var body failureBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &Error{Kind: kindForCode(body.Code, status), Status: status, Code: body.Code, Message: msg}
}

func kindForCode(code string, status int) Kind {
	switch code {
	case CodeEventFull:
		return KindEventFull
	case CodeAlreadyRegistered:
		return KindAlreadyRegistered
	case CodeUnauthenticated:
		return KindUnauthenticated
	}
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status >= http.StatusInternalServerError:
		return KindServer
	case status >= http.StatusBadRequest:
		return KindRejected
	}
	return KindServer
}

func transportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}
