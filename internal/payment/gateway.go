package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Gateway is the payment provider surface used by the service.
type Gateway interface {
	CreateOrder(amount int64, currency, receipt string, notes map[string]interface{}) (string, error)
	FetchPayment(paymentID string) (*GatewayPayment, error)
}

// GatewayPayment is a provider payment as fetched from the gateway.
type GatewayPayment struct {
	ID      string
	OrderID string
	Status  string
	Method  string
	Amount  int64 // minor units
	Raw     map[string]interface{}
}

// Captured reports whether the money has moved.
func (p *GatewayPayment) Captured() bool { return p.Status == "captured" }

type razorpayGateway struct {
	client *razorpay.Client
}

func NewRazorpayGateway(key, secret string) Gateway {
	return &razorpayGateway{client: razorpay.NewClient(key, secret)}
}

func (g *razorpayGateway) CreateOrder(amount int64, currency, receipt string, notes map[string]interface{}) (string, error) {
	data := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
		"notes":           notes,
	}
	order, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order creation failed: %w", err)
	}
	orderID, ok := order["id"].(string)
	if !ok || orderID == "" {
		return "", errors.New("unable to extract order_id from Razorpay response")
	}
	return orderID, nil
}

func (g *razorpayGateway) FetchPayment(paymentID string) (*GatewayPayment, error) {
	raw, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment fetch failed: %w", err)
	}
	return paymentFromEntity(raw)
}

// paymentFromEntity reads a Razorpay payment entity, from a fetch or a webhook.
func paymentFromEntity(raw map[string]interface{}) (*GatewayPayment, error) {
	p := &GatewayPayment{Raw: raw}
	p.ID, _ = raw["id"].(string)
	p.OrderID, _ = raw["order_id"].(string)
	p.Method, _ = raw["method"].(string)

	status, ok := raw["status"].(string)
	if !ok {
		return nil, errors.New("invalid payment status format")
	}
	p.Status = status

	switch val := raw["amount"].(type) {
	case float64:
		p.Amount = int64(val)
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", val, err)
		}
		p.Amount = n
	default:
		return nil, fmt.Errorf("unsupported amount type: %T", val)
	}
	if p.Method == "" {
		p.Method = "UNKNOWN"
	}
	return p, nil
}

// sign returns the hex HMAC-SHA256 of msg under secret.
func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the checkout signature over "order_id|payment_id".
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := sign(secret, []byte(orderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks X-Razorpay-Signature over the raw body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	return hmac.Equal([]byte(sign(secret, body)), []byte(signature))
}
