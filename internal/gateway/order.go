package gateway

import "errors"

// Order is the gateway order descriptor created by the backend.
// Amount is in the smallest currency unit.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Key      string
}

func (o *Order) validate() error {
	switch {
	case o == nil:
		return errors.New("order missing")
	case o.ID == "":
		return errors.New("order id missing")
	case o.Key == "":
		return errors.New("gateway key missing")
	case o.Amount <= 0:
		return errors.New("order amount must be positive")
	}
	return nil
}

// Prefill is the payer data shown in the checkout form.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// CheckoutOptions is the option object handed to the hosted checkout widget.
type CheckoutOptions struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	OrderID     string  `json:"order_id"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Prefill     Prefill `json:"prefill"`
}

// NewCheckoutOptions copies the order verbatim; the amount is never recomputed.
func NewCheckoutOptions(order *Order, prefill Prefill, description string) CheckoutOptions {
	return CheckoutOptions{
		Key:         order.Key,
		Amount:      order.Amount,
		Currency:    order.Currency,
		OrderID:     order.ID,
		Name:        "Campus Events",
		Description: description,
		Prefill:     prefill,
	}
}
