package gateway

import (
	"context"
	"sync"
)

// ResultKind tells how a checkout session ended.
type ResultKind int

const (
	Completed ResultKind = iota + 1
	Dismissed
)

func (k ResultKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Dismissed:
		return "dismissed"
	default:
		return "pending"
	}
}

// Result is what the widget reported. Completed does not mean paid;
// only server verification decides that.
type Result struct {
	Kind      ResultKind
	OrderID   string
	PaymentID string
	Signature string
}

// Session resolves exactly once to Completed or Dismissed.
// Callbacks after the first are ignored.
type Session struct {
	once   sync.Once
	done   chan struct{}
	result Result
}

func NewSession() *Session {
	return &Session{done: make(chan struct{})}
}

// Complete is the widget's handler callback. It reports whether this call settled the session.
func (s *Session) Complete(orderID, paymentID, signature string) bool {
	return s.resolve(Result{Kind: Completed, OrderID: orderID, PaymentID: paymentID, Signature: signature})
}

// Dismiss is the widget's modal.ondismiss callback.
func (s *Session) Dismiss() bool {
	return s.resolve(Result{Kind: Dismissed})
}

func (s *Session) resolve(r Result) bool {
	settled := false
	s.once.Do(func() {
		s.result = r
		settled = true
		close(s.done)
	})
	return settled
}

// Done is closed once the session has a result.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session resolves or ctx ends.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
