package registrar

import (
	"sync"

	"github.com/sharath018/campus-events-backend/internal/gateway"
	"github.com/sharath018/campus-events-backend/internal/portal"
)

// Phase of a registration attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfirming
	PhaseProcessing
	PhaseAwaitingGateway
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseConfirming:
		return "confirming"
	case PhaseProcessing:
		return "processing"
	case PhaseAwaitingGateway:
		return "awaiting_gateway"
	case PhaseSettled:
		return "settled"
	default:
		return "idle"
	}
}

// inFlight reports whether a network exchange may be running.
func (p Phase) inFlight() bool {
	return p == PhaseProcessing || p == PhaseAwaitingGateway
}

// Attempt is one user initiated registration try. It lives in memory only.
type Attempt struct {
	Event portal.Event

	mu     sync.Mutex
	phase  Phase
	order  *gateway.Order
	err    string
	result *Result
}

func (a *Attempt) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Order is set on the paid path once the backend created one.
func (a *Attempt) Order() *gateway.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.order
}

// Err is the last failure reason shown to the user.
func (a *Attempt) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Result returns the settlement, if any.
func (a *Attempt) Result() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return Result{}, false
	}
	return *a.result, true
}

// claim moves Confirming to Processing. Only one caller can win.
func (a *Attempt) claim() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseConfirming {
		return false
	}
	a.phase = PhaseProcessing
	a.err = ""
	return true
}

func (a *Attempt) awaitGateway(order *gateway.Order) {
	a.mu.Lock()
	a.order = order
	a.phase = PhaseAwaitingGateway
	a.mu.Unlock()
}

func (a *Attempt) resume() {
	a.mu.Lock()
	a.phase = PhaseProcessing
	a.mu.Unlock()
}

func (a *Attempt) settle(r Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.phase = PhaseSettled
	a.result = &r
	if !r.Registered() {
		a.err = r.Message
	}
}

// reset moves the attempt to phase to when it is in one of allowed.
func (a *Attempt) reset(to Phase, allowed ...Phase) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range allowed {
		if a.phase == p {
			a.phase = to
			if to == PhaseConfirming {
				a.err = ""
				a.result = nil
				a.order = nil
			}
			return true
		}
	}
	return false
}
