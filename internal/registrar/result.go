package registrar

// Outcome is the settled state of an attempt.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeAlreadyRegistered
	OutcomeFailure
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// FailureKind classifies a failed or cancelled attempt.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailurePrecondition is detected before any network call.
	FailurePrecondition
	// FailureTransient covers unreachable or erroring backends.
	FailureTransient
	// FailureCancelled means the payer closed the checkout.
	FailureCancelled
	// FailureUnverified means the gateway reported payment but the
	// backend did not confirm it. Money may have moved.
	FailureUnverified
	// FailureTimeout means a bounded call ran out of time.
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailurePrecondition:
		return "precondition"
	case FailureTransient:
		return "transient"
	case FailureCancelled:
		return "cancelled"
	case FailureUnverified:
		return "unverified"
	case FailureTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// User facing messages.
const (
	MsgLoginAgain        = "please login again"
	MsgEventFull         = "event is full"
	MsgPaymentCancelled  = "payment cancelled"
	MsgRegistered        = "registered successfully"
	MsgAlreadyRegistered = "you are already registered for this event"
	MsgGenericFailure    = "registration failed, please try again"
	MsgPaymentStart      = "could not start payment, please try again"
	MsgRequestTimeout    = "request timed out, please try again"
)

// Result is returned to the caller in place of UI side effects.
type Result struct {
	Outcome Outcome
	Kind    FailureKind
	Message string
	EventID string
	// PaymentID is the gateway payment id once checkout completed.
	PaymentID string
	// RefreshNeeded asks the caller to reload registered and attended lists.
	RefreshNeeded bool
}

// Registered reports whether the user holds a seat after this result.
func (r Result) Registered() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeAlreadyRegistered
}
