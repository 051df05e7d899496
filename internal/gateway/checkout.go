package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Checkout launches the hosted checkout widget. Implementations must
// eventually call session.Complete or session.Dismiss.
type Checkout interface {
	Open(ctx context.Context, opts CheckoutOptions, session *Session) error
}

// CheckoutFunc adapts a function to Checkout.
type CheckoutFunc func(ctx context.Context, opts CheckoutOptions, session *Session) error

func (f CheckoutFunc) Open(ctx context.Context, opts CheckoutOptions, session *Session) error {
	return f(ctx, opts, session)
}

// TerminalCheckout prints the widget options and reads the gateway
// callback from a line of input: "<payment_id> <signature>" completes,
// an empty line or "cancel" dismisses.
//
// One reader goroutine owns In for the life of the checkout and hands each
// line to whichever session is open. A session that ends first leaves the
// next line for the following session.
type TerminalCheckout struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan string
}

func (t *TerminalCheckout) Open(ctx context.Context, opts CheckoutOptions, session *Session) error {
	payload, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkout options: %w", err)
	}
	t.once.Do(t.startReader)

	fmt.Fprintf(t.Out, "Open checkout with:\n%s\n", payload)
	fmt.Fprint(t.Out, "Enter \"<payment_id> <signature>\" after paying, or press enter to cancel: ")

	go func() {
		select {
		case line, ok := <-t.lines:
			fields := strings.Fields(line)
			if !ok || len(fields) != 2 || strings.EqualFold(fields[0], "cancel") {
				session.Dismiss()
				return
			}
			session.Complete(opts.OrderID, fields[0], fields[1])
		case <-ctx.Done():
			session.Dismiss()
		case <-session.Done():
		}
	}()
	return nil
}

// startReader blocks on In until EOF or a read error, then closes lines.
func (t *TerminalCheckout) startReader() {
	t.lines = make(chan string)
	r := bufio.NewReader(t.In)
	go func() {
		defer close(t.lines)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				t.lines <- line
			}
			if err != nil {
				return
			}
		}
	}()
}
