package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/auth"
	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/internal/registration"
)

const testSecret = "key_secret"

type mockRepo struct {
	mu       sync.Mutex
	payments map[string]*Payment
}

func newMockRepo() *mockRepo { return &mockRepo{payments: map[string]*Payment{}} }

func (m *mockRepo) Create(ctx context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.OrderID] = &cp
	return nil
}

func (m *mockRepo) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) UpdatePaymentDetails(ctx context.Context, orderID string, params UpdatePaymentDetailsParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payments[orderID]
	if p == nil || p.Status == StatusSuccess {
		return nil
	}
	p.Status = params.Status
	p.PaymentID = &params.PaymentID
	p.Method = params.Method
	p.PaidAt = params.PaidAt
	return nil
}

func (m *mockRepo) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) status(orderID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[orderID].Status
}

type mockGateway struct {
	orders  []int64
	payment *GatewayPayment
	fetches int
	err     error
}

func (g *mockGateway) CreateOrder(amount int64, currency, receipt string, notes map[string]interface{}) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.orders = append(g.orders, amount)
	return fmt.Sprintf("order_%d", len(g.orders)), nil
}

func (g *mockGateway) FetchPayment(paymentID string) (*GatewayPayment, error) {
	g.fetches++
	if g.err != nil {
		return nil, g.err
	}
	cp := *g.payment
	return &cp, nil
}

type mockRegistrar struct {
	event     *event.Event
	openErr   error
	outcome   registration.FinalizeOutcome
	finalErr  error
	finalized []registration.FinalizeInput
}

func (r *mockRegistrar) CheckOpen(ctx context.Context, userID, eventID string) (*event.Event, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.event, nil
}

func (r *mockRegistrar) Finalize(ctx context.Context, in registration.FinalizeInput) (registration.FinalizeOutcome, error) {
	r.finalized = append(r.finalized, in)
	return r.outcome, r.finalErr
}

type mockUsers struct{}

func (mockUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return &auth.User{ID: id, FullName: "Asha Rao", Email: "asha@campus.edu"}, nil
}

var student = auth.User{ID: "u-1", Role: auth.RoleStudent}

func paidEvent() *event.Event {
	return &event.Event{
		ID:              "E2",
		Name:            "Cloud Summit",
		Date:            time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC),
		Venue:           "Auditorium",
		Strength:        100,
		RegistrationFee: 500,
		Status:          event.StatusApproved,
	}
}

type fixture struct {
	repo      *mockRepo
	gateway   *mockGateway
	registrar *mockRegistrar
	svc       Service
}

func newFixture() *fixture {
	f := &fixture{
		repo: newMockRepo(),
		gateway: &mockGateway{payment: &GatewayPayment{
			ID: "pay_123", OrderID: "order_1", Status: "captured", Method: "upi", Amount: 50000,
			Raw: map[string]interface{}{"id": "pay_123"},
		}},
		registrar: &mockRegistrar{event: paidEvent()},
	}
	f.svc = NewService(f.repo, f.gateway, f.registrar, staticEvents{paidEvent()}, mockUsers{}, nil, zap.NewNop(), Config{
		Key:           "rzp_test_x",
		Secret:        testSecret,
		WebhookSecret: "whsec",
	})
	return f
}

type staticEvents struct{ e *event.Event }

func (s staticEvents) GetByID(ctx context.Context, id string) (*event.Event, error) {
	cp := *s.e
	return &cp, nil
}

func (f *fixture) createOrder(t *testing.T) *CreateOrderResponse {
	t.Helper()
	resp, err := f.svc.CreateOrder(context.Background(), student, CreateOrderRequest{Amount: 500, EventID: "E2"}, "")
	require.NoError(t, err)
	return resp
}

func verifyRequest(paymentID string) VerifyPaymentRequest {
	return VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: paymentID,
		Signature: sign(testSecret, []byte("order_1|"+paymentID)),
		EventID:   "E2",
		Amount:    500,
	}
}

func TestCreateOrderUsesServerFee(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.CreateOrder(context.Background(), student, CreateOrderRequest{Amount: 1, EventID: "E2"}, "")
	require.NoError(t, err)
	assert.Equal(t, "order_1", resp.Order.ID)
	assert.Equal(t, int64(50000), resp.Order.Amount, "fee in minor units, hint ignored")
	assert.Equal(t, "INR", resp.Order.Currency)
	assert.Equal(t, "rzp_test_x", resp.Key)
	assert.Equal(t, []int64{50000}, f.gateway.orders)
	assert.Equal(t, StatusCreated, f.repo.status("order_1"))
}

func TestCreateOrderRejections(t *testing.T) {
	free := paidEvent()
	free.RegistrationFee = 0

	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantErr error
	}{
		{"free event", func(f *fixture) { f.registrar.event = free }, ErrFreeEvent},
		{"full", func(f *fixture) { f.registrar.openErr = registration.ErrEventFull }, registration.ErrEventFull},
		{"already registered", func(f *fixture) { f.registrar.openErr = registration.ErrAlreadyRegistered }, registration.ErrAlreadyRegistered},
		{"gateway down", func(f *fixture) { f.gateway.err = errors.New("503") }, ErrGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			_, err := f.svc.CreateOrder(context.Background(), student, CreateOrderRequest{Amount: 500, EventID: "E2"}, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.repo.payments)
		})
	}
}

func TestVerifyPaymentSuccessIsIdempotent(t *testing.T) {
	f := newFixture()
	f.createOrder(t)

	res, err := f.svc.VerifyPayment(context.Background(), student, verifyRequest("pay_123"), "")
	require.NoError(t, err)
	assert.False(t, res.AlreadyRegistered)
	assert.Equal(t, StatusSuccess, f.repo.status("order_1"))

	require.Len(t, f.registrar.finalized, 1)
	in := f.registrar.finalized[0]
	assert.Equal(t, "u-1", in.UserID)
	assert.Equal(t, "E2", in.EventID)
	assert.Equal(t, "order_1", in.OrderID)
	assert.Equal(t, "pay_123", in.PaymentID)
	assert.Equal(t, int64(50000), in.AmountPaid)

	_, err = f.svc.VerifyPayment(context.Background(), student, verifyRequest("pay_123"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.gateway.fetches, "settled order is not refetched")
	assert.Len(t, f.registrar.finalized, 1)
}

func TestVerifyPaymentSignatureMismatch(t *testing.T) {
	f := newFixture()
	f.createOrder(t)

	req := verifyRequest("pay_999")
	req.Signature = "sig_xyz"
	_, err := f.svc.VerifyPayment(context.Background(), student, req, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Zero(t, f.gateway.fetches)
	assert.Empty(t, f.registrar.finalized)
	assert.Equal(t, StatusCreated, f.repo.status("order_1"))
}

func TestVerifyPaymentOwnershipAndEvent(t *testing.T) {
	f := newFixture()
	f.createOrder(t)

	_, err := f.svc.VerifyPayment(context.Background(), auth.User{ID: "u-2"}, verifyRequest("pay_123"), "")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	req := verifyRequest("pay_123")
	req.EventID = "E3"
	_, err = f.svc.VerifyPayment(context.Background(), student, req, "")
	assert.ErrorIs(t, err, ErrOrderMismatch)
}

func TestVerifyPaymentNotCaptured(t *testing.T) {
	f := newFixture()
	f.createOrder(t)
	f.gateway.payment.Status = "failed"

	_, err := f.svc.VerifyPayment(context.Background(), student, verifyRequest("pay_123"), "")
	assert.ErrorIs(t, err, ErrNotCaptured)
	assert.Empty(t, f.registrar.finalized)
	assert.Equal(t, StatusFailed, f.repo.status("order_1"))
}

func TestVerifyPaymentEventFilled(t *testing.T) {
	f := newFixture()
	f.createOrder(t)
	f.registrar.finalErr = registration.ErrEventFull

	_, err := f.svc.VerifyPayment(context.Background(), student, verifyRequest("pay_123"), "")
	assert.ErrorIs(t, err, registration.ErrEventFull)
	assert.Equal(t, StatusUnassigned, f.repo.status("order_1"))
}

func TestVerifyPaymentHeldByOtherOrder(t *testing.T) {
	f := newFixture()
	f.createOrder(t)
	f.registrar.outcome = registration.HeldByOtherOrder

	res, err := f.svc.VerifyPayment(context.Background(), student, verifyRequest("pay_123"), "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyRegistered)
	assert.Equal(t, StatusUnassigned, f.repo.status("order_1"))
}

func webhookBody(event, orderID string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":"pay_123","order_id":%q,"status":"captured","method":"card","amount":50000}}}}`, event, orderID))
}

func TestWebhook(t *testing.T) {
	f := newFixture()
	f.createOrder(t)
	ctx := context.Background()

	body := webhookBody("payment.captured", "order_1")
	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, body, "bad", ""), ErrInvalidWebhook)

	other := webhookBody("payment.authorized", "order_1")
	require.NoError(t, f.svc.HandleWebhook(ctx, other, sign("whsec", other), ""))
	assert.Empty(t, f.registrar.finalized)

	unknown := webhookBody("payment.captured", "order_404")
	require.NoError(t, f.svc.HandleWebhook(ctx, unknown, sign("whsec", unknown), ""))
	assert.Empty(t, f.registrar.finalized)

	require.NoError(t, f.svc.HandleWebhook(ctx, body, sign("whsec", body), ""))
	require.Len(t, f.registrar.finalized, 1)
	assert.Equal(t, "pay_123", f.registrar.finalized[0].PaymentID)
	assert.Equal(t, StatusSuccess, f.repo.status("order_1"))
	assert.Zero(t, f.gateway.fetches, "webhook carries the payment entity")

	// redelivery is a no-op
	require.NoError(t, f.svc.HandleWebhook(ctx, body, sign("whsec", body), ""))
	assert.Len(t, f.registrar.finalized, 1)
}

func TestReceipt(t *testing.T) {
	f := newFixture()
	f.createOrder(t)

	_, _, err := f.svc.Receipt(context.Background(), student, "order_1")
	assert.ErrorIs(t, err, ErrReceiptUnavailable)

	_, err = f.svc.VerifyPayment(context.Background(), student, verifyRequest("pay_123"), "")
	require.NoError(t, err)

	_, _, err = f.svc.Receipt(context.Background(), auth.User{ID: "u-2", Role: auth.RoleStudent}, "order_1")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	pdf, name, err := f.svc.Receipt(context.Background(), student, "order_1")
	require.NoError(t, err)
	assert.Equal(t, "receipt_order_1.pdf", name)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
