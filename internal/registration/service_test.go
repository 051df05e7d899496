package registration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/auth"
	"github.com/sharath018/campus-events-backend/internal/event"
	"github.com/sharath018/campus-events-backend/internal/notification"
)

// memStore emulates the seat transaction against in-memory events.
type memStore struct {
	mu         sync.Mutex
	events     map[string]*event.Event
	regs       map[string]*Registration // key user|event
	attendance map[string]string
	failCreate error
}

func newMemStore(events ...*event.Event) *memStore {
	m := &memStore{
		events:     map[string]*event.Event{},
		regs:       map[string]*Registration{},
		attendance: map[string]string{},
	}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memStore) GetByID(ctx context.Context, id string) (*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, event.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) CreateWithSeat(ctx context.Context, reg *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	key := reg.UserID + "|" + reg.EventID
	if _, ok := m.regs[key]; ok {
		return ErrAlreadyRegistered
	}
	e := m.events[reg.EventID]
	if e.CurrentRegistrations >= e.Strength {
		return ErrEventFull
	}
	e.CurrentRegistrations++
	if reg.ID == "" {
		reg.ID = "reg-" + key
	}
	m.regs[key] = reg
	return nil
}

func (m *memStore) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.regs[userID+"|"+eventID]
	return ok, nil
}

func (m *memStore) OrderIDFor(ctx context.Context, userID, eventID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[userID+"|"+eventID]
	if !ok {
		return "", ErrNotRegistered
	}
	if r.OrderID == nil {
		return "", nil
	}
	return *r.OrderID, nil
}

func (m *memStore) ListEventsForUser(ctx context.Context, userID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, r := range m.regs {
		if r.UserID == userID {
			out = append(out, *m.events[r.EventID])
		}
	}
	return out, nil
}

func (m *memStore) ListAttendedEvents(ctx context.Context, userID string) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for key, status := range m.attendance {
		r := m.regs[key]
		if r != nil && r.UserID == userID && status == AttendancePresent {
			out = append(out, *m.events[r.EventID])
		}
	}
	return out, nil
}

func (m *memStore) ListByEvent(ctx context.Context, eventID string) ([]Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attendee
	for _, r := range m.regs {
		if r.EventID == eventID {
			out = append(out, Attendee{RegistrationID: r.ID, UserID: r.UserID, Source: r.Source})
		}
	}
	return out, nil
}

func (m *memStore) MarkAttendance(ctx context.Context, eventID, userID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + eventID
	if _, ok := m.regs[key]; !ok {
		return ErrNotRegistered
	}
	m.attendance[key] = status
	return nil
}

func (m *memStore) seats(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventID].CurrentRegistrations
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []notification.RegistrationConfirmed
	err  error
}

func (p *fakePublisher) PublishRegistrationConfirmed(ctx context.Context, msg notification.RegistrationConfirmed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

var fixedNow = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

func approvedEvent(id string, strength, current int, fee int64) *event.Event {
	return &event.Event{
		ID:                   id,
		Name:                 "Event " + id,
		Date:                 time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		Strength:             strength,
		CurrentRegistrations: current,
		RegistrationFee:      fee,
		Status:               event.StatusApproved,
		CreatedBy:            "org-1",
	}
}

func newTestService(store *memStore, locker Locker, pub Publisher) Service {
	return NewService(store, store, locker, pub, nil, zap.NewNop(), Config{Now: fixedNow})
}

func TestRegisterFreeIdempotent(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 10, 0, 0))
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeLocker{}, pub)

	created, err := svc.RegisterFree(context.Background(), "u-1", "ev-1", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, store.seats("ev-1"))

	created, err = svc.RegisterFree(context.Background(), "u-1", "ev-1", "")
	require.NoError(t, err)
	assert.False(t, created, "second call reports already registered")
	assert.Equal(t, 1, store.seats("ev-1"), "seat count unchanged")

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "ev-1", pub.msgs[0].EventID)
	assert.Equal(t, SourceFree, pub.msgs[0].Source)
	assert.Equal(t, "2026-11-01", pub.msgs[0].EventDate)
}

func TestRegisterFreeErrors(t *testing.T) {
	past := approvedEvent("ev-past", 10, 0, 0)
	past.Date = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	pending := approvedEvent("ev-pending", 10, 0, 0)
	pending.Status = event.StatusPending

	tests := []struct {
		name    string
		eventID string
		wantErr error
	}{
		{"full", "ev-full", ErrEventFull},
		{"paid", "ev-paid", ErrPaymentRequired},
		{"missing", "nope", ErrEventNotFound},
		{"not approved", "ev-pending", ErrEventNotFound},
		{"past", "ev-past", ErrEventClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(approvedEvent("ev-full", 2, 2, 0), approvedEvent("ev-paid", 10, 0, 500), past, pending)
			pub := &fakePublisher{}
			svc := newTestService(store, nil, pub)

			created, err := svc.RegisterFree(context.Background(), "u-1", tt.eventID, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, created)
			assert.Empty(t, pub.msgs)
		})
	}
}

func TestRegisterFreeLastSeatRace(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 1, 0, 0))
	svc := newTestService(store, &fakeLocker{}, nil)

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.RegisterFree(context.Background(), "u-"+string(rune('a'+i)), "ev-1", "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrEventFull)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, store.seats("ev-1"))
}

func TestLockHeldReportsInFlight(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 10, 0, 0))
	locker := &fakeLocker{held: map[string]bool{lockKey("u-1", "ev-1"): true}}
	svc := newTestService(store, locker, nil)

	_, err := svc.RegisterFree(context.Background(), "u-1", "ev-1", "")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, 0, store.seats("ev-1"))
}

func TestLockErrorFallsBackToDatabase(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 10, 0, 0))
	svc := newTestService(store, &fakeLocker{err: errors.New("redis down")}, nil)

	created, err := svc.RegisterFree(context.Background(), "u-1", "ev-1", "")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestPublishFailureDoesNotFailRegistration(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 10, 0, 0))
	svc := newTestService(store, nil, &fakePublisher{err: errors.New("broker down")})

	created, err := svc.RegisterFree(context.Background(), "u-1", "ev-1", "")
	require.NoError(t, err)
	assert.True(t, created)
}

// stalledPublisher blocks until its context ends, like a writer retrying
// against an unreachable broker.
type stalledPublisher struct {
	calls int32
}

func (p *stalledPublisher) PublishRegistrationConfirmed(ctx context.Context, msg notification.RegistrationConfirmed) error {
	atomic.AddInt32(&p.calls, 1)
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledBrokerDoesNotHoldRegistration(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 10, 0, 0))
	pub := &stalledPublisher{}
	svc := NewService(store, store, nil, pub, nil, zap.NewNop(), Config{Now: fixedNow, PublishTimeout: 20 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := svc.RegisterFree(context.Background(), "u-1", "ev-1", "")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RegisterFree blocked on the publisher")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&pub.calls))

	regs, err := svc.ListRegistered(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestFinalize(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 1, 0, 500))
	pub := &fakePublisher{}
	// A held lock must not block finalization.
	locker := &fakeLocker{held: map[string]bool{lockKey("u-1", "ev-1"): true}}
	svc := newTestService(store, locker, pub)
	in := FinalizeInput{UserID: "u-1", EventID: "ev-1", OrderID: "order_1", PaymentID: "pay_1", AmountPaid: 50000}

	outcome, err := svc.Finalize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, Finalized, outcome)

	outcome, err = svc.Finalize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, AlreadyFinalized, outcome, "repeat finalize is idempotent")
	assert.Equal(t, 1, store.seats("ev-1"))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "pay_1", pub.msgs[0].PaymentID)
	assert.Equal(t, int64(50000), pub.msgs[0].AmountPaid)

	_, err = svc.Finalize(context.Background(), FinalizeInput{UserID: "u-2", EventID: "ev-1", OrderID: "order_2", PaymentID: "pay_2"})
	assert.ErrorIs(t, err, ErrEventFull)
}

func TestFinalizeSecondOrderForSameUser(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 5, 0, 500))
	svc := newTestService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Finalize(ctx, FinalizeInput{UserID: "u-1", EventID: "ev-1", OrderID: "order_1", PaymentID: "pay_1"})
	require.NoError(t, err)

	outcome, err := svc.Finalize(ctx, FinalizeInput{UserID: "u-1", EventID: "ev-1", OrderID: "order_2", PaymentID: "pay_2"})
	require.NoError(t, err)
	assert.Equal(t, HeldByOtherOrder, outcome)
	assert.Equal(t, 1, store.seats("ev-1"))
}

func TestFinalizeWrapsStorageErrors(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 1, 0, 500))
	store.failCreate = errors.New("connection reset")
	svc := newTestService(store, nil, nil)

	_, err := svc.Finalize(context.Background(), FinalizeInput{UserID: "u-1", EventID: "ev-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create registration")
}

func TestMarkAttendanceAndAttended(t *testing.T) {
	store := newMemStore(approvedEvent("ev-1", 10, 0, 0))
	svc := newTestService(store, nil, nil)
	ctx := context.Background()
	organizer := auth.User{ID: "org-1", Role: auth.RoleOrganizer}

	_, err := svc.RegisterFree(ctx, "u-1", "ev-1", "")
	require.NoError(t, err)

	err = svc.MarkAttendance(ctx, auth.User{ID: "org-2", Role: auth.RoleOrganizer}, "ev-1",
		[]AttendanceEntry{{UserID: "u-1", Status: AttendancePresent}}, "")
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.MarkAttendance(ctx, organizer, "ev-1", []AttendanceEntry{{UserID: "u-1", Status: "late"}}, "")
	assert.ErrorIs(t, err, ErrInvalidAttendance)

	err = svc.MarkAttendance(ctx, organizer, "ev-1", []AttendanceEntry{{UserID: "u-9", Status: AttendancePresent}}, "")
	assert.ErrorIs(t, err, ErrNotRegistered)

	require.NoError(t, svc.MarkAttendance(ctx, organizer, "ev-1", []AttendanceEntry{{UserID: "u-1", Status: AttendancePresent}}, ""))

	attended, err := svc.ListAttended(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, attended, 1)
	assert.Equal(t, "ev-1", attended[0].ID)

	attendees, err := svc.ListByEvent(ctx, auth.User{ID: "admin", Role: auth.RoleAdmin}, "ev-1")
	require.NoError(t, err)
	assert.Len(t, attendees, 1)
}
