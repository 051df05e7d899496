package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharath018/campus-events-backend/internal/auth"
)

type mockRepo struct {
	events  map[string]*Event
	created []*Event
	status  map[string]string
	deleted []string
}

func newMockRepo(events ...*Event) *mockRepo {
	m := &mockRepo{events: map[string]*Event{}, status: map[string]string{}}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *mockRepo) Create(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "generated"
	}
	m.created = append(m.created, e)
	m.events[e.ID] = e
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) ListApproved(ctx context.Context) ([]Event, error) {
	var out []Event
	for _, e := range m.events {
		if e.Status == StatusApproved {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPending(ctx context.Context) ([]Event, error) {
	var out []Event
	for _, e := range m.events {
		if e.Status == StatusPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]Event, error) {
	var out []Event
	for _, e := range m.events {
		if e.CreatedBy == organizerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, e *Event) error {
	if _, ok := m.events[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	m.status[id] = status
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	e, ok := m.events[id]
	if !ok || e.CurrentRegistrations > 0 {
		return ErrHasRegistrations
	}
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return nil
}

var (
	organizer = auth.User{ID: "org-1", Role: auth.RoleOrganizer}
	admin     = auth.User{ID: "admin-1", Role: auth.RoleAdmin}
)

func validRequest() EventRequest {
	return EventRequest{
		Name:            "Go Workshop",
		Date:            "2026-11-20",
		Venue:           "Lab 3",
		Strength:        40,
		RegistrationFee: 0,
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *EventRequest)
		wantErr error
	}{
		{"valid free", func(r *EventRequest) {}, nil},
		{"valid paid", func(r *EventRequest) { r.RegistrationFee = 500 }, nil},
		{"bad date", func(r *EventRequest) { r.Date = "20/11/2026" }, ErrInvalidDate},
		{"negative fee", func(r *EventRequest) { r.RegistrationFee = -1 }, ErrInvalidFee},
		{"zero strength", func(r *EventRequest) { r.Strength = 0 }, ErrInvalidStrength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			svc := NewService(repo, nil, zap.NewNop())

			req := validRequest()
			tt.mutate(&req)
			e, err := svc.Create(context.Background(), organizer, req, "127.0.0.1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.created)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, e.Status)
			assert.Equal(t, organizer.ID, e.CreatedBy)
			assert.Equal(t, 0, e.CurrentRegistrations)
		})
	}
}

func TestCreateByAdminIsApproved(t *testing.T) {
	svc := NewService(newMockRepo(), nil, zap.NewNop())
	e, err := svc.Create(context.Background(), admin, validRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, e.Status)
}

func TestUpdateOwnership(t *testing.T) {
	existing := &Event{ID: "ev-1", CreatedBy: "org-1", Strength: 10, CurrentRegistrations: 8}
	repo := newMockRepo(existing)
	svc := NewService(repo, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), auth.User{ID: "org-2", Role: auth.RoleOrganizer}, "ev-1", validRequest(), "")
	assert.ErrorIs(t, err, ErrForbidden)

	req := validRequest()
	req.Strength = 5
	_, err = svc.Update(context.Background(), organizer, "ev-1", req, "")
	assert.ErrorIs(t, err, ErrBelowRegistered)

	req.Strength = 50
	updated, err := svc.Update(context.Background(), organizer, "ev-1", req, "")
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Strength)
	assert.Equal(t, 8, updated.CurrentRegistrations)
}

func TestSetStatus(t *testing.T) {
	repo := newMockRepo(&Event{ID: "ev-1"})
	svc := NewService(repo, nil, zap.NewNop())

	assert.ErrorIs(t, svc.SetStatus(context.Background(), admin, "ev-1", "maybe", ""), ErrInvalidStatus)
	assert.ErrorIs(t, svc.SetStatus(context.Background(), admin, "nope", "approved", ""), ErrNotFound)
	require.NoError(t, svc.SetStatus(context.Background(), admin, "ev-1", " Approved ", ""))
	assert.Equal(t, StatusApproved, repo.status["ev-1"])
}

func TestListPending(t *testing.T) {
	repo := newMockRepo(
		&Event{ID: "ev-1", Status: StatusPending},
		&Event{ID: "ev-2", Status: StatusApproved},
	)
	svc := NewService(repo, nil, zap.NewNop())

	events, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.User
		event   *Event
		wantErr error
	}{
		{"owner deletes", organizer, &Event{ID: "ev-1", CreatedBy: "org-1", Status: StatusApproved}, nil},
		{"admin deletes any", admin, &Event{ID: "ev-1", CreatedBy: "org-9", Status: StatusApproved}, nil},
		{"other organizer", organizer, &Event{ID: "ev-1", CreatedBy: "org-9"}, ErrForbidden},
		{"seats held", admin, &Event{ID: "ev-1", CreatedBy: "org-1", CurrentRegistrations: 2}, ErrHasRegistrations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(tt.event)
			svc := NewService(repo, nil, zap.NewNop())

			err := svc.Delete(context.Background(), tt.actor, "ev-1", "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.deleted)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"ev-1"}, repo.deleted)
		})
	}

	svc := NewService(newMockRepo(), nil, zap.NewNop())
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, "missing", ""), ErrNotFound)
}

func TestReject(t *testing.T) {
	repo := newMockRepo(
		&Event{ID: "ev-1", Status: StatusPending},
		&Event{ID: "ev-2", Status: StatusApproved},
	)
	svc := NewService(repo, nil, zap.NewNop())

	assert.ErrorIs(t, svc.Reject(context.Background(), admin, "ev-2", ""), ErrNotPending)
	assert.ErrorIs(t, svc.Reject(context.Background(), admin, "missing", ""), ErrNotFound)
	require.NoError(t, svc.Reject(context.Background(), admin, "ev-1", ""))
	assert.Equal(t, []string{"ev-1"}, repo.deleted)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
