package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

var testBusinessMetrics = metrics.NewBusinessMetrics("sellers_test")

type fakeClients struct {
	mu        sync.Mutex
	clients   map[uuid.UUID]*RemoteClient
	assignErr error
	assigns   int
}

func newFakeClients() *fakeClients {
	return &fakeClients{clients: make(map[uuid.UUID]*RemoteClient)}
}

func (f *fakeClients) add(assignedTo *uuid.UUID) *RemoteClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	client := &RemoteClient{
		ID:               uuid.New(),
		InstitutionName:  "Hospital San Jose",
		Address:          "Calle 10 # 4-21",
		City:             "Cali",
		Country:          "CO",
		AssignedSellerID: assignedTo,
	}
	f.clients[client.ID] = client
	return client
}

func (f *fakeClients) GetClient(_ context.Context, id uuid.UUID) (*RemoteClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.clients[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "client_not_found", "client not found")
	}
	copied := *client
	return &copied, nil
}

func (f *fakeClients) AssignSeller(_ context.Context, clientID, sellerID uuid.UUID) (*RemoteClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns++
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	client := f.clients[clientID]
	client.AssignedSellerID = &sellerID
	copied := *client
	return &copied, nil
}

type fakeVisitsStore struct {
	mu     sync.Mutex
	visits map[uuid.UUID]*Visit
}

func newFakeVisitsStore() *fakeVisitsStore {
	return &fakeVisitsStore{visits: make(map[uuid.UUID]*Visit)}
}

func (f *fakeVisitsStore) CreateVisit(_ context.Context, visit *Visit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.visits {
		if existing.SellerID != visit.SellerID || existing.Status == VisitCancelled {
			continue
		}
		delta := existing.FechaVisita.Sub(visit.FechaVisita)
		if delta < 0 {
			delta = -delta
		}
		if delta <= 180*time.Minute {
			return apperr.New(apperr.Conflict, "visit_time_conflict",
				"seller already has a visit within 180 minutes of that time").WithDetails(map[string]any{
				"conflict_id":   existing.ID.String(),
				"conflict_time": existing.FechaVisita,
			})
		}
	}
	copied := *visit
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	f.visits[visit.ID] = &copied
	return nil
}

func (f *fakeVisitsStore) GetVisit(_ context.Context, id uuid.UUID) (*Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	visit, ok := f.visits[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	copied := *visit
	return &copied, nil
}

func (f *fakeVisitsStore) ListVisits(context.Context, *uuid.UUID, paging.Params) ([]*Visit, int, error) {
	return nil, 0, nil
}

func (f *fakeVisitsStore) UpdateVisitStatus(_ context.Context, id uuid.UUID, status VisitStatus, recommendations string) (*Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	visit, ok := f.visits[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	if status != VisitCompleted && status != VisitCancelled {
		return nil, apperr.New(apperr.Conflict, "invalid_status_transition", "bad target")
	}
	if visit.Status != VisitScheduled {
		return nil, apperr.New(apperr.Conflict, "invalid_status_transition", "terminal state")
	}
	visit.Status = status
	if recommendations != "" {
		visit.Recommendations = recommendations
	}
	copied := *visit
	return &copied, nil
}

func (f *fakeVisitsStore) SetEvidenceURL(_ context.Context, id uuid.UUID, url string) (*Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	visit, ok := f.visits[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	visit.EvidenceURL = &url
	copied := *visit
	return &copied, nil
}

type sagaPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *sagaPublisher) Publish(_ context.Context, eventType string, _ any) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return uuid.NewString()
}

type sagaFixture struct {
	saga      *VisitSaga
	clients   *fakeClients
	visits    *fakeVisitsStore
	publisher *sagaPublisher
}

func newSaga(t *testing.T) *sagaFixture {
	t.Helper()
	f := &sagaFixture{
		clients:   newFakeClients(),
		visits:    newFakeVisitsStore(),
		publisher: &sagaPublisher{},
	}
	f.saga = NewVisitSaga(f.visits, f.clients, f.publisher, nil,
		slog.New(slog.DiscardHandler), testBusinessMetrics)
	return f
}

func in48h() time.Time {
	return time.Now().UTC().Add(48 * time.Hour)
}

func TestCreateVisitAssignsUnassignedClient(t *testing.T) {
	f := newSaga(t)
	client := f.clients.add(nil)
	sellerID := uuid.New()

	visit, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    sellerID,
		ClientID:    client.ID,
		FechaVisita: in48h(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.clients.assigns)
	assert.Equal(t, sellerID, *f.clients.clients[client.ID].AssignedSellerID)
	assert.Equal(t, VisitScheduled, visit.Status)
	assert.Equal(t, "Hospital San Jose", visit.ClientInstitution)
	assert.Equal(t, []string{"visit_created"}, f.publisher.events)
}

func TestCreateVisitForOwnClientSkipsAssignment(t *testing.T) {
	f := newSaga(t)
	sellerID := uuid.New()
	client := f.clients.add(&sellerID)

	_, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    sellerID,
		ClientID:    client.ID,
		FechaVisita: in48h(),
	})
	require.NoError(t, err)
	assert.Zero(t, f.clients.assigns)
}

func TestCreateVisitForeignClientForbidden(t *testing.T) {
	f := newSaga(t)
	otherSeller := uuid.New()
	client := f.clients.add(&otherSeller)

	_, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    uuid.New(),
		ClientID:    client.ID,
		FechaVisita: in48h(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	envelope := apperr.From(err)
	assert.Equal(t, "client_assigned_to_other_seller", envelope.Code)
	assert.Equal(t, "Hospital San Jose", envelope.Details["client_name"])
	assert.Equal(t, otherSeller.String(), envelope.Details["assigned_seller_id"])
	assert.Empty(t, f.visits.visits)
}

func TestCreateVisitLostAssignmentRaceForbidden(t *testing.T) {
	f := newSaga(t)
	client := f.clients.add(nil)
	f.clients.assignErr = apperr.New(apperr.Conflict, "client_already_assigned",
		"client is assigned to another seller").WithDetails(map[string]any{
		"client_name": "Hospital San Jose",
	})

	_, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    uuid.New(),
		ClientID:    client.ID,
		FechaVisita: in48h(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
	assert.Equal(t, "client_assigned_to_other_seller", apperr.From(err).Code)
}

func TestCreateVisitClientNotFound(t *testing.T) {
	f := newSaga(t)

	_, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    uuid.New(),
		ClientID:    uuid.New(),
		FechaVisita: in48h(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestCreateVisitTooSoonRejected(t *testing.T) {
	f := newSaga(t)
	client := f.clients.add(nil)

	for _, lead := range []time.Duration{2 * time.Hour, 24 * time.Hour} {
		_, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
			SellerID:    uuid.New(),
			ClientID:    client.ID,
			FechaVisita: time.Now().UTC().Add(lead),
		})
		require.Error(t, err, "lead %v", lead)
		assert.Equal(t, "invalid_visit_date", apperr.From(err).Code)
	}

	// A rejected date must not assign the seller to the client.
	assert.Zero(t, f.clients.assigns)
	assert.Nil(t, f.clients.clients[client.ID].AssignedSellerID)
	assert.Empty(t, f.visits.visits)
}

func TestCreateVisitTimeConflict(t *testing.T) {
	f := newSaga(t)
	client := f.clients.add(nil)
	sellerID := uuid.New()
	slot := in48h()

	first, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    sellerID,
		ClientID:    client.ID,
		FechaVisita: slot,
	})
	require.NoError(t, err)

	_, err = f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    sellerID,
		ClientID:    client.ID,
		FechaVisita: slot.Add(90 * time.Minute),
	})
	require.Error(t, err)

	envelope := apperr.From(err)
	assert.Equal(t, "visit_time_conflict", envelope.Code)
	assert.Equal(t, first.ID.String(), envelope.Details["conflict_id"])
	assert.Equal(t, first.FechaVisita, envelope.Details["conflict_time"])
	// Only the first visit was announced.
	assert.Equal(t, []string{"visit_created"}, f.publisher.events)
}

func TestVisitStatusTransitions(t *testing.T) {
	f := newSaga(t)
	client := f.clients.add(nil)

	visit, err := f.saga.CreateVisit(context.Background(), CreateVisitInput{
		SellerID:    uuid.New(),
		ClientID:    client.ID,
		FechaVisita: in48h(),
	})
	require.NoError(t, err)

	completed, err := f.visits.UpdateVisitStatus(context.Background(),
		visit.ID, VisitCompleted, "ampliar pedido de guantes")
	require.NoError(t, err)
	assert.Equal(t, VisitCompleted, completed.Status)
	assert.Equal(t, "ampliar pedido de guantes", completed.Recommendations)

	// Terminal states reject further transitions.
	_, err = f.visits.UpdateVisitStatus(context.Background(), visit.ID, VisitCancelled, "")
	require.Error(t, err)
	assert.Equal(t, "invalid_status_transition", apperr.From(err).Code)
}
