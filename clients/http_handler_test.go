package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

type fakeStore struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*Client
}

func newFakeStore() *fakeStore {
	return &fakeStore{clients: make(map[uuid.UUID]*Client)}
}

func (f *fakeStore) Create(_ context.Context, in CreateClientInput) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client := &Client{
		ID:              uuid.New(),
		ExternalAuthID:  in.ExternalAuthID,
		NIT:             in.NIT,
		InstitutionName: in.InstitutionName,
		ContactName:     in.ContactName,
		ContactEmail:    in.ContactEmail,
		Address:         in.Address,
		City:            in.City,
		Country:         in.Country,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	f.clients[client.ID] = client
	return client, nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.clients[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "client_not_found", "client not found")
	}
	return client, nil
}

func (f *fakeStore) GetByAuthID(_ context.Context, externalAuthID string) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, client := range f.clients {
		if client.ExternalAuthID == externalAuthID {
			return client, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "client_not_found", "client not found")
}

func (f *fakeStore) List(_ context.Context, sellerID *uuid.UUID, p paging.Params) ([]*Client, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*Client
	for _, client := range f.clients {
		if sellerID != nil {
			if client.AssignedSellerID == nil || *client.AssignedSellerID != *sellerID {
				continue
			}
		}
		all = append(all, client)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].InstitutionName < all[j].InstitutionName
	})
	total := len(all)
	if p.Offset >= len(all) {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end], total, nil
}

func (f *fakeStore) AssignSeller(_ context.Context, clientID, sellerID uuid.UUID) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.clients[clientID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "client_not_found", "client not found")
	}
	if client.AssignedSellerID != nil && *client.AssignedSellerID != sellerID {
		return nil, apperr.New(apperr.Conflict, "client_already_assigned",
			"client is assigned to another seller").WithDetails(map[string]any{
			"client_id":          client.ID.String(),
			"client_name":        client.InstitutionName,
			"assigned_seller_id": client.AssignedSellerID.String(),
		})
	}
	client.AssignedSellerID = &sellerID
	return client, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	mux := http.NewServeMux()
	NewHandler(store, slog.New(slog.DiscardHandler)).registerRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func TestCreateClient(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{"external_auth_id":"auth0|abc","nit":"900123456-1","institution_name":"Clinica del Norte","city":"Bogota","country":"CO"}`
	resp, err := http.Post(server.URL+"/clients", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created Client
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Clinica del Norte", created.InstitutionName)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Nil(t, created.AssignedSellerID)
}

func TestCreateClientMissingFields(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/clients", "application/json",
		bytes.NewBufferString(`{"nit":"900123456-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope apperr.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "missing_fields", envelope.ErrorCode)
}

func TestCreateClientUnknownField(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/clients", "application/json",
		bytes.NewBufferString(`{"nit":"1","institution_name":"X","bogus":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var envelope apperr.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "schema_validation", envelope.ErrorCode)
}

func TestGetClientNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/clients/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetClientInvalidID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/clients/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssignSellerConflict(t *testing.T) {
	server, store := newTestServer(t)

	client, err := store.Create(context.Background(), CreateClientInput{
		NIT: "1", InstitutionName: "Hospital Central",
	})
	require.NoError(t, err)

	first := uuid.New()
	_, err = store.AssignSeller(context.Background(), client.ID, first)
	require.NoError(t, err)

	body, _ := json.Marshal(assignSellerRequest{SellerID: uuid.New()})
	req, err := http.NewRequest(http.MethodPatch,
		server.URL+"/clients/"+client.ID.String()+"/assign-seller", bytes.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var envelope apperr.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "client_already_assigned", envelope.ErrorCode)
	assert.Equal(t, "Hospital Central", envelope.Details["client_name"])
	assert.Equal(t, first.String(), envelope.Details["assigned_seller_id"])
}

func TestAssignSellerIdempotentForSameSeller(t *testing.T) {
	server, store := newTestServer(t)

	client, err := store.Create(context.Background(), CreateClientInput{
		NIT: "1", InstitutionName: "Hospital Central",
	})
	require.NoError(t, err)

	sellerID := uuid.New()
	body, _ := json.Marshal(assignSellerRequest{SellerID: sellerID})

	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodPatch,
			server.URL+"/clients/"+client.ID.String()+"/assign-seller", bytes.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestListClientsPagination(t *testing.T) {
	server, store := newTestServer(t)

	for _, name := range []string{"Alfa", "Beta", "Gamma"} {
		_, err := store.Create(context.Background(), CreateClientInput{
			NIT: name, InstitutionName: name,
		})
		require.NoError(t, err)
	}

	resp, err := http.Get(server.URL + "/clients?limit=2&offset=0")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Items       []*Client `json:"items"`
		Total       int       `json:"total"`
		HasNext     bool      `json:"has_next"`
		HasPrevious bool      `json:"has_previous"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrevious)
}

func TestListClientsRejectsBadLimit(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/clients?limit=500")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
