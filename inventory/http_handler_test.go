package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

type fakeInventoryStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*Inventory
	processed map[string]bool
}

func newFakeInventoryStore() *fakeInventoryStore {
	return &fakeInventoryStore{
		rows:      make(map[uuid.UUID]*Inventory),
		processed: make(map[string]bool),
	}
}

func (f *fakeInventoryStore) add(quantity, reserved int) *Inventory {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := &Inventory{
		ID:               uuid.New(),
		ProductID:        uuid.New(),
		ProductName:      "Jeringa 5ml",
		ProductSKU:       "JER-5ML",
		UnitPrice:        decimal.RequireFromString("1200.00"),
		WarehouseID:      uuid.New(),
		WarehouseName:    "Bodega Norte",
		WarehouseCity:    "Bogota",
		WarehouseCountry: "CO",
		BatchNumber:      "L-001",
		Quantity:         quantity,
		ReservedQuantity: reserved,
	}
	inv.AvailableQuantity = quantity - reserved
	f.rows[inv.ID] = inv
	return inv
}

func (f *fakeInventoryStore) Get(_ context.Context, id uuid.UUID) (*Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.rows[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "inventory_not_found", "inventory not found")
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeInventoryStore) List(_ context.Context, p paging.Params) ([]*Inventory, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*Inventory
	for _, inv := range f.rows {
		copied := *inv
		all = append(all, &copied)
	}
	return all, len(all), nil
}

func (f *fakeInventoryStore) Reserve(_ context.Context, id uuid.UUID, delta int) (*Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.rows[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "inventory_not_found", "inventory not found")
	}
	next := inv.ReservedQuantity + delta
	if next < 0 || next > inv.Quantity {
		if delta > 0 {
			return nil, apperr.New(apperr.Conflict, "insufficient_inventory",
				"not enough available stock").WithDetails(map[string]any{
				"inventory_id": id.String(),
				"requested":    delta,
				"available":    inv.Quantity - inv.ReservedQuantity,
			})
		}
		return nil, apperr.New(apperr.Conflict, "invalid_release",
			"release exceeds reserved quantity")
	}
	inv.ReservedQuantity = next
	inv.AvailableQuantity = inv.Quantity - next
	copied := *inv
	return &copied, nil
}

func (f *fakeInventoryStore) CommitOrderReservation(_ context.Context, eventID, _, _ string, items []ReservedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return ledger.ErrAlreadyProcessed
	}
	for _, item := range items {
		inv, ok := f.rows[item.InventoryID]
		if !ok || inv.ReservedQuantity < item.Quantity {
			return assert.AnError
		}
		inv.Quantity -= item.Quantity
		inv.ReservedQuantity -= item.Quantity
		inv.AvailableQuantity = inv.Quantity - inv.ReservedQuantity
	}
	f.processed[eventID] = true
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeInventoryStore) {
	t.Helper()
	store := newFakeInventoryStore()
	mux := http.NewServeMux()
	NewHandler(store, slog.New(slog.DiscardHandler)).registerRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func patchReserve(t *testing.T, url string, id uuid.UUID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch,
		url+"/inventories/"+id.String()+"/reserve", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestReservePositiveDelta(t *testing.T) {
	server, store := newTestServer(t)
	inv := store.add(10, 0)

	resp := patchReserve(t, server.URL, inv.ID, `{"quantity":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated Inventory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, 4, updated.ReservedQuantity)
	assert.Equal(t, 6, updated.AvailableQuantity)
}

func TestReserveInsufficient(t *testing.T) {
	server, store := newTestServer(t)
	inv := store.add(10, 7)

	resp := patchReserve(t, server.URL, inv.ID, `{"quantity":5}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var envelope apperr.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "insufficient_inventory", envelope.ErrorCode)
	assert.EqualValues(t, 3, envelope.Details["available"])
}

func TestReserveNegativeDeltaReleases(t *testing.T) {
	server, store := newTestServer(t)
	inv := store.add(10, 4)

	resp := patchReserve(t, server.URL, inv.ID, `{"quantity":-4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated Inventory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, 0, updated.ReservedQuantity)
	assert.Equal(t, 10, updated.AvailableQuantity)
}

func TestReserveReleaseBelowZeroRejected(t *testing.T) {
	server, store := newTestServer(t)
	inv := store.add(10, 2)

	resp := patchReserve(t, server.URL, inv.ID, `{"quantity":-5}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReserveZeroDeltaRejected(t *testing.T) {
	server, store := newTestServer(t)
	inv := store.add(10, 0)

	resp := patchReserve(t, server.URL, inv.ID, `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReserveUnknownInventory(t *testing.T) {
	server, _ := newTestServer(t)

	resp := patchReserve(t, server.URL, uuid.New(), `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetInventory(t *testing.T) {
	server, store := newTestServer(t)
	inv := store.add(10, 3)

	resp, err := http.Get(server.URL + "/inventories/" + inv.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got Inventory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 7, got.AvailableQuantity)
	assert.Equal(t, "JER-5ML", got.ProductSKU)
}
