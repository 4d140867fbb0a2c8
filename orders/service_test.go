package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

var testBusinessMetrics = metrics.NewBusinessMetrics("orders_test")

type fakeCustomers struct {
	customer *Customer
	err      error
}

func (f *fakeCustomers) GetCustomer(context.Context, uuid.UUID) (*Customer, error) {
	return f.customer, f.err
}

type fakeSellers struct {
	seller   *Seller
	visitErr error
}

func (f *fakeSellers) GetSeller(context.Context, uuid.UUID) (*Seller, error) {
	if f.seller == nil {
		return nil, apperr.New(apperr.NotFound, "seller_not_found", "seller not found")
	}
	return f.seller, nil
}

func (f *fakeSellers) GetVisit(_ context.Context, id uuid.UUID) (*RemoteVisit, error) {
	if f.visitErr != nil {
		return nil, f.visitErr
	}
	return &RemoteVisit{ID: id, SellerID: f.seller.ID, Status: "SCHEDULED"}, nil
}

type reserveCall struct {
	inventoryID uuid.UUID
	delta       int
}

type fakeInventories struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*RemoteInventory
	failOn     map[uuid.UUID]error // reserve failures by inventory id
	releaseErr error               // injected failure for negative deltas
	calls      []reserveCall
}

func newFakeInventories() *fakeInventories {
	return &fakeInventories{
		rows:   make(map[uuid.UUID]*RemoteInventory),
		failOn: make(map[uuid.UUID]error),
	}
}

func (f *fakeInventories) add(basePrice string, available int) *RemoteInventory {
	inv := &RemoteInventory{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		ProductName:       "Guantes nitrilo",
		ProductSKU:        "GN-100",
		UnitPrice:         decimal.RequireFromString(basePrice),
		WarehouseID:       uuid.New(),
		WarehouseName:     "Bodega Sur",
		WarehouseCity:     "Medellin",
		WarehouseCountry:  "CO",
		BatchNumber:       "L-7",
		ExpirationDate:    time.Now().AddDate(1, 0, 0),
		AvailableQuantity: available,
	}
	f.rows[inv.ID] = inv
	return inv
}

func (f *fakeInventories) GetInventory(_ context.Context, id uuid.UUID) (*RemoteInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.rows[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "inventory_not_found", "inventory not found")
	}
	return inv, nil
}

func (f *fakeInventories) Reserve(_ context.Context, id uuid.UUID, delta int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reserveCall{inventoryID: id, delta: delta})
	if delta < 0 {
		return f.releaseErr
	}
	return f.failOn[id]
}

type fakeOrdersStore struct {
	mu     sync.Mutex
	orders []*Order
	err    error
}

func (f *fakeOrdersStore) Create(_ context.Context, order *Order) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrdersStore) Get(context.Context, uuid.UUID) (*Order, error) {
	return nil, apperr.New(apperr.NotFound, "order_not_found", "order not found")
}

func (f *fakeOrdersStore) List(context.Context, OrderFilter, paging.Params) ([]*Order, int, error) {
	return nil, 0, nil
}

type publishedEvent struct {
	eventType string
	payload   map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, payload any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, _ := payload.(map[string]any)
	f.events = append(f.events, publishedEvent{eventType: eventType, payload: m})
	return uuid.NewString()
}

type pipelineFixture struct {
	service     *Service
	customers   *fakeCustomers
	sellers     *fakeSellers
	inventories *fakeInventories
	store       *fakeOrdersStore
	publisher   *fakePublisher
}

func newPipeline() *pipelineFixture {
	f := &pipelineFixture{
		customers: &fakeCustomers{customer: &Customer{
			ID:              uuid.New(),
			NIT:             "900123456-1",
			InstitutionName: "Clinica del Norte",
			Address:         "Cra 7 # 12-34",
			City:            "Bogota",
			Country:         "CO",
		}},
		sellers:     &fakeSellers{seller: &Seller{ID: uuid.New(), Name: "Laura Rincon"}},
		inventories: newFakeInventories(),
		store:       &fakeOrdersStore{},
		publisher:   &fakePublisher{},
	}
	f.service = NewService(f.store, f.customers, f.sellers, f.inventories,
		f.publisher, nil, slog.New(slog.DiscardHandler), testBusinessMetrics)
	return f
}

func clientAppInput(items ...OrderItemInput) CreateOrderInput {
	return CreateOrderInput{
		CustomerID:     uuid.New(),
		CreationMethod: MethodClientApp,
		Items:          items,
	}
}

func TestCreateOrderPricing(t *testing.T) {
	f := newPipeline()
	inv := f.inventories.add("10.00", 100)

	order, err := f.service.CreateOrder(context.Background(),
		clientAppInput(OrderItemInput{InventoryID: inv.ID, Quantity: 3}))
	require.NoError(t, err)

	// 10.00 * 1.30 = 13.00; 3 * 13.00 = 39.00
	require.Len(t, order.Items, 1)
	assert.Equal(t, "13.00", order.Items[0].UnitPrice)
	assert.Equal(t, "39.00", order.Items[0].TotalPrice)
	assert.Equal(t, "39.00", order.TotalAmount)
	assert.Equal(t, inv.WarehouseID.String(), order.Items[0].WarehouseID)
}

func TestCreateOrderBankersRounding(t *testing.T) {
	f := newPipeline()
	// 1.25 * 1.30 = 1.625 -> banker's rounding to even gives 1.62
	invA := f.inventories.add("1.25", 100)
	// 1.35 * 1.30 = 1.755 -> 1.76
	invB := f.inventories.add("1.35", 100)

	order, err := f.service.CreateOrder(context.Background(), clientAppInput(
		OrderItemInput{InventoryID: invA.ID, Quantity: 1},
		OrderItemInput{InventoryID: invB.ID, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, "1.62", order.Items[0].UnitPrice)
	assert.Equal(t, "1.76", order.Items[1].UnitPrice)
	assert.Equal(t, "3.38", order.TotalAmount)
}

func TestCreateOrderTotalIsSumOfItems(t *testing.T) {
	f := newPipeline()
	invA := f.inventories.add("7.13", 100)
	invB := f.inventories.add("0.99", 100)
	invC := f.inventories.add("1250.50", 100)

	order, err := f.service.CreateOrder(context.Background(), clientAppInput(
		OrderItemInput{InventoryID: invA.ID, Quantity: 7},
		OrderItemInput{InventoryID: invB.ID, Quantity: 13},
		OrderItemInput{InventoryID: invC.ID, Quantity: 2},
	))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range order.Items {
		itemTotal := decimal.RequireFromString(item.TotalPrice)
		unit := decimal.RequireFromString(item.UnitPrice)
		qty := decimal.NewFromInt(int64(item.Quantity))
		assert.True(t, itemTotal.Equal(unit.Mul(qty)),
			"item total %s != %s * %d", item.TotalPrice, item.UnitPrice, item.Quantity)
		sum = sum.Add(itemTotal)
	}
	assert.True(t, decimal.RequireFromString(order.TotalAmount).Equal(sum))
}

func TestCreateOrderMethodInvariants(t *testing.T) {
	sellerID := uuid.New()
	visitID := uuid.New()

	cases := []struct {
		name    string
		method  CreationMethod
		seller  *uuid.UUID
		visit   *uuid.UUID
		wantErr bool
	}{
		{"seller visit complete", MethodSellerVisit, &sellerID, &visitID, false},
		{"seller visit without visit", MethodSellerVisit, &sellerID, nil, true},
		{"seller visit without seller", MethodSellerVisit, nil, &visitID, true},
		{"seller app without visit", MethodSellerApp, &sellerID, nil, false},
		{"seller app with visit", MethodSellerApp, &sellerID, &visitID, false},
		{"seller app without seller", MethodSellerApp, nil, nil, true},
		{"client app clean", MethodClientApp, nil, nil, false},
		{"client app with seller", MethodClientApp, &sellerID, nil, true},
		{"client app with visit", MethodClientApp, nil, &visitID, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPipeline()
			inv := f.inventories.add("5.00", 100)

			in := CreateOrderInput{
				CustomerID:     uuid.New(),
				SellerID:       tc.seller,
				VisitID:        tc.visit,
				CreationMethod: tc.method,
				Items:          []OrderItemInput{{InventoryID: inv.ID, Quantity: 1}},
			}
			_, err := f.service.CreateOrder(context.Background(), in)
			if tc.wantErr {
				assert.True(t, apperr.IsKind(err, apperr.ValidationRejected), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateOrderCustomerNotFound(t *testing.T) {
	f := newPipeline()
	f.customers.customer = nil
	f.customers.err = apperr.New(apperr.NotFound, "customer_not_found", "customer not found")
	inv := f.inventories.add("5.00", 100)

	_, err := f.service.CreateOrder(context.Background(),
		clientAppInput(OrderItemInput{InventoryID: inv.ID, Quantity: 1}))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Empty(t, f.inventories.calls, "no reservation before validation completes")
}

func TestCreateOrderVisitNotFound(t *testing.T) {
	f := newPipeline()
	f.sellers.visitErr = apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	inv := f.inventories.add("5.00", 100)
	sellerID := uuid.New()
	visitID := uuid.New()

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:     uuid.New(),
		SellerID:       &sellerID,
		VisitID:        &visitID,
		CreationMethod: MethodSellerVisit,
		Items:          []OrderItemInput{{InventoryID: inv.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Equal(t, "visit_not_found", apperr.From(err).Code)
	assert.Empty(t, f.inventories.calls, "no reservation for a dangling visit reference")
	assert.Empty(t, f.store.orders)
}

func TestCreateOrderCompensatesOnPartialFailure(t *testing.T) {
	f := newPipeline()
	invA := f.inventories.add("10.00", 100)
	invB := f.inventories.add("20.00", 3)
	f.inventories.failOn[invB.ID] = apperr.New(apperr.Conflict, "insufficient_inventory",
		"not enough available stock").WithDetails(map[string]any{"available": 3})

	_, err := f.service.CreateOrder(context.Background(), clientAppInput(
		OrderItemInput{InventoryID: invA.ID, Quantity: 2},
		OrderItemInput{InventoryID: invB.ID, Quantity: 5},
	))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))

	// Reserve A (+2), reserve B fails (+5), release A (-2). Exactly one
	// compensating call, symmetric to the successful reservation.
	require.Len(t, f.inventories.calls, 3)
	assert.Equal(t, reserveCall{invA.ID, 2}, f.inventories.calls[0])
	assert.Equal(t, reserveCall{invB.ID, 5}, f.inventories.calls[1])
	assert.Equal(t, reserveCall{invA.ID, -2}, f.inventories.calls[2])

	assert.Empty(t, f.store.orders, "order must not be persisted")
	assert.Empty(t, f.publisher.events, "no event for a failed order")
}

func TestCreateOrderReservationLeak(t *testing.T) {
	f := newPipeline()
	invA := f.inventories.add("10.00", 100)
	invB := f.inventories.add("20.00", 0)
	f.inventories.failOn[invB.ID] = apperr.New(apperr.Conflict, "insufficient_inventory", "no stock")
	f.inventories.releaseErr = apperr.New(apperr.Unreachable, "downstream_unreachable", "inventory is unreachable")

	_, err := f.service.CreateOrder(context.Background(), clientAppInput(
		OrderItemInput{InventoryID: invA.ID, Quantity: 2},
		OrderItemInput{InventoryID: invB.ID, Quantity: 5},
	))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Internal))
	assert.Empty(t, f.store.orders)
}

func TestCreateOrderCompensationSurvivesCancellation(t *testing.T) {
	f := newPipeline()
	invA := f.inventories.add("10.00", 100)
	invB := f.inventories.add("20.00", 0)
	f.inventories.failOn[invB.ID] = apperr.New(apperr.Conflict, "insufficient_inventory", "no stock")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.CreateOrder(ctx, clientAppInput(
		OrderItemInput{InventoryID: invA.ID, Quantity: 2},
		OrderItemInput{InventoryID: invB.ID, Quantity: 5},
	))
	require.Error(t, err)

	var sawRelease bool
	for _, call := range f.inventories.calls {
		if call.delta == -2 && call.inventoryID == invA.ID {
			sawRelease = true
		}
	}
	assert.True(t, sawRelease, "release must run despite cancelled context")
}

func TestCreateOrderPublishesEvent(t *testing.T) {
	f := newPipeline()
	inv := f.inventories.add("10.00", 100)
	sellerID := uuid.New()
	visitID := uuid.New()

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:     uuid.New(),
		SellerID:       &sellerID,
		VisitID:        &visitID,
		CreationMethod: MethodSellerVisit,
		Items:          []OrderItemInput{{InventoryID: inv.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, "order_created", event.eventType)
	assert.Equal(t, order.ID, event.payload["order_id"])
	assert.Equal(t, order.TotalAmount, event.payload["monto_total"])
	assert.Equal(t, MethodSellerVisit, event.payload["metodo_creacion"])
	assert.Equal(t, sellerID.String(), event.payload["seller_id"])
	assert.Equal(t, "Laura Rincon", order.SellerName)
}

func TestCreateOrderDeliveryDefaultsToCustomerAddress(t *testing.T) {
	f := newPipeline()
	inv := f.inventories.add("10.00", 100)

	order, err := f.service.CreateOrder(context.Background(),
		clientAppInput(OrderItemInput{InventoryID: inv.ID, Quantity: 1}))
	require.NoError(t, err)

	assert.Equal(t, "Cra 7 # 12-34", order.DeliveryAddress)
	assert.Equal(t, "Bogota", order.DeliveryCity)
	assert.Equal(t, "CO", order.DeliveryCountry)
	assert.Equal(t, "Clinica del Norte", order.CustomerName)
}
