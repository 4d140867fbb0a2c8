package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/ledger"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
)

type planKey struct {
	sellerID uuid.UUID
	period   string
}

type fakePlansStore struct {
	mu          sync.Mutex
	accumulated map[planKey]decimal.Decimal
	processed   map[string]bool
}

func newFakePlansStore() *fakePlansStore {
	return &fakePlansStore{
		accumulated: make(map[planKey]decimal.Decimal),
		processed:   make(map[string]bool),
	}
}

func (f *fakePlansStore) addPlan(sellerID uuid.UUID, period string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accumulated[planKey{sellerID, period}] = decimal.Zero
}

func (f *fakePlansStore) CreatePlan(context.Context, CreateSalesPlanInput) (*SalesPlan, error) {
	return nil, nil
}

func (f *fakePlansStore) ListPlans(context.Context, *uuid.UUID, paging.Params) ([]*SalesPlan, int, error) {
	return nil, 0, nil
}

func (f *fakePlansStore) CreditOrder(_ context.Context, eventID, _, _ string, sellerID uuid.UUID, period string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return ledger.ErrAlreadyProcessed
	}
	key := planKey{sellerID, period}
	current, ok := f.accumulated[key]
	if !ok {
		return ErrMissingPlan
	}
	f.accumulated[key] = current.Add(amount)
	f.processed[eventID] = true
	return nil
}

func (f *fakePlansStore) MarkProcessed(_ context.Context, eventID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return ledger.ErrAlreadyProcessed
	}
	f.processed[eventID] = true
	return nil
}

func newTestProjector(plans PlansStore) *projector {
	return newProjector(plans, slog.New(slog.DiscardHandler),
		metrics.NewEventMetrics("sellers_test_"+uuid.NewString()[:8]))
}

func orderEvent(t *testing.T, eventID string, sellerID *uuid.UUID, monto string) (broker.Envelope, []byte) {
	t.Helper()
	payload := map[string]any{
		"event_id":    eventID,
		"event_type":  broker.OrderCreatedEvent,
		"order_id":    uuid.NewString(),
		"monto_total": monto,
	}
	if sellerID != nil {
		payload["seller_id"] = sellerID.String()
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return broker.Envelope{EventID: eventID, EventType: broker.OrderCreatedEvent}, body
}

func TestProjectorCreditsPlanOnce(t *testing.T) {
	plans := newFakePlansStore()
	p := newTestProjector(plans)
	sellerID := uuid.New()
	period := QuarterCode(time.Now())
	plans.addPlan(sellerID, period)

	env, body := orderEvent(t, uuid.NewString(), &sellerID, "1500.50")

	require.NoError(t, p.handleOrderCreated(context.Background(), env, body))
	// Redeliveries of the same event id must not credit again.
	require.NoError(t, p.handleOrderCreated(context.Background(), env, body))
	require.NoError(t, p.handleOrderCreated(context.Background(), env, body))

	got := plans.accumulated[planKey{sellerID, period}]
	assert.True(t, got.Equal(decimal.RequireFromString("1500.50")), "got %s", got)
}

func TestProjectorDistinctEventsAccumulate(t *testing.T) {
	plans := newFakePlansStore()
	p := newTestProjector(plans)
	sellerID := uuid.New()
	period := QuarterCode(time.Now())
	plans.addPlan(sellerID, period)

	for _, monto := range []string{"100.00", "250.25"} {
		env, body := orderEvent(t, uuid.NewString(), &sellerID, monto)
		require.NoError(t, p.handleOrderCreated(context.Background(), env, body))
	}

	got := plans.accumulated[planKey{sellerID, period}]
	assert.True(t, got.Equal(decimal.RequireFromString("350.25")), "got %s", got)
}

func TestProjectorSellerlessOrderOnlyMarks(t *testing.T) {
	plans := newFakePlansStore()
	p := newTestProjector(plans)

	eventID := uuid.NewString()
	env, body := orderEvent(t, eventID, nil, "99.99")

	require.NoError(t, p.handleOrderCreated(context.Background(), env, body))
	assert.True(t, plans.processed[eventID])
	assert.Empty(t, plans.accumulated)

	// Duplicate of a marked event is also fine.
	require.NoError(t, p.handleOrderCreated(context.Background(), env, body))
}

func TestProjectorMissingPlanRetries(t *testing.T) {
	plans := newFakePlansStore()
	p := newTestProjector(plans)
	sellerID := uuid.New()

	eventID := uuid.NewString()
	env, body := orderEvent(t, eventID, &sellerID, "10.00")

	err := p.handleOrderCreated(context.Background(), env, body)
	require.Error(t, err, "missing plan must be retryable")
	assert.False(t, plans.processed[eventID], "event must stay unprocessed")

	// Once the plan exists, the redelivered event credits normally.
	plans.addPlan(sellerID, QuarterCode(time.Now()))
	require.NoError(t, p.handleOrderCreated(context.Background(), env, body))
	got := plans.accumulated[planKey{sellerID, QuarterCode(time.Now())}]
	assert.True(t, got.Equal(decimal.RequireFromString("10.00")))
}

func TestProjectorMalformedDropped(t *testing.T) {
	plans := newFakePlansStore()
	p := newTestProjector(plans)

	env := broker.Envelope{EventID: uuid.NewString(), EventType: broker.OrderCreatedEvent}
	assert.NoError(t, p.handleOrderCreated(context.Background(), env, []byte(`{"monto_total":12}`)))
	assert.NoError(t, p.handleOrderCreated(context.Background(), env,
		[]byte(`{"seller_id":"not-a-uuid","monto_total":"10.00"}`)))
	assert.NoError(t, p.handleOrderCreated(context.Background(), env,
		[]byte(`{"seller_id":"`+uuid.NewString()+`","monto_total":"diez"}`)))
}

func TestQuarterCode(t *testing.T) {
	cases := []struct {
		when time.Time
		want string
	}{
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "Q1-2025"},
		{time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC), "Q1-2025"},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "Q2-2025"},
		{time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC), "Q4-2025"},
		{time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), "Q4-2025"},
		// The UTC quarter is what counts, not the local one.
		{time.Date(2026, 1, 1, 0, 30, 0, 0, time.FixedZone("UTC+5", 5*3600)), "Q4-2025"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QuarterCode(tc.when))
	}
}
