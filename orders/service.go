package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/broker"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/metrics"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/realtime"
)

// markup is applied to every inventory base price before rounding to two
// decimal places with banker's rounding.
var markup = decimal.NewFromFloat(1.30)

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) string
}

// Service runs the order creation pipeline: snapshot the customer, price the
// items, reserve stock item by item, persist the aggregate, emit the event.
// Reservation is the only step with side effects outside this service, so it
// is also the only step that gets compensated on failure.
type Service struct {
	store       OrdersStore
	customers   customersAPI
	sellers     sellersAPI
	inventories inventoryAPI
	publisher   eventPublisher
	notifier    *realtime.Notifier
	logger      *slog.Logger
	business    *metrics.BusinessMetrics
}

func NewService(
	store OrdersStore,
	customers customersAPI,
	sellers sellersAPI,
	inventories inventoryAPI,
	publisher eventPublisher,
	notifier *realtime.Notifier,
	logger *slog.Logger,
	business *metrics.BusinessMetrics,
) *Service {
	return &Service{
		store:       store,
		customers:   customers,
		sellers:     sellers,
		inventories: inventories,
		publisher:   publisher,
		notifier:    notifier,
		logger:      logger,
		business:    business,
	}
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	customer, err := s.customers.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	var seller *Seller
	if in.SellerID != nil {
		seller, err = s.sellers.GetSeller(ctx, *in.SellerID)
		if err != nil {
			return nil, err
		}
	}

	// The referenced visit only needs to exist; SCHEDULED and COMPLETED are
	// both acceptable states.
	if in.VisitID != nil {
		if _, err := s.sellers.GetVisit(ctx, *in.VisitID); err != nil {
			return nil, err
		}
	}

	inventories, err := s.fetchInventories(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	order := s.buildOrder(orderID, in, customer, seller, inventories)

	if err := s.reserveAll(ctx, orderID.String(), in.Items); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, order); err != nil {
		// The order document never existed, so the reservations must not
		// survive either.
		s.releaseThrough(context.WithoutCancel(ctx), orderID.String(), in.Items, len(in.Items))
		return nil, err
	}

	s.business.OrdersCreated.Inc()
	s.publishOrderCreated(ctx, order)
	s.notifier.Publish(ctx, "clients:"+order.CustomerID, "order_created", map[string]any{
		"order_id":    order.ID,
		"monto_total": order.TotalAmount,
	})
	return order, nil
}

func validateInput(in CreateOrderInput) error {
	if !in.CreationMethod.Valid() {
		return apperr.New(apperr.ValidationRejected, "invalid_creation_method",
			"metodo_creacion must be one of SELLER_VISIT, CLIENT_APP, SELLER_APP")
	}
	if in.CustomerID == uuid.Nil {
		return apperr.New(apperr.ValidationRejected, "missing_customer_id",
			"customer_id is required")
	}
	if len(in.Items) == 0 {
		return apperr.New(apperr.ValidationRejected, "empty_items",
			"at least one item is required")
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return apperr.New(apperr.ValidationRejected, "invalid_quantity",
				"item quantity must be positive")
		}
		if item.InventoryID == uuid.Nil {
			return apperr.New(apperr.ValidationRejected, "missing_inventory_id",
				"every item needs an inventory_id")
		}
	}

	switch in.CreationMethod {
	case MethodSellerVisit:
		if in.SellerID == nil || in.VisitID == nil {
			return apperr.New(apperr.ValidationRejected, "missing_seller_context",
				"SELLER_VISIT orders require seller_id and visit_id")
		}
	case MethodSellerApp:
		if in.SellerID == nil {
			return apperr.New(apperr.ValidationRejected, "missing_seller_context",
				"SELLER_APP orders require seller_id")
		}
	case MethodClientApp:
		if in.SellerID != nil || in.VisitID != nil {
			return apperr.New(apperr.ValidationRejected, "unexpected_seller_context",
				"CLIENT_APP orders must not carry seller_id or visit_id")
		}
	}
	return nil
}

// fetchInventories resolves every line item concurrently; results keep the
// input order so later steps stay deterministic.
func (s *Service) fetchInventories(ctx context.Context, items []OrderItemInput) ([]*RemoteInventory, error) {
	inventories := make([]*RemoteInventory, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			inv, err := s.inventories.GetInventory(gctx, item.InventoryID)
			if err != nil {
				return err
			}
			inventories[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inventories, nil
}

func (s *Service) buildOrder(orderID uuid.UUID, in CreateOrderInput, customer *Customer, seller *Seller, inventories []*RemoteInventory) *Order {
	order := &Order{
		ID:              orderID.String(),
		CustomerID:      in.CustomerID.String(),
		CreationMethod:  in.CreationMethod,
		CustomerName:    customer.InstitutionName,
		CustomerNIT:     customer.NIT,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryCity:    in.DeliveryCity,
		DeliveryCountry: in.DeliveryCountry,
		CreatedAt:       time.Now().UTC(),
	}
	if order.DeliveryAddress == "" {
		order.DeliveryAddress = customer.Address
		order.DeliveryCity = customer.City
		order.DeliveryCountry = customer.Country
	}
	if in.SellerID != nil {
		id := in.SellerID.String()
		order.SellerID = &id
		order.SellerName = seller.Name
	}
	if in.VisitID != nil {
		id := in.VisitID.String()
		order.VisitID = &id
	}

	total := decimal.Zero
	for i, item := range in.Items {
		inv := inventories[i]
		unitPrice := inv.UnitPrice.Mul(markup).RoundBank(2)
		totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(totalPrice)

		order.Items = append(order.Items, OrderItem{
			ID:               uuid.NewString(),
			ProductID:        inv.ProductID.String(),
			InventoryID:      inv.ID.String(),
			WarehouseID:      inv.WarehouseID.String(),
			ProductName:      inv.ProductName,
			ProductSKU:       inv.ProductSKU,
			WarehouseName:    inv.WarehouseName,
			WarehouseCity:    inv.WarehouseCity,
			WarehouseCountry: inv.WarehouseCountry,
			BatchNumber:      inv.BatchNumber,
			ExpirationDate:   inv.ExpirationDate,
			Quantity:         item.Quantity,
			UnitPrice:        unitPrice.StringFixed(2),
			TotalPrice:       totalPrice.StringFixed(2),
		})
	}
	order.TotalAmount = total.StringFixed(2)
	return order
}

// reserveAll issues reservations strictly in item-list order. When item i
// fails, items 0..i-1 are released in reverse by symmetric negative deltas.
func (s *Service) reserveAll(ctx context.Context, orderID string, items []OrderItemInput) error {
	for i, item := range items {
		if err := s.inventories.Reserve(ctx, item.InventoryID, item.Quantity, orderID); err != nil {
			// Compensation must run even if the inbound request was
			// cancelled mid-pipeline.
			if leaked := s.releaseThrough(context.WithoutCancel(ctx), orderID, items, i); leaked {
				return apperr.Wrap(apperr.Internal, "partial_reservation_leak",
					"order aborted but some reservations could not be released", err)
			}
			return err
		}
	}
	return nil
}

// releaseThrough releases items[0:n] in reverse order and reports whether
// any release failed (a leaked reservation, operator-actionable).
func (s *Service) releaseThrough(ctx context.Context, orderID string, items []OrderItemInput, n int) bool {
	leaked := false
	for i := n - 1; i >= 0; i-- {
		item := items[i]
		if err := s.inventories.Reserve(ctx, item.InventoryID, -item.Quantity, orderID); err != nil {
			leaked = true
			s.business.ReservationLeaks.Inc()
			s.logger.Error("reservation release failed, stock leaked",
				slog.String("order_id", orderID),
				slog.String("inventory_id", item.InventoryID.String()),
				slog.Int("quantity", item.Quantity),
				slog.Any("error", err),
			)
		}
	}
	return leaked
}

func (s *Service) publishOrderCreated(ctx context.Context, order *Order) {
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"inventory_id": item.InventoryID,
			"quantity":     item.Quantity,
		})
	}

	payload := map[string]any{
		"order_id":         order.ID,
		"customer_id":      order.CustomerID,
		"monto_total":      order.TotalAmount,
		"metodo_creacion":  order.CreationMethod,
		"delivery_address": order.DeliveryAddress,
		"delivery_city":    order.DeliveryCity,
		"items":            items,
	}
	if order.SellerID != nil {
		payload["seller_id"] = *order.SellerID
	}

	s.publisher.Publish(ctx, broker.OrderCreatedEvent, payload)
}
