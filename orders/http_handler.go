package main

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/web"
)

type handler struct {
	service *Service
	store   OrdersStore
	logger  *slog.Logger
}

func NewHandler(service *Service, store OrdersStore, logger *slog.Logger) *handler {
	return &handler{service: service, store: store, logger: logger}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.handleCreate)
	mux.HandleFunc("GET /orders", h.handleList)
	mux.HandleFunc("GET /orders/{orderID}", h.handleGet)
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateOrderInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.String("customer_id", order.CustomerID),
		slog.String("total", order.TotalAmount),
	)
	web.WriteJSON(w, http.StatusCreated, order)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("orderID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_order_id", "order id must be a UUID"))
		return
	}

	order, err := h.store.Get(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, order)
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var filter OrderFilter
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
				"invalid_customer_id", "customer_id must be a UUID"))
			return
		}
		filter.CustomerID = &id
	}
	if raw := r.URL.Query().Get("seller_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
				"invalid_seller_id", "seller_id must be a UUID"))
			return
		}
		filter.SellerID = &id
	}

	orders, total, err := h.store.List(r.Context(), filter, params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(orders, total, params))
}
