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
	store  InventoryStore
	logger *slog.Logger
}

func NewHandler(store InventoryStore, logger *slog.Logger) *handler {
	return &handler{store: store, logger: logger}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /inventories", h.handleList)
	mux.HandleFunc("GET /inventories/{inventoryID}", h.handleGet)
	mux.HandleFunc("PATCH /inventories/{inventoryID}/reserve", h.handleReserve)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("inventoryID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_inventory_id", "inventory id must be a UUID"))
		return
	}

	inv, err := h.store.Get(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, inv)
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	inventories, total, err := h.store.List(r.Context(), params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(inventories, total, params))
}

type reserveRequest struct {
	Quantity int    `json:"quantity"`
	OrderID  string `json:"order_id,omitempty"`
}

func (h *handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("inventoryID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_inventory_id", "inventory id must be a UUID"))
		return
	}

	var req reserveRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if req.Quantity == 0 {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_quantity", "quantity must be a non-zero signed integer"))
		return
	}

	inv, err := h.store.Reserve(r.Context(), id, req.Quantity)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("reservation delta applied",
		slog.String("inventory_id", id.String()),
		slog.Int("delta", req.Quantity),
		slog.String("order_id", req.OrderID),
	)
	web.WriteJSON(w, http.StatusOK, inv)
}
