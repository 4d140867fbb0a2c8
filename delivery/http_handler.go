package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/paging"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/web"
)

type handler struct {
	store   DeliveryStore
	planner *RoutePlanner
	logger  *slog.Logger
}

func NewHandler(store DeliveryStore, planner *RoutePlanner, logger *slog.Logger) *handler {
	return &handler{store: store, planner: planner, logger: logger}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /shipments", h.handleListShipments)
	mux.HandleFunc("GET /shipments/{shipmentID}", h.handleGetShipment)
	mux.HandleFunc("PATCH /shipments/{shipmentID}/status", h.handleShipmentStatus)

	mux.HandleFunc("POST /routes/generate", h.handleGenerateRoutes)
	mux.HandleFunc("GET /routes", h.handleListRoutes)
	mux.HandleFunc("GET /routes/{routeID}", h.handleGetRoute)

	mux.HandleFunc("POST /vehicles", h.handleCreateVehicle)
	mux.HandleFunc("GET /vehicles", h.handleListVehicles)
}

func (h *handler) handleListShipments(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var status *ShipmentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := ShipmentStatus(raw)
		switch s {
		case ShipmentPending, ShipmentAssigned, ShipmentInTransit, ShipmentDelivered:
			status = &s
		default:
			web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
				"invalid_status", "unknown shipment status"))
			return
		}
	}

	shipments, total, err := h.store.ListShipments(r.Context(), status, params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(shipments, total, params))
}

func (h *handler) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("shipmentID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_shipment_id", "shipment id must be a UUID"))
		return
	}

	shipment, err := h.store.GetShipment(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, shipment)
}

type shipmentStatusRequest struct {
	Status ShipmentStatus `json:"status"`
}

func (h *handler) handleShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("shipmentID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_shipment_id", "shipment id must be a UUID"))
		return
	}

	var req shipmentStatusRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if req.Status == "" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_fields", "status is required"))
		return
	}

	shipment, err := h.store.UpdateShipmentStatus(r.Context(), id, req.Status)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("shipment status updated",
		slog.String("shipment_id", id.String()),
		slog.String("status", string(req.Status)),
	)
	web.WriteJSON(w, http.StatusOK, shipment)
}

func (h *handler) handleGenerateRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.planner.GenerateRoutes(r.Context())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, map[string]any{
		"routes_generated": len(routes),
		"routes":           routes,
	})
}

func (h *handler) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
				"invalid_date", "date must be YYYY-MM-DD"))
			return
		}
		date = &parsed
	}

	routes, total, err := h.store.ListRoutes(r.Context(), date, params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(routes, total, params))
}

func (h *handler) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("routeID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_route_id", "route id must be a UUID"))
		return
	}

	route, err := h.store.GetRoute(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, route)
}

func (h *handler) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var in CreateVehicleInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if in.Plate == "" || in.Capacity <= 0 {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_fields", "plate and a positive capacity are required"))
		return
	}

	vehicle, err := h.store.CreateVehicle(r.Context(), in)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, vehicle)
}

func (h *handler) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	vehicles, total, err := h.store.ListVehicles(r.Context(), params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(vehicles, total, params))
}
