package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/web"
)

// webHandler is the back-office surface: order search, logistics views and
// manual route generation.
type webHandler struct {
	downstream *Downstream
	logger     *slog.Logger
}

func (h *webHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/web/orders", h.handleListOrders)
	mux.HandleFunc("GET /api/web/orders/{orderID}", h.handleGetOrder)

	mux.HandleFunc("GET /api/web/routes", h.handleListRoutes)
	mux.HandleFunc("GET /api/web/routes/{routeID}", h.handleGetRoute)
	mux.HandleFunc("POST /api/web/routes/generate", h.handleGenerateRoutes)

	mux.HandleFunc("POST /api/web/sellers", h.handleCreateSeller)
	mux.HandleFunc("POST /api/web/sales-plans", h.handleCreatePlan)
}

func (h *webHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	customerID := r.URL.Query().Get("customer_id")
	sellerID := r.URL.Query().Get("seller_id")
	if customerID != "" && sellerID != "" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"conflicting_filters", "Only one filter allowed at a time"))
		return
	}

	query := pageQuery(r.URL.Query())
	if customerID != "" {
		query.Set("customer_id", customerID)
	}
	if sellerID != "" {
		query.Set("seller_id", sellerID)
	}

	var orders passthrough
	if err := h.downstream.Orders.Get(r.Context(), "/orders", query, &orders); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, orders)
}

// handleGetOrder returns the order together with the customer's current
// client record, so the back office sees contact data without a second
// round trip.
func (h *webHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var order passthrough
	if err := h.downstream.Orders.Get(r.Context(),
		"/orders/"+url.PathEscape(r.PathValue("orderID")), nil, &order); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	response := map[string]any{"order": order}

	var owner struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.Unmarshal(order, &owner); err == nil && owner.CustomerID != "" {
		var client passthrough
		if err := h.downstream.Clients.Get(r.Context(),
			"/clients/"+url.PathEscape(owner.CustomerID), nil, &client); err == nil {
			response["client"] = client
		} else {
			h.logger.Warn("failed to enrich order with client",
				slog.String("customer_id", owner.CustomerID),
				slog.Any("error", err),
			)
		}
	}

	web.WriteJSON(w, http.StatusOK, response)
}

func (h *webHandler) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	query := pageQuery(r.URL.Query())
	if date := r.URL.Query().Get("date"); date != "" {
		query.Set("date", date)
	}

	var routes passthrough
	if err := h.downstream.Delivery.Get(r.Context(), "/routes", query, &routes); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, routes)
}

func (h *webHandler) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var route passthrough
	if err := h.downstream.Delivery.Get(r.Context(),
		"/routes/"+url.PathEscape(r.PathValue("routeID")), nil, &route); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, route)
}

func (h *webHandler) handleGenerateRoutes(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var result passthrough
	if err := h.downstream.Delivery.Post(r.Context(), "/routes/generate", nil, &result); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("route generation triggered")
	web.WriteJSON(w, http.StatusCreated, result)
}

func (h *webHandler) handleCreateSeller(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var body json.RawMessage
	if err := web.DecodeJSON(r, &body); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var seller passthrough
	if err := h.downstream.Sellers.Post(r.Context(), "/sellers", body, &seller); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, seller)
}

func (h *webHandler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	if _, err := requirePrincipal(r, RoleWeb); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var body json.RawMessage
	if err := web.DecodeJSON(r, &body); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var plan passthrough
	if err := h.downstream.Sellers.Post(r.Context(), "/sales-plans", body, &plan); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, plan)
}
