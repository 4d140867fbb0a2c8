package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/web"
)

// clientHandler is the surface the institutional client app talks to. Every
// operation resolves the caller's subject to a client record first; the
// domain id never comes from the request.
type clientHandler struct {
	downstream *Downstream
	logger     *slog.Logger
}

func (h *clientHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/client/register", h.handleRegister)
	mux.HandleFunc("GET /api/client/profile", h.handleProfile)
	mux.HandleFunc("POST /api/client/orders", h.handleCreateOrder)
	mux.HandleFunc("GET /api/client/orders", h.handleListOrders)
	mux.HandleFunc("GET /api/client/orders/{orderID}", h.handleGetOrder)
}

type registerClientRequest struct {
	NIT             string `json:"nit"`
	InstitutionName string `json:"institution_name"`
	ContactName     string `json:"contact_name"`
	ContactPhone    string `json:"contact_phone"`
	ContactEmail    string `json:"contact_email"`
	Address         string `json:"address"`
	City            string `json:"city"`
	Country         string `json:"country"`
}

func (h *clientHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r, RoleClient)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var req registerClientRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var created passthrough
	err = h.downstream.Clients.Post(r.Context(), "/clients", map[string]any{
		"external_auth_id": principal.Subject,
		"nit":              req.NIT,
		"institution_name": req.InstitutionName,
		"contact_name":     req.ContactName,
		"contact_phone":    req.ContactPhone,
		"contact_email":    req.ContactEmail,
		"address":          req.Address,
		"city":             req.City,
		"country":          req.Country,
	}, &created)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, created)
}

func (h *clientHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r, RoleClient)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var profile passthrough
	if err := h.downstream.Clients.Get(r.Context(),
		"/clients/by-auth/"+url.PathEscape(principal.Subject), nil, &profile); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, profile)
}

type clientOrderRequest struct {
	Items           json.RawMessage `json:"items"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	DeliveryCity    string          `json:"delivery_city,omitempty"`
	DeliveryCountry string          `json:"delivery_country,omitempty"`
}

func (h *clientHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r, RoleClient)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var req clientOrderRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if len(req.Items) == 0 {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_fields", "items are required"))
		return
	}

	client, err := h.downstream.clientBySubject(r.Context(), principal.Subject)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var order passthrough
	err = h.downstream.Orders.Post(r.Context(), "/orders", map[string]any{
		"customer_id":      client.ID,
		"metodo_creacion":  "CLIENT_APP",
		"items":            req.Items,
		"delivery_address": req.DeliveryAddress,
		"delivery_city":    req.DeliveryCity,
		"delivery_country": req.DeliveryCountry,
	}, &order)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("client order created",
		slog.String("client_id", client.ID.String()),
	)
	web.WriteJSON(w, http.StatusCreated, order)
}

func (h *clientHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r, RoleClient)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	client, err := h.downstream.clientBySubject(r.Context(), principal.Subject)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	query := pageQuery(r.URL.Query())
	query.Set("customer_id", client.ID.String())

	var orders passthrough
	if err := h.downstream.Orders.Get(r.Context(), "/orders", query, &orders); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, orders)
}

func (h *clientHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r, RoleClient)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	client, err := h.downstream.clientBySubject(r.Context(), principal.Subject)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var order passthrough
	if err := h.downstream.Orders.Get(r.Context(),
		"/orders/"+url.PathEscape(r.PathValue("orderID")), nil, &order); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	// Another client's order is indistinguishable from a missing one.
	var owner struct {
		CustomerID string `json:"customer_id"`
	}
	if json.Unmarshal(order, &owner) != nil || owner.CustomerID != client.ID.String() {
		web.WriteError(w, h.logger, apperr.New(apperr.NotFound,
			"order_not_found", "order not found"))
		return
	}
	web.WriteJSON(w, http.StatusOK, order)
}
