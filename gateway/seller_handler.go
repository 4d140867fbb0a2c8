package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/web"
)

// sellerHandler is the surface the field sales app talks to. The seller's
// domain id always comes from the subject lookup, so a seller can only act
// as themselves.
type sellerHandler struct {
	downstream *Downstream
	logger     *slog.Logger
}

func (h *sellerHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/seller/profile", h.handleProfile)
	mux.HandleFunc("GET /api/seller/clients", h.handleListClients)

	mux.HandleFunc("POST /api/seller/visits", h.handleCreateVisit)
	mux.HandleFunc("GET /api/seller/visits", h.handleListVisits)
	mux.HandleFunc("PATCH /api/seller/visits/{visitID}/status", h.handleVisitStatus)
	mux.HandleFunc("POST /api/seller/visits/{visitID}/evidence/upload-url", h.handleEvidenceUploadURL)
	mux.HandleFunc("PATCH /api/seller/visits/{visitID}/evidence", h.handleStoreEvidence)

	mux.HandleFunc("POST /api/seller/orders", h.handleCreateOrder)
	mux.HandleFunc("GET /api/seller/orders", h.handleListOrders)
	mux.HandleFunc("GET /api/seller/sales-plans", h.handleListPlans)
}

func (h *sellerHandler) resolve(r *http.Request) (*sellerIdentity, error) {
	principal, err := requirePrincipal(r, RoleSeller)
	if err != nil {
		return nil, err
	}
	return h.downstream.sellerBySubject(r.Context(), principal.Subject)
}

func (h *sellerHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := requirePrincipal(r, RoleSeller)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var profile passthrough
	if err := h.downstream.Sellers.Get(r.Context(),
		"/sellers/by-auth/"+url.PathEscape(principal.Subject), nil, &profile); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, profile)
}

func (h *sellerHandler) handleListClients(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	query := pageQuery(r.URL.Query())
	query.Set("seller_id", seller.ID.String())

	var clients passthrough
	if err := h.downstream.Clients.Get(r.Context(), "/clients", query, &clients); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, clients)
}

type sellerVisitRequest struct {
	ClientID    uuid.UUID `json:"client_id"`
	FechaVisita time.Time `json:"fecha_visita"`
	Notes       string    `json:"notes,omitempty"`
}

func (h *sellerHandler) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var req sellerVisitRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var visit passthrough
	err = h.downstream.Sellers.Post(r.Context(), "/visits", map[string]any{
		"seller_id":    seller.ID,
		"client_id":    req.ClientID,
		"fecha_visita": req.FechaVisita,
		"notes":        req.Notes,
	}, &visit)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("visit created",
		slog.String("seller_id", seller.ID.String()),
		slog.String("client_id", req.ClientID.String()),
	)
	web.WriteJSON(w, http.StatusCreated, visit)
}

func (h *sellerHandler) handleListVisits(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	query := pageQuery(r.URL.Query())
	query.Set("seller_id", seller.ID.String())

	var visits passthrough
	if err := h.downstream.Sellers.Get(r.Context(), "/visits", query, &visits); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, visits)
}

// ownVisit fetches the visit and checks it belongs to the caller before any
// mutation goes through.
func (h *sellerHandler) ownVisit(r *http.Request, seller *sellerIdentity, visitID string) error {
	var visit passthrough
	if err := h.downstream.Sellers.Get(r.Context(),
		"/visits/"+url.PathEscape(visitID), nil, &visit); err != nil {
		return err
	}
	var owner struct {
		SellerID string `json:"seller_id"`
	}
	if json.Unmarshal(visit, &owner) != nil || owner.SellerID != seller.ID.String() {
		return apperr.New(apperr.NotFound, "visit_not_found", "visit not found")
	}
	return nil
}

func (h *sellerHandler) handleVisitStatus(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	visitID := r.PathValue("visitID")
	if err := h.ownVisit(r, seller, visitID); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var body json.RawMessage
	if err := web.DecodeJSON(r, &body); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var visit passthrough
	if err := h.downstream.Sellers.Patch(r.Context(),
		"/visits/"+url.PathEscape(visitID)+"/status", body, &visit); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, visit)
}

func (h *sellerHandler) handleEvidenceUploadURL(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	visitID := r.PathValue("visitID")
	if err := h.ownVisit(r, seller, visitID); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var body json.RawMessage
	if err := web.DecodeJSON(r, &body); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var upload passthrough
	if err := h.downstream.Sellers.Post(r.Context(),
		"/visits/"+url.PathEscape(visitID)+"/evidence/upload-url", body, &upload); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, upload)
}

func (h *sellerHandler) handleStoreEvidence(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	visitID := r.PathValue("visitID")
	if err := h.ownVisit(r, seller, visitID); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var body json.RawMessage
	if err := web.DecodeJSON(r, &body); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var visit passthrough
	if err := h.downstream.Sellers.Patch(r.Context(),
		"/visits/"+url.PathEscape(visitID)+"/evidence", body, &visit); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, visit)
}

type sellerOrderRequest struct {
	CustomerID      uuid.UUID       `json:"customer_id"`
	VisitID         *uuid.UUID      `json:"visit_id,omitempty"`
	CreationMethod  string          `json:"metodo_creacion"`
	Items           json.RawMessage `json:"items"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	DeliveryCity    string          `json:"delivery_city,omitempty"`
	DeliveryCountry string          `json:"delivery_country,omitempty"`
}

func (h *sellerHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var req sellerOrderRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if req.CreationMethod != "SELLER_APP" && req.CreationMethod != "SELLER_VISIT" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_creation_method",
			"metodo_creacion must be SELLER_APP or SELLER_VISIT"))
		return
	}

	var order passthrough
	err = h.downstream.Orders.Post(r.Context(), "/orders", map[string]any{
		"customer_id":      req.CustomerID,
		"seller_id":        seller.ID,
		"visit_id":         req.VisitID,
		"metodo_creacion":  req.CreationMethod,
		"items":            req.Items,
		"delivery_address": req.DeliveryAddress,
		"delivery_city":    req.DeliveryCity,
		"delivery_country": req.DeliveryCountry,
	}, &order)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("seller order created",
		slog.String("seller_id", seller.ID.String()),
		slog.String("customer_id", req.CustomerID.String()),
	)
	web.WriteJSON(w, http.StatusCreated, order)
}

func (h *sellerHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	query := pageQuery(r.URL.Query())
	query.Set("seller_id", seller.ID.String())

	var orders passthrough
	if err := h.downstream.Orders.Get(r.Context(), "/orders", query, &orders); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, orders)
}

func (h *sellerHandler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	seller, err := h.resolve(r)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	query := pageQuery(r.URL.Query())
	query.Set("seller_id", seller.ID.String())

	var plans passthrough
	if err := h.downstream.Sellers.Get(r.Context(), "/sales-plans", query, &plans); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, plans)
}
