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
	store  ClientsStore
	logger *slog.Logger
}

func NewHandler(store ClientsStore, logger *slog.Logger) *handler {
	return &handler{store: store, logger: logger}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /clients", h.handleCreate)
	mux.HandleFunc("GET /clients", h.handleList)
	mux.HandleFunc("GET /clients/{clientID}", h.handleGet)
	mux.HandleFunc("GET /clients/by-auth/{sub}", h.handleGetByAuth)
	mux.HandleFunc("PATCH /clients/{clientID}/assign-seller", h.handleAssignSeller)
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateClientInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if in.NIT == "" || in.InstitutionName == "" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_fields", "nit and institution_name are required"))
		return
	}

	client, err := h.store.Create(r.Context(), in)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("client created", slog.String("client_id", client.ID.String()))
	web.WriteJSON(w, http.StatusCreated, client)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("clientID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_client_id", "client id must be a UUID"))
		return
	}

	client, err := h.store.Get(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, client)
}

func (h *handler) handleGetByAuth(w http.ResponseWriter, r *http.Request) {
	sub := r.PathValue("sub")
	client, err := h.store.GetByAuthID(r.Context(), sub)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, client)
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	var sellerID *uuid.UUID
	if raw := r.URL.Query().Get("seller_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
				"invalid_seller_id", "seller_id must be a UUID"))
			return
		}
		sellerID = &id
	}

	clients, total, err := h.store.List(r.Context(), sellerID, params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(clients, total, params))
}

type assignSellerRequest struct {
	SellerID uuid.UUID `json:"seller_id"`
}

func (h *handler) handleAssignSeller(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(r.PathValue("clientID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_client_id", "client id must be a UUID"))
		return
	}

	var req assignSellerRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if req.SellerID == uuid.Nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_seller_id", "seller_id is required"))
		return
	}

	client, err := h.store.AssignSeller(r.Context(), clientID, req.SellerID)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("seller assigned",
		slog.String("client_id", clientID.String()),
		slog.String("seller_id", req.SellerID.String()),
	)
	web.WriteJSON(w, http.StatusOK, client)
}
