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
	sellers   SellersStore
	visits    VisitsStore
	plans     PlansStore
	saga      *VisitSaga
	presigner *EvidencePresigner
	logger    *slog.Logger
}

func NewHandler(sellers SellersStore, visits VisitsStore, plans PlansStore, saga *VisitSaga, presigner *EvidencePresigner, logger *slog.Logger) *handler {
	return &handler{
		sellers:   sellers,
		visits:    visits,
		plans:     plans,
		saga:      saga,
		presigner: presigner,
		logger:    logger,
	}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /sellers", h.handleCreateSeller)
	mux.HandleFunc("GET /sellers", h.handleListSellers)
	mux.HandleFunc("GET /sellers/{sellerID}", h.handleGetSeller)
	mux.HandleFunc("GET /sellers/by-auth/{sub}", h.handleGetSellerByAuth)

	mux.HandleFunc("POST /visits", h.handleCreateVisit)
	mux.HandleFunc("GET /visits", h.handleListVisits)
	mux.HandleFunc("GET /visits/{visitID}", h.handleGetVisit)
	mux.HandleFunc("PATCH /visits/{visitID}/status", h.handleUpdateVisitStatus)
	mux.HandleFunc("POST /visits/{visitID}/evidence/upload-url", h.handleEvidenceUploadURL)
	mux.HandleFunc("PATCH /visits/{visitID}/evidence", h.handleStoreEvidence)

	mux.HandleFunc("POST /sales-plans", h.handleCreatePlan)
	mux.HandleFunc("GET /sales-plans", h.handleListPlans)
}

func (h *handler) handleCreateSeller(w http.ResponseWriter, r *http.Request) {
	var in CreateSellerInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if in.Name == "" || in.ExternalAuthID == "" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_fields", "name and external_auth_id are required"))
		return
	}

	seller, err := h.sellers.CreateSeller(r.Context(), in)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, seller)
}

func (h *handler) handleGetSeller(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("sellerID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_seller_id", "seller id must be a UUID"))
		return
	}

	seller, err := h.sellers.GetSeller(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, seller)
}

func (h *handler) handleGetSellerByAuth(w http.ResponseWriter, r *http.Request) {
	seller, err := h.sellers.GetSellerByAuthID(r.Context(), r.PathValue("sub"))
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, seller)
}

func (h *handler) handleListSellers(w http.ResponseWriter, r *http.Request) {
	params, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	sellers, total, err := h.sellers.ListSellers(r.Context(), params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(sellers, total, params))
}

func (h *handler) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	var in CreateVisitInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	visit, err := h.saga.CreateVisit(r.Context(), in)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, visit)
}

func (h *handler) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("visitID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_visit_id", "visit id must be a UUID"))
		return
	}

	visit, err := h.visits.GetVisit(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, visit)
}

func (h *handler) handleListVisits(w http.ResponseWriter, r *http.Request) {
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

	visits, total, err := h.visits.ListVisits(r.Context(), sellerID, params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(visits, total, params))
}

type updateVisitStatusRequest struct {
	Status          VisitStatus `json:"status"`
	Recommendations string      `json:"recommendations,omitempty"`
}

func (h *handler) handleUpdateVisitStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("visitID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_visit_id", "visit id must be a UUID"))
		return
	}

	var req updateVisitStatusRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	visit, err := h.visits.UpdateVisitStatus(r.Context(), id, req.Status, req.Recommendations)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("visit status updated",
		slog.String("visit_id", id.String()),
		slog.String("status", string(req.Status)),
	)
	web.WriteJSON(w, http.StatusOK, visit)
}

type evidenceUploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type evidenceUploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectURL string `json:"object_url"`
}

func (h *handler) handleEvidenceUploadURL(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("visitID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_visit_id", "visit id must be a UUID"))
		return
	}
	if h.presigner == nil {
		web.WriteError(w, h.logger, apperr.New(apperr.Unreachable,
			"evidence_storage_unavailable", "evidence storage is not configured"))
		return
	}

	var req evidenceUploadURLRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	// The visit must exist before we hand out bucket space for it.
	if _, err := h.visits.GetVisit(r.Context(), id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}

	uploadURL, objectURL, err := h.presigner.UploadURL(r.Context(), id, req.Filename, req.ContentType)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, evidenceUploadURLResponse{
		UploadURL: uploadURL,
		ObjectURL: objectURL,
	})
}

type storeEvidenceRequest struct {
	EvidenceURL string `json:"evidence_url"`
}

func (h *handler) handleStoreEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("visitID"))
	if err != nil {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"invalid_visit_id", "visit id must be a UUID"))
		return
	}

	var req storeEvidenceRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if req.EvidenceURL == "" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_evidence_url", "evidence_url is required"))
		return
	}

	visit, err := h.visits.SetEvidenceURL(r.Context(), id, req.EvidenceURL)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, visit)
}

func (h *handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var in CreateSalesPlanInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if in.SellerID == uuid.Nil || in.SalesPeriod == "" {
		web.WriteError(w, h.logger, apperr.New(apperr.ValidationRejected,
			"missing_fields", "seller_id and sales_period are required"))
		return
	}

	plan, err := h.plans.CreatePlan(r.Context(), in)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, plan)
}

func (h *handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
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

	plans, total, err := h.plans.ListPlans(r.Context(), sellerID, params)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.NewPage(plans, total, params))
}
