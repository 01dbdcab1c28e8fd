package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/strategylib/control-plane/internal/api/apierrors"
	"github.com/strategylib/control-plane/internal/api/middleware"
	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/deployment"
	"github.com/strategylib/control-plane/internal/store"
)

// DeploymentHandlers serves the /deployments REST surface (spec §4.2/§6).
type DeploymentHandlers struct {
	manager     *deployment.Manager
	gateway     store.Gateway
	pageSizeMax int
	logger      *slog.Logger
}

func NewDeploymentHandlers(mgr *deployment.Manager, gw store.Gateway, pageSizeMax int, logger *slog.Logger) *DeploymentHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeploymentHandlers{manager: mgr, gateway: gw, pageSizeMax: pageSizeMax, logger: logger.With("component", "deployment_handlers")}
}

type createDeploymentRequest struct {
	EntityID           string             `json:"entity_id"`
	Environment        core.Environment   `json:"environment"`
	DeployedBy         string             `json:"deployed_by"`
	ConfigOverride     core.JSONObject    `json:"config_override"`
	ParametersOverride core.JSONObject    `json:"parameters_override"`
}

// Create handles POST /deployments.
func (h *DeploymentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}
	if req.EntityID == "" || req.Environment == "" {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "entity_id and environment are required").WithRequestID(requestID))
		return
	}

	d, err := h.manager.CreateDeployment(r.Context(), deployment.CreateRequest{
		EntityID:           req.EntityID,
		Environment:        req.Environment,
		DeployedBy:         req.DeployedBy,
		ConfigOverride:     req.ConfigOverride,
		ParametersOverride: req.ParametersOverride,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Get handles GET /deployments/{id}.
func (h *DeploymentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	d, err := h.gateway.GetDeployment(r.Context(), id)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// List handles GET /deployments.
func (h *DeploymentHandlers) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	pg := parsePagination(r, h.pageSizeMax)
	if err := pg.Validate(h.pageSizeMax); err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}

	var filters core.DeploymentFilters
	filters.EntityID = queryStringPtr(r, "entity_id")
	if v := queryStringPtr(r, "environment"); v != nil {
		env := core.Environment(*v)
		filters.Environment = &env
	}
	if v := queryStringPtr(r, "status"); v != nil {
		s := core.DeploymentStatus(*v)
		filters.Status = &s
	}

	page, err := h.gateway.ListDeployments(r.Context(), filters, pg)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListByEntity handles GET /deployments/entity/{entity_id}/deployments.
func (h *DeploymentHandlers) ListByEntity(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	entityID := mux.Vars(r)["entity_id"]

	deps, err := h.gateway.ListDeploymentsByEntity(r.Context(), entityID)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

type rollbackDeploymentRequest struct {
	Reason             string `json:"reason"`
	RolledBackBy       string `json:"rolled_back_by"`
	TargetDeploymentID string `json:"target_deployment_id"`
}

// Rollback handles POST /deployments/{id}/rollback.
func (h *DeploymentHandlers) Rollback(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	var req rollbackDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}

	d, err := h.manager.RollbackDeployment(r.Context(), deployment.RollbackRequest{
		DeploymentID:       id,
		Reason:             req.Reason,
		RolledBackBy:       req.RolledBackBy,
		TargetDeploymentID: req.TargetDeploymentID,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
