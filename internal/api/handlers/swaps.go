package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/strategylib/control-plane/internal/api/apierrors"
	"github.com/strategylib/control-plane/internal/api/middleware"
	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/swap"
)

// SwapHandlers serves the /swaps REST surface (spec §4.3/§6).
type SwapHandlers struct {
	engine      *swap.Engine
	gateway     store.Gateway
	pageSizeMax int
	logger      *slog.Logger
}

func NewSwapHandlers(engine *swap.Engine, gw store.Gateway, pageSizeMax int, logger *slog.Logger) *SwapHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwapHandlers{engine: engine, gateway: gw, pageSizeMax: pageSizeMax, logger: logger.With("component", "swap_handlers")}
}

type createSwapRequest struct {
	FromEntityID      string          `json:"from_entity_id"`
	ToEntityID        string          `json:"to_entity_id"`
	Reason            string          `json:"reason"`
	InitiatedBy       string          `json:"initiated_by"`
	SwapType          core.SwapType   `json:"swap_type"`
	ValidateOnly      bool            `json:"validate_only"`
	TargetEnvironment *core.Environment `json:"target_environment"`
}

// Create handles POST /swaps (honors validate_only per spec §6).
func (h *SwapHandlers) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}
	if req.FromEntityID == "" || req.ToEntityID == "" {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "from_entity_id and to_entity_id are required").WithRequestID(requestID))
		return
	}

	sw, err := h.engine.Execute(r.Context(), swap.Request{
		FromEntityID:      req.FromEntityID,
		ToEntityID:        req.ToEntityID,
		Reason:            req.Reason,
		InitiatedBy:       req.InitiatedBy,
		SwapType:          req.SwapType,
		ValidateOnly:      req.ValidateOnly,
		TargetEnvironment: req.TargetEnvironment,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}

	status := http.StatusCreated
	if req.ValidateOnly {
		status = http.StatusOK
	}
	writeJSON(w, status, sw)
}

// Get handles GET /swaps/{id}.
func (h *SwapHandlers) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	sw, err := h.gateway.GetSwap(r.Context(), id)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}

// List handles GET /swaps.
func (h *SwapHandlers) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	pg := parsePagination(r, h.pageSizeMax)
	if err := pg.Validate(h.pageSizeMax); err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}

	var filters core.SwapFilters
	filters.EntityID = queryStringPtr(r, "entity_id")
	if v := queryStringPtr(r, "status"); v != nil {
		s := core.SwapStatus(*v)
		filters.Status = &s
	}

	page, err := h.gateway.ListSwaps(r.Context(), filters, pg)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListByEntity handles GET /swaps/entity/{entity_id}/swaps.
func (h *SwapHandlers) ListByEntity(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	entityID := mux.Vars(r)["entity_id"]

	swaps, err := h.gateway.ListSwapsByEntity(r.Context(), entityID)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, swaps)
}

type rollbackSwapRequest struct {
	Reason       string `json:"reason"`
	RolledBackBy string `json:"rolled_back_by"`
}

// Rollback handles POST /swaps/{id}/rollback.
func (h *SwapHandlers) Rollback(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	var req rollbackSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}

	sw, err := h.engine.Rollback(r.Context(), swap.RollbackRequest{
		SwapID:       id,
		Reason:       req.Reason,
		RolledBackBy: req.RolledBackBy,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}
