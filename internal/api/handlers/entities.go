package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/strategylib/control-plane/internal/api/apierrors"
	"github.com/strategylib/control-plane/internal/api/middleware"
	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/registry"
)

// EntityHandlers serves the /entities REST surface (spec §4.1/§6).
type EntityHandlers struct {
	registry    *registry.Manager
	pageSizeMax int
	logger      *slog.Logger
}

func NewEntityHandlers(reg *registry.Manager, pageSizeMax int, logger *slog.Logger) *EntityHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityHandlers{registry: reg, pageSizeMax: pageSizeMax, logger: logger.With("component", "entity_handlers")}
}

type createEntityRequest struct {
	Name         string              `json:"name"`
	Type         core.EntityType     `json:"type"`
	Category     string              `json:"category"`
	Description  string              `json:"description"`
	Version      string              `json:"version"`
	Author       string              `json:"author"`
	Tags         []string            `json:"tags"`
	Config       core.JSONObject     `json:"config"`
	Parameters   core.JSONObject     `json:"parameters"`
	Requirements []string            `json:"requirements"`
	Resources    core.ResourceHints  `json:"resources"`
	CreatedBy    string              `json:"created_by"`
}

// Create handles POST /entities.
func (h *EntityHandlers) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}
	if req.Name == "" || req.Type == "" || req.Version == "" {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "name, type, and version are required").WithRequestID(requestID))
		return
	}

	e, err := h.registry.Create(r.Context(), registry.CreateRequest{
		Name:         req.Name,
		Type:         req.Type,
		Category:     req.Category,
		Description:  req.Description,
		Version:      req.Version,
		Author:       req.Author,
		Tags:         req.Tags,
		Config:       req.Config,
		Parameters:   req.Parameters,
		Requirements: req.Requirements,
		Resources:    req.Resources,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// Get handles GET /entities/{id}.
func (h *EntityHandlers) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	e, err := h.registry.Get(r.Context(), id)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type updateEntityRequest struct {
	Category     *string             `json:"category"`
	Description  *string             `json:"description"`
	Version      *string             `json:"version"`
	Author       *string             `json:"author"`
	Tags         []string            `json:"tags"`
	Config       core.JSONObject     `json:"config"`
	Parameters   core.JSONObject     `json:"parameters"`
	Requirements []string            `json:"requirements"`
	Status       *core.EntityStatus  `json:"status"`
	HealthStatus *core.HealthStatus  `json:"health_status"`
	UpdatedBy    string              `json:"updated_by"`
}

// Update handles PUT /entities/{id}.
func (h *EntityHandlers) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	var req updateEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}

	e, err := h.registry.Update(r.Context(), id, registry.UpdateRequest{
		Category:     req.Category,
		Description:  req.Description,
		Version:      req.Version,
		Author:       req.Author,
		Tags:         req.Tags,
		Config:       req.Config,
		Parameters:   req.Parameters,
		Requirements: req.Requirements,
		Status:       req.Status,
		HealthStatus: req.HealthStatus,
		UpdatedBy:    req.UpdatedBy,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Delete handles DELETE /entities/{id}?deleted_by=….
func (h *EntityHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]
	deletedBy := r.URL.Query().Get("deleted_by")

	if err := h.registry.Delete(r.Context(), id, deletedBy); err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /entities.
func (h *EntityHandlers) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	h.list(w, r, requestID, r.URL.Query().Get("search"))
}

// Search handles GET /entities/search/?q=….
func (h *EntityHandlers) Search(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	h.list(w, r, requestID, r.URL.Query().Get("q"))
}

func (h *EntityHandlers) list(w http.ResponseWriter, r *http.Request, requestID, search string) {
	pg := parsePagination(r, h.pageSizeMax)
	if err := pg.Validate(h.pageSizeMax); err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}

	filters := core.EntityFilters{Search: search}
	if v := queryStringPtr(r, "type"); v != nil {
		t := core.EntityType(*v)
		filters.Type = &t
	}
	if v := queryStringPtr(r, "category"); v != nil {
		filters.Category = v
	}
	if v := queryStringPtr(r, "status"); v != nil {
		s := core.EntityStatus(*v)
		filters.Status = &s
	}
	if v := queryStringPtr(r, "health_status"); v != nil {
		s := core.HealthStatus(*v)
		filters.HealthStatus = &s
	}
	filters.Tags = r.URL.Query()["tags"]

	page, err := h.registry.List(r.Context(), filters, pg)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Dependencies handles GET /entities/{id}/dependencies.
func (h *EntityHandlers) Dependencies(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	deps, err := h.registry.Dependencies(r.Context(), id)
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

type addDependencyRequest struct {
	DependsOnEntityID string              `json:"depends_on_entity_id"`
	DependencyType    core.DependencyType `json:"dependency_type"`
	MinVersion        string              `json:"min_version"`
	MaxVersion        string              `json:"max_version"`
}

// AddDependency handles POST /entities/{id}/dependencies.
func (h *EntityHandlers) AddDependency(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	var req addDependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.Write(w, apierrors.New(apierrors.CodeValidationFailed, "malformed request body").WithRequestID(requestID))
		return
	}

	d, err := h.registry.AddDependency(r.Context(), registry.AddDependencyRequest{
		EntityID:          id,
		DependsOnEntityID: req.DependsOnEntityID,
		DependencyType:    req.DependencyType,
		MinVersion:        req.MinVersion,
		MaxVersion:        req.MaxVersion,
	})
	if err != nil {
		apierrors.FromDomainError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
