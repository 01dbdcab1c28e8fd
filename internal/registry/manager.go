// Package registry implements the Entity API & State Machine (spec
// §4.1): create/update/soft-delete/search of library entities and the
// transitions permitted between their lifecycle states, grounded on the
// same Config-struct/NewX(cfg) shape as internal/deployment and
// internal/swap.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/store"
)

// CreateRequest is the payload for POST /entities (spec §6).
type CreateRequest struct {
	Name         string
	Type         core.EntityType
	Category     string
	Description  string
	Version      string
	Author       string
	Tags         []string
	Config       core.JSONObject
	Parameters   core.JSONObject
	Requirements []string
	Resources    core.ResourceHints
	CreatedBy    string
}

// UpdateRequest is the payload for PUT /entities/{id}; nil fields are
// left untouched (spec §4.1 "updates only the provided fields").
type UpdateRequest struct {
	Category     *string
	Description  *string
	Version      *string
	Author       *string
	Tags         []string
	Config       core.JSONObject
	Parameters   core.JSONObject
	Requirements []string
	Status       *core.EntityStatus
	HealthStatus *core.HealthStatus
	UpdatedBy    string
}

// AddDependencyRequest is the payload for POST /entities/{id}/dependencies.
type AddDependencyRequest struct {
	EntityID          string
	DependsOnEntityID string
	DependencyType    core.DependencyType
	MinVersion        string
	MaxVersion        string
}

// Manager implements entity lifecycle operations over the Store Gateway.
type Manager struct {
	gateway   store.Gateway
	publisher *events.Publisher
	logger    *slog.Logger
}

// Config bundles Manager's required collaborators.
type Config struct {
	Gateway   store.Gateway
	Publisher *events.Publisher
	Logger    *slog.Logger
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("registry: gateway is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("registry: publisher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{gateway: cfg.Gateway, publisher: cfg.Publisher, logger: logger.With("component", "registry_manager")}, nil
}

// Create registers a new entity (spec §4.1 "Create").
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*core.Entity, error) {
	if existing, err := m.gateway.GetEntityByName(ctx, req.Name); err == nil && !existing.IsDeleted() {
		return nil, fmt.Errorf("entity %q: %w", req.Name, core.ErrAlreadyExists)
	} else if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	e := &core.Entity{
		ID:           uuid.NewString(),
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
		Status:       core.EntityStatusRegistered,
		HealthStatus: core.HealthStatusUnknown,
		Resources:    req.Resources,
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    req.CreatedBy,
		UpdatedBy:    req.CreatedBy,
	}

	if err := m.gateway.CreateEntity(ctx, e); err != nil {
		return nil, err
	}

	m.publisher.Publish(ctx, &core.Event{
		ID:         uuid.NewString(),
		EventType:  core.SubjectEntityRegistered,
		Severity:   core.EventSeverityInfo,
		EntityID:   &e.ID,
		Message:    fmt.Sprintf("entity %s registered", e.Name),
		UserID:     req.CreatedBy,
		Source:     core.EventSource,
		OccurredAt: now,
	}, core.JSONObject{"name": e.Name, "type": string(e.Type)})

	return e, nil
}

// Update applies a partial update to an entity (spec §4.1 "Update").
func (m *Manager) Update(ctx context.Context, id string, req UpdateRequest) (*core.Entity, error) {
	e, err := m.gateway.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsDeleted() {
		return nil, fmt.Errorf("entity %s: %w", id, core.ErrNotFound)
	}

	var mutated []string
	if req.Category != nil {
		e.Category = *req.Category
		mutated = append(mutated, "category")
	}
	if req.Description != nil {
		e.Description = *req.Description
		mutated = append(mutated, "description")
	}
	if req.Version != nil {
		e.Version = *req.Version
		mutated = append(mutated, "version")
	}
	if req.Author != nil {
		e.Author = *req.Author
		mutated = append(mutated, "author")
	}
	if req.Tags != nil {
		e.Tags = req.Tags
		mutated = append(mutated, "tags")
	}
	if req.Config != nil {
		e.Config = req.Config
		mutated = append(mutated, "config")
	}
	if req.Parameters != nil {
		e.Parameters = req.Parameters
		mutated = append(mutated, "parameters")
	}
	if req.Requirements != nil {
		e.Requirements = req.Requirements
		mutated = append(mutated, "requirements")
	}
	if req.HealthStatus != nil {
		e.HealthStatus = *req.HealthStatus
		mutated = append(mutated, "health_status")
	}
	if req.Status != nil {
		if !core.CanTransitionEntity(e.Status, *req.Status) {
			return nil, fmt.Errorf("entity %s: %s -> %s: %w", id, e.Status, *req.Status, core.ErrInvalidTransition)
		}
		e.Status = *req.Status
		mutated = append(mutated, "status")
	}

	if len(mutated) == 0 {
		return e, nil
	}

	e.UpdatedAt = time.Now().UTC()
	e.UpdatedBy = req.UpdatedBy

	if err := m.gateway.SaveEntity(ctx, e); err != nil {
		return nil, err
	}

	m.publisher.Publish(ctx, &core.Event{
		ID:         uuid.NewString(),
		EventType:  core.SubjectEntityUpdated,
		Severity:   core.EventSeverityInfo,
		EntityID:   &e.ID,
		Message:    fmt.Sprintf("entity %s updated", e.Name),
		UserID:     req.UpdatedBy,
		Source:     core.EventSource,
		OccurredAt: e.UpdatedAt,
	}, core.JSONObject{"mutated_fields": mutated})

	return e, nil
}

// Delete soft-deletes an entity (spec §4.1 "Delete").
func (m *Manager) Delete(ctx context.Context, id, deletedBy string) error {
	e, err := m.gateway.GetEntity(ctx, id)
	if err != nil {
		return err
	}
	if e.IsDeleted() {
		return fmt.Errorf("entity %s: %w", id, core.ErrNotFound)
	}

	now := time.Now().UTC()
	if err := m.gateway.SoftDeleteEntity(ctx, id, deletedBy, now); err != nil {
		return err
	}

	m.publisher.Publish(ctx, &core.Event{
		ID:         uuid.NewString(),
		EventType:  core.SubjectEntityDeleted,
		Severity:   core.EventSeverityWarning,
		EntityID:   &e.ID,
		Message:    fmt.Sprintf("entity %s deleted", e.Name),
		UserID:     deletedBy,
		Source:     core.EventSource,
		OccurredAt: now,
	}, core.JSONObject{"name": e.Name})

	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (*core.Entity, error) {
	e, err := m.gateway.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsDeleted() {
		return nil, fmt.Errorf("entity %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (m *Manager) List(ctx context.Context, filters core.EntityFilters, pg core.Pagination) (*core.Page[*core.Entity], error) {
	return m.gateway.ListEntities(ctx, filters, pg)
}

func (m *Manager) Dependencies(ctx context.Context, entityID string) ([]*core.DependencyView, error) {
	return m.gateway.ListDependencies(ctx, entityID)
}

// AddDependency creates a directed dependency edge, rejecting it if it
// would close a cycle in the dependency graph (spec §9 open question:
// "a DAG check at write time is recommended").
func (m *Manager) AddDependency(ctx context.Context, req AddDependencyRequest) (*core.Dependency, error) {
	if req.EntityID == req.DependsOnEntityID {
		r := core.NewValidationResult()
		r.AddError("an entity cannot depend on itself")
		return nil, core.NewValidationError(r)
	}

	edges, err := m.gateway.AllDependencyEdges(ctx)
	if err != nil {
		return nil, err
	}
	if wouldCreateCycle(edges, req.EntityID, req.DependsOnEntityID) {
		r := core.NewValidationResult()
		r.AddError(fmt.Sprintf("adding %s -> %s would create a dependency cycle", req.EntityID, req.DependsOnEntityID))
		return nil, core.NewValidationError(r)
	}

	d := &core.Dependency{
		ID:                uuid.NewString(),
		EntityID:          req.EntityID,
		DependsOnEntityID: req.DependsOnEntityID,
		DependencyType:    req.DependencyType,
		MinVersion:        req.MinVersion,
		MaxVersion:        req.MaxVersion,
		Status:            core.DependencyStatusActive,
	}
	if err := m.gateway.CreateDependency(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// wouldCreateCycle reports whether adding the edge from->to closes a
// cycle, by checking whether to can already reach from.
func wouldCreateCycle(edges []core.Dependency, from, to string) bool {
	adj := make(map[string][]string, len(edges))
	for _, e := range edges {
		adj[e.EntityID] = append(adj[e.EntityID], e.DependsOnEntityID)
	}

	visited := make(map[string]bool)
	var dfs func(node string) bool
	dfs = func(node string) bool {
		if node == from {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range adj[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}
