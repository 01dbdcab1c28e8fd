// Package deployment implements the Deployment Manager (spec §4.2):
// create-deployment and rollback-deployment, each a single store
// transaction bracketed by pre/post validation and a post-commit event
// publish. Grounded on the teacher's internal/core/services.AlertProcessor
// shape — a config-struct constructor validating required collaborators,
// a numbered-step pipeline method, structured logging at each step.
package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/validation"
)

// CreateRequest carries the inputs to CreateDeployment (spec §4.2).
type CreateRequest struct {
	EntityID          string
	Environment       core.Environment
	DeployedBy        string
	ConfigOverride    core.JSONObject
	ParametersOverride core.JSONObject
}

// RollbackRequest carries the inputs to RollbackDeployment (spec §4.2).
type RollbackRequest struct {
	DeploymentID       string
	Reason             string
	RolledBackBy       string
	TargetDeploymentID string
}

// Manager orchestrates deployment creation and rollback.
type Manager struct {
	gateway   store.Gateway
	preDeploy *validation.PreDeploy
	postDeploy *validation.PostDeploy
	publisher *events.Publisher
	logger    *slog.Logger
}

// Config bundles Manager's required collaborators.
type Config struct {
	Gateway    store.Gateway
	PreDeploy  *validation.PreDeploy
	PostDeploy *validation.PostDeploy
	Publisher  *events.Publisher
	Logger     *slog.Logger
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("deployment manager: gateway is required")
	}
	if cfg.PreDeploy == nil {
		return nil, fmt.Errorf("deployment manager: pre-deploy validator is required")
	}
	if cfg.PostDeploy == nil {
		return nil, fmt.Errorf("deployment manager: post-deploy validator is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("deployment manager: publisher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		gateway:    cfg.Gateway,
		preDeploy:  cfg.PreDeploy,
		postDeploy: cfg.PostDeploy,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger.With("component", "deployment_manager"),
	}, nil
}

// CreateDeployment implements spec §4.2 "Create deployment contract".
func (m *Manager) CreateDeployment(ctx context.Context, req CreateRequest) (*core.Deployment, error) {
	start := time.Now()

	entity, err := m.gateway.GetEntity(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	if entity.IsDeleted() {
		return nil, core.ErrNotFound
	}

	existingActive, err := m.gateway.ActiveDeployment(ctx, req.EntityID, req.Environment)
	if err != nil && err != core.ErrNotFound {
		return nil, err
	}

	preResult := m.preDeploy.Validate(ctx, entity, existingActive)
	if !preResult.Passed {
		return nil, core.NewValidationError(preResult)
	}

	var created *core.Deployment

	txErr := m.gateway.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockEntity(ctx, req.EntityID)
		if err != nil {
			return err
		}

		existing, err := tx.LockDeploymentsForEntityEnv(ctx, req.EntityID, req.Environment)
		if err != nil {
			return err
		}
		for _, d := range existing {
			if d.Status == core.DeploymentStatusActive {
				d.Status = core.DeploymentStatusInactive
				d.UpdatedAt = time.Now().UTC()
				if err := tx.SaveDeployment(ctx, d); err != nil {
					return err
				}
			}
		}

		configSnapshot := req.ConfigOverride
		if configSnapshot == nil {
			configSnapshot = locked.Config
		}
		paramsSnapshot := req.ParametersOverride
		if paramsSnapshot == nil {
			paramsSnapshot = locked.Parameters
		}

		now := time.Now().UTC()
		dep := &core.Deployment{
			ID:                 uuid.NewString(),
			EntityID:           req.EntityID,
			Version:            locked.Version,
			Environment:        req.Environment,
			ConfigSnapshot:     configSnapshot,
			ParametersSnapshot: paramsSnapshot,
			Status:             core.DeploymentStatusActive,
			DeployedAt:         &now,
			DeployedBy:         req.DeployedBy,
			DeploymentMethod:   "standard",
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.SaveDeployment(ctx, dep); err != nil {
			return err
		}

		locked.Status = core.EntityStatusDeployed
		locked.DeployedAt = &now
		locked.DeployedBy = req.DeployedBy
		locked.DeploymentConfig = configSnapshot
		locked.UpdatedAt = now
		if err := tx.SaveEntity(ctx, locked); err != nil {
			return err
		}

		postResult := m.postDeploy.Validate(ctx, dep)
		dep.ValidationResults = postResult
		duration := time.Since(start).Seconds()
		dep.DurationSeconds = &duration
		if err := tx.SaveDeployment(ctx, dep); err != nil {
			return err
		}

		evt := &core.Event{
			ID:            uuid.NewString(),
			EventType:     core.SubjectDeploymentCompleted,
			EventCategory: "deployment",
			Severity:      core.EventSeverityInfo,
			EntityID:      &req.EntityID,
			DeploymentID:  &dep.ID,
			Message:       "deployment created",
			UserID:        req.DeployedBy,
			Source:        core.EventSource,
			OccurredAt:    now,
		}
		if err := tx.InsertEvent(ctx, evt); err != nil {
			return err
		}

		created = dep
		return nil
	})

	if txErr != nil {
		m.logger.ErrorContext(ctx, "deployment transaction failed", "entity_id", req.EntityID, "error", txErr)
		m.publisher.Publish(ctx, &core.Event{
			ID:         uuid.NewString(),
			EventType:  core.SubjectDeploymentFailed,
			EntityID:   &req.EntityID,
			OccurredAt: time.Now().UTC(),
		}, core.JSONObject{"error": txErr.Error()})
		return nil, fmt.Errorf("create deployment: %w", txErr)
	}

	m.publisher.Publish(ctx, &core.Event{
		ID:           uuid.NewString(),
		EventType:    core.SubjectDeploymentCompleted,
		EntityID:     &req.EntityID,
		DeploymentID: &created.ID,
		OccurredAt:   time.Now().UTC(),
	}, core.JSONObject{"environment": string(req.Environment), "deployed_by": req.DeployedBy})

	if err := m.gateway.InsertPerformanceMetric(ctx, &core.PerformanceMetric{
		ID:           uuid.NewString(),
		EntityID:     &req.EntityID,
		DeploymentID: &created.ID,
		MetricType:   core.MetricDeploymentDuration,
		Value:        time.Since(start).Seconds(),
		RecordedAt:   time.Now().UTC(),
	}); err != nil {
		m.logger.WarnContext(ctx, "failed to record deployment performance metric", "deployment_id", created.ID, "error", err)
	}

	return created, nil
}

// RollbackDeployment implements spec §4.2 "Rollback deployment contract".
func (m *Manager) RollbackDeployment(ctx context.Context, req RollbackRequest) (*core.Deployment, error) {
	current, err := m.gateway.GetDeployment(ctx, req.DeploymentID)
	if err != nil {
		return nil, err
	}

	var target *core.Deployment
	if req.TargetDeploymentID != "" {
		target, err = m.gateway.GetDeployment(ctx, req.TargetDeploymentID)
		if err != nil {
			return nil, err
		}
		if target.EntityID != current.EntityID {
			return nil, core.ErrNoRollbackTarget
		}
	} else {
		deployedAt := time.Now()
		if current.DeployedAt != nil {
			deployedAt = *current.DeployedAt
		}
		target, err = m.gateway.PreviousActiveDeployment(ctx, current.EntityID, current.Environment, deployedAt)
		if err != nil && err != core.ErrNotFound {
			return nil, err
		}
	}
	if target == nil {
		return nil, core.ErrNoRollbackTarget
	}

	var rolledBack *core.Deployment
	txErr := m.gateway.WithTx(ctx, func(tx store.Tx) error {
		entity, err := tx.LockEntity(ctx, current.EntityID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		current.Status = core.DeploymentStatusRolledBack
		current.RolledBackAt = &now
		current.RolledBackBy = req.RolledBackBy
		current.RollbackReason = req.Reason
		current.PreviousDeploymentID = &target.ID
		current.UpdatedAt = now
		if err := tx.SaveDeployment(ctx, current); err != nil {
			return err
		}

		target.Status = core.DeploymentStatusActive
		target.UpdatedAt = now
		if err := tx.SaveDeployment(ctx, target); err != nil {
			return err
		}

		entity.DeploymentConfig = target.ConfigSnapshot
		entity.DeployedAt = target.DeployedAt
		entity.DeployedBy = target.DeployedBy
		entity.UpdatedAt = now
		if err := tx.SaveEntity(ctx, entity); err != nil {
			return err
		}

		evt := &core.Event{
			ID:            uuid.NewString(),
			EventType:     core.SubjectDeploymentRolledBack,
			EventCategory: "deployment",
			Severity:      core.EventSeverityWarning,
			EntityID:      &current.EntityID,
			DeploymentID:  &current.ID,
			Message:       "deployment rolled back: " + req.Reason,
			UserID:        req.RolledBackBy,
			Source:        core.EventSource,
			OccurredAt:    now,
		}
		if err := tx.InsertEvent(ctx, evt); err != nil {
			return err
		}

		rolledBack = current
		return nil
	})
	if txErr != nil {
		m.logger.ErrorContext(ctx, "rollback transaction failed", "deployment_id", req.DeploymentID, "error", txErr)
		return nil, fmt.Errorf("rollback deployment: %w", txErr)
	}

	m.publisher.Publish(ctx, &core.Event{
		ID:           uuid.NewString(),
		EventType:    core.SubjectDeploymentRolledBack,
		EntityID:     &current.EntityID,
		DeploymentID: &current.ID,
		OccurredAt:   time.Now().UTC(),
	}, core.JSONObject{"reason": req.Reason, "rolled_back_by": req.RolledBackBy, "target_deployment_id": target.ID})

	return rolledBack, nil
}
