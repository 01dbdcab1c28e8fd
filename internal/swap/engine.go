// Package swap implements the Swap Engine (spec §4.3): hot-swap one
// entity in for another across every environment where the source has
// an active deployment, and its inverse rollback. Grounded on the same
// orchestration shape as internal/deployment.Manager.
package swap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/validation"
)

// Request carries the inputs to Execute (spec §4.3 "Swap contract").
type Request struct {
	FromEntityID      string
	ToEntityID        string
	Reason            string
	InitiatedBy       string
	SwapType          core.SwapType
	ValidateOnly      bool
	TargetEnvironment *core.Environment
}

// RollbackRequest carries the inputs to Rollback (spec §4.3
// "Swap-rollback contract").
type RollbackRequest struct {
	SwapID       string
	Reason       string
	RolledBackBy string
}

// Engine orchestrates swap execution and rollback.
type Engine struct {
	gateway   store.Gateway
	validator *validation.Swap
	publisher *events.Publisher
	logger    *slog.Logger
}

// Config bundles Engine's required collaborators.
type Config struct {
	Gateway   store.Gateway
	Validator *validation.Swap
	Publisher *events.Publisher
	Logger    *slog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("swap engine: gateway is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("swap engine: validator is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("swap engine: publisher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		gateway:   cfg.Gateway,
		validator: cfg.Validator,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.With("component", "swap_engine"),
	}, nil
}

// Execute implements spec §4.3 "Swap contract".
func (e *Engine) Execute(ctx context.Context, req Request) (*core.Swap, error) {
	if req.FromEntityID == req.ToEntityID {
		return nil, core.NewValidationError(fromEqualToResult())
	}

	from, err := e.gateway.GetEntity(ctx, req.FromEntityID)
	if err != nil {
		return nil, err
	}
	to, err := e.gateway.GetEntity(ctx, req.ToEntityID)
	if err != nil {
		return nil, err
	}
	if from.IsDeleted() || to.IsDeleted() {
		return nil, core.ErrNotFound
	}

	var fromActive *core.Deployment
	if req.TargetEnvironment != nil {
		fromActive, err = e.gateway.ActiveDeployment(ctx, req.FromEntityID, *req.TargetEnvironment)
		if err != nil && err != core.ErrNotFound {
			return nil, err
		}
	} else {
		deps, err := e.gateway.ListDeploymentsByEntity(ctx, req.FromEntityID)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			if d.Status == core.DeploymentStatusActive {
				fromActive = d
				break
			}
		}
	}

	result := e.validator.Validate(ctx, from, to, fromActive)
	if req.ValidateOnly {
		return &core.Swap{
			ID:                "",
			FromEntityID:      req.FromEntityID,
			ToEntityID:        req.ToEntityID,
			SwapType:          defaultSwapType(req.SwapType),
			Status:            core.SwapStatusValidating,
			Reason:            req.Reason,
			InitiatedBy:       req.InitiatedBy,
			InitiatedAt:       time.Now().UTC(),
			ValidationResults: result,
			TargetEnvironment: req.TargetEnvironment,
		}, nil
	}
	if !result.Passed {
		return nil, core.NewValidationError(result)
	}

	now := time.Now().UTC()
	sw := &core.Swap{
		ID:                uuid.NewString(),
		FromEntityID:       req.FromEntityID,
		ToEntityID:         req.ToEntityID,
		SwapType:           defaultSwapType(req.SwapType),
		Status:             core.SwapStatusInProgress,
		Reason:             req.Reason,
		InitiatedBy:        req.InitiatedBy,
		InitiatedAt:        now,
		ValidationResults:  result,
		TargetEnvironment:  req.TargetEnvironment,
	}
	if err := e.gateway.SaveSwap(ctx, sw); err != nil {
		return nil, fmt.Errorf("insert swap row: %w", err)
	}

	var downtimeStart time.Time
	var affected []string

	txErr := e.gateway.WithTx(ctx, func(tx store.Tx) error {
		ids := []string{req.FromEntityID, req.ToEntityID}
		sort.Strings(ids)
		locked, err := tx.LockEntities(ctx, ids...)
		if err != nil {
			return err
		}
		fromEntity := locked[req.FromEntityID]
		toEntity := locked[req.ToEntityID]

		fromDeps, err := tx.LockDeploymentsForEntity(ctx, req.FromEntityID)
		if err != nil {
			return err
		}
		var targets []*core.Deployment
		for _, d := range fromDeps {
			if d.Status != core.DeploymentStatusActive {
				continue
			}
			if req.TargetEnvironment != nil && d.Environment != *req.TargetEnvironment {
				continue
			}
			targets = append(targets, d)
		}
		if len(targets) == 0 {
			return fmt.Errorf("%w: from entity has no active deployment to swap out", core.ErrValidationFailed)
		}

		downtimeStart = time.Now().UTC()

		for _, fromDep := range targets {
			fromDep.Status = core.DeploymentStatusInactive
			fromDep.UpdatedAt = time.Now().UTC()
			if err := tx.SaveDeployment(ctx, fromDep); err != nil {
				return err
			}
			affected = append(affected, fromDep.ID)

			toDep, err := tx.DeploymentByEntityEnv(ctx, req.ToEntityID, fromDep.Environment)
			if err != nil && err != core.ErrNotFound {
				return err
			}
			if toDep != nil {
				toDep.Status = core.DeploymentStatusActive
				toDep.UpdatedAt = time.Now().UTC()
				if err := tx.SaveDeployment(ctx, toDep); err != nil {
					return err
				}
			} else {
				fresh := &core.Deployment{
					ID:                 uuid.NewString(),
					EntityID:           req.ToEntityID,
					Version:            toEntity.Version,
					Environment:        fromDep.Environment,
					ConfigSnapshot:     toEntity.Config,
					ParametersSnapshot: toEntity.Parameters,
					Status:             core.DeploymentStatusActive,
					DeployedAt:         &downtimeStart,
					DeployedBy:         req.InitiatedBy,
					DeploymentMethod:   "hotswap",
					CreatedAt:          downtimeStart,
					UpdatedAt:          downtimeStart,
				}
				if err := tx.SaveDeployment(ctx, fresh); err != nil {
					return err
				}
			}
		}

		completionTime := time.Now().UTC()
		fromEntity.Status = core.EntityStatusInactive
		fromEntity.UpdatedAt = completionTime
		if err := tx.SaveEntity(ctx, fromEntity); err != nil {
			return err
		}

		toEntity.Status = core.EntityStatusActive
		toEntity.DeployedAt = &completionTime
		toEntity.DeployedBy = req.InitiatedBy
		toEntity.UpdatedAt = completionTime
		if err := tx.SaveEntity(ctx, toEntity); err != nil {
			return err
		}

		downtime := completionTime.Sub(downtimeStart).Milliseconds()
		duration := completionTime.Sub(now).Seconds()
		success := true
		sw.Status = core.SwapStatusCompleted
		sw.CompletedAt = &completionTime
		sw.DowntimeMillis = &downtime
		sw.DurationSeconds = &duration
		sw.Success = &success
		sw.AffectedDeploymentIDs = affected
		if err := tx.SaveSwap(ctx, sw); err != nil {
			return err
		}

		evt := &core.Event{
			ID:            uuid.NewString(),
			EventType:     core.SubjectSwapCompleted,
			EventCategory: "swap",
			Severity:      core.EventSeverityInfo,
			EntityID:      &req.ToEntityID,
			SwapID:        &sw.ID,
			Message:       "swap completed: " + req.Reason,
			UserID:        req.InitiatedBy,
			Source:        core.EventSource,
			OccurredAt:    completionTime,
		}
		return tx.InsertEvent(ctx, evt)
	})

	if txErr != nil {
		e.failSwap(ctx, sw, txErr)
		return nil, fmt.Errorf("execute swap: %w", txErr)
	}

	e.publisher.Publish(ctx, &core.Event{
		ID:         uuid.NewString(),
		EventType:  core.SubjectSwapCompleted,
		EntityID:   &req.ToEntityID,
		SwapID:     &sw.ID,
		OccurredAt: time.Now().UTC(),
	}, core.JSONObject{
		"from_entity_id":     req.FromEntityID,
		"to_entity_id":       req.ToEntityID,
		"success":            true,
		"downtime_ms":        derefInt64(sw.DowntimeMillis),
	})

	if err := e.gateway.InsertPerformanceMetric(ctx, &core.PerformanceMetric{
		ID:         uuid.NewString(),
		EntityID:   &req.ToEntityID,
		SwapID:     &sw.ID,
		MetricType: core.MetricSwapDowntimeMillis,
		Value:      float64(derefInt64(sw.DowntimeMillis)),
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		e.logger.WarnContext(ctx, "failed to record swap downtime metric", "swap_id", sw.ID, "error", err)
	}

	return sw, nil
}

// failSwap marks sw failed, persists it, and publishes swap.failed.
func (e *Engine) failSwap(ctx context.Context, sw *core.Swap, cause error) {
	now := time.Now().UTC()
	success := false
	sw.Status = core.SwapStatusFailed
	sw.CompletedAt = &now
	sw.Success = &success
	sw.ErrorMessage = cause.Error()
	if err := e.gateway.SaveSwap(ctx, sw); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist failed swap", "swap_id", sw.ID, "error", err)
	}
	e.logger.ErrorContext(ctx, "swap transaction failed", "swap_id", sw.ID, "error", cause)
	e.publisher.Publish(ctx, &core.Event{
		ID:         uuid.NewString(),
		EventType:  core.SubjectSwapFailed,
		SwapID:     &sw.ID,
		OccurredAt: now,
	}, core.JSONObject{"error": cause.Error()})
}

// Rollback implements spec §4.3 "Swap-rollback contract".
func (e *Engine) Rollback(ctx context.Context, req RollbackRequest) (*core.Swap, error) {
	sw, err := e.gateway.GetSwap(ctx, req.SwapID)
	if err != nil {
		return nil, err
	}
	if !sw.IsRollbackable() {
		return nil, core.ErrInvalidTransition
	}

	txErr := e.gateway.WithTx(ctx, func(tx store.Tx) error {
		ids := []string{sw.FromEntityID, sw.ToEntityID}
		sort.Strings(ids)
		locked, err := tx.LockEntities(ctx, ids...)
		if err != nil {
			return err
		}
		fromEntity := locked[sw.FromEntityID]
		toEntity := locked[sw.ToEntityID]

		toDeps, err := tx.LockDeploymentsForEntity(ctx, sw.ToEntityID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, d := range toDeps {
			if d.Status != core.DeploymentStatusActive {
				continue
			}
			d.Status = core.DeploymentStatusInactive
			d.UpdatedAt = now
			if err := tx.SaveDeployment(ctx, d); err != nil {
				return err
			}
		}

		fromDeps, err := tx.LockDeploymentsForEntity(ctx, sw.FromEntityID)
		if err != nil {
			return err
		}
		byID := make(map[string]*core.Deployment, len(fromDeps))
		for _, d := range fromDeps {
			byID[d.ID] = d
		}
		// Reactivate in reverse chronological order of deployed_at,
		// restricted to exactly the set this swap deactivated (spec §4.3
		// "tie-breaks and edge cases").
		var toReactivate []*core.Deployment
		for _, id := range sw.AffectedDeploymentIDs {
			if d, ok := byID[id]; ok {
				toReactivate = append(toReactivate, d)
			}
		}
		sort.Slice(toReactivate, func(i, j int) bool {
			ti, tj := toReactivate[i].DeployedAt, toReactivate[j].DeployedAt
			if ti == nil || tj == nil {
				return false
			}
			return ti.After(*tj)
		})
		for _, d := range toReactivate {
			d.Status = core.DeploymentStatusActive
			d.UpdatedAt = now
			if err := tx.SaveDeployment(ctx, d); err != nil {
				return err
			}
		}

		fromEntity.Status = core.EntityStatusActive
		fromEntity.UpdatedAt = now
		if len(toReactivate) > 0 {
			fromEntity.DeployedAt = toReactivate[0].DeployedAt
			fromEntity.DeploymentConfig = toReactivate[0].ConfigSnapshot
		}
		if err := tx.SaveEntity(ctx, fromEntity); err != nil {
			return err
		}

		toEntity.Status = core.EntityStatusInactive
		toEntity.UpdatedAt = now
		if err := tx.SaveEntity(ctx, toEntity); err != nil {
			return err
		}

		sw.Status = core.SwapStatusRolledBack
		sw.RolledBackAt = &now
		sw.RolledBackBy = req.RolledBackBy
		sw.RollbackReason = req.Reason
		if err := tx.SaveSwap(ctx, sw); err != nil {
			return err
		}

		evt := &core.Event{
			ID:            uuid.NewString(),
			EventType:     core.SubjectSwapRolledBack,
			EventCategory: "swap",
			Severity:      core.EventSeverityWarning,
			EntityID:      &sw.FromEntityID,
			SwapID:        &sw.ID,
			Message:       "swap rolled back: " + req.Reason,
			UserID:        req.RolledBackBy,
			Source:        core.EventSource,
			OccurredAt:    now,
		}
		return tx.InsertEvent(ctx, evt)
	})
	if txErr != nil {
		e.logger.ErrorContext(ctx, "swap rollback transaction failed", "swap_id", req.SwapID, "error", txErr)
		return nil, fmt.Errorf("rollback swap: %w", txErr)
	}

	e.publisher.Publish(ctx, &core.Event{
		ID:         uuid.NewString(),
		EventType:  core.SubjectSwapRolledBack,
		SwapID:     &sw.ID,
		OccurredAt: time.Now().UTC(),
	}, core.JSONObject{"reason": req.Reason, "rolled_back_by": req.RolledBackBy})

	return sw, nil
}

func defaultSwapType(t core.SwapType) core.SwapType {
	if t == "" {
		return core.SwapTypeManual
	}
	return t
}

func fromEqualToResult() *core.ValidationResult {
	r := core.NewValidationResult()
	r.AddCheck("from_to_distinct", false, "")
	r.AddError("from and to entities must differ")
	return r
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
