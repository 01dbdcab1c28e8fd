package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/strategylib/control-plane/internal/core"
)

// PublisherConfig bounds the retry policy (spec §4.5/§6
// RETRY_MAX_ATTEMPTS, RETRY_BACKOFF_CAP_SEC).
type PublisherConfig struct {
	MaxAttempts      int
	InitialInterval  time.Duration
	BackoffFactor    float64
	MaxIntervalCap   time.Duration
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		BackoffFactor:   2.0,
		MaxIntervalCap:  30 * time.Second,
	}
}

// Publisher serializes domain events to the wire Envelope and publishes
// them on the bus after the caller's store transaction has committed
// (spec §4.5, §5: "publish events only after commit"). Publish is
// fire-and-forget from the caller's perspective: the retry loop runs on
// its own goroutine so a slow or down bus never holds an HTTP handler's
// goroutine for the backoff window. A publish failure is logged and
// never propagated to the caller; callers read the last delivery error via Healthy to
// surface bus degradation on /health/detailed.
type Publisher struct {
	bus    Bus
	cfg    PublisherConfig
	logger *slog.Logger
	metrics *publisherMetrics

	mu      sync.Mutex
	lastErr error
}

func NewPublisher(bus Bus, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{bus: bus, cfg: cfg, logger: logger.With("component", "event_publisher"), metrics: newPublisherMetrics()}
}

// Publish builds an Envelope from e and data and hands it off to a
// background goroutine that retries on transport error with exponential
// backoff bounded by cfg, swallowing the final failure rather than
// surfacing it to the caller. Publish itself never blocks on the bus.
func (p *Publisher) Publish(ctx context.Context, e *core.Event, data core.JSONObject) {
	env := core.Envelope{
		EventID:      e.ID,
		EventType:    e.EventType,
		OccurredAt:   e.OccurredAt,
		Source:       core.EventSource,
		EntityID:     e.EntityID,
		DeploymentID: e.DeploymentID,
		SwapID:       e.SwapID,
		Data:         data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to marshal event envelope", "event_id", e.ID, "error", err)
		return
	}

	// Detach from the caller's context so a request that finishes (and
	// cancels its context) before the backoff window elapses doesn't cut
	// the retry loop short.
	bgCtx := context.WithoutCancel(ctx)
	go p.deliver(bgCtx, e.ID, e.EventType, payload)
}

func (p *Publisher) deliver(ctx context.Context, eventID, eventType string, payload []byte) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialInterval
	bo.Multiplier = p.cfg.BackoffFactor
	bo.MaxInterval = p.cfg.MaxIntervalCap
	bounded := backoff.WithMaxRetries(bo, uint64(p.cfg.MaxAttempts-1))
	withCtx := backoff.WithContext(bounded, ctx)

	start := time.Now()
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return p.bus.Publish(ctx, eventType, payload)
	}, withCtx)

	p.metrics.publishDuration.Observe(time.Since(start).Seconds())
	p.setLastErr(err)
	if err != nil {
		p.metrics.publishFailures.WithLabelValues(eventType).Inc()
		p.logger.Error("event publish exhausted retries, degrading gracefully",
			"event_id", eventID, "subject", eventType, "attempts", attempts, "error", err)
		return
	}
	p.metrics.publishTotal.WithLabelValues(eventType).Inc()
}

func (p *Publisher) setLastErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

// Healthy reports whether the most recent publish attempt succeeded,
// surfaced on GET /health/detailed (spec §4.7).
func (p *Publisher) Healthy() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr == nil, p.lastErr
}

// NewEventID generates an opaque event identifier.
func NewEventID() string {
	return uuid.NewString()
}
