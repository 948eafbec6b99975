// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package proxy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaizcom/vaiz-mcp/internal/observability"
)

// HealthCheckInterval is the fixed tick the prober re-mints on.
const HealthCheckInterval = 5000 * time.Millisecond

// Recovered is called at most once per DOWN→HEALTHY transition, letting
// the coordinator emit notifications/tools/list_changed downstream.
type Recovered func()

// Health tracks the HEALTHY/DOWN state machine of the upstream
// connection and owns the single background prober permitted to run
// at a time.
type Health struct {
	session *Session
	logger  *zap.Logger
	metrics *observability.Metrics

	mu           sync.Mutex
	healthy      bool
	proberActive bool
	stopProber   context.CancelFunc
}

// NewHealth returns a Health that starts HEALTHY. metrics may be nil, in
// which case state transitions are not recorded anywhere.
func NewHealth(session *Session, logger *zap.Logger, metrics *observability.Metrics) *Health {
	return &Health{session: session, logger: logger, metrics: metrics, healthy: true}
}

// recordDown and recordHealthy keep the health up/down counter at 1 while
// the upstream is marked down and 0 while healthy.
func (h *Health) recordDown(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.Health.Add(ctx, 1)
	}
}

func (h *Health) recordHealthy(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.Health.Add(ctx, -1)
	}
}

// Healthy reports the current state.
func (h *Health) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthy
}

// ProberActive reports whether a prober goroutine currently holds the
// single-active-instance slot.
func (h *Health) ProberActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proberActive
}

// MarkDown transitions HEALTHY→DOWN: clears the session id and starts the
// prober, unless one is already running, per the "at most one prober"
// invariant. onRecovered fires exactly once, on the tick that first
// re-mints successfully.
func (h *Health) MarkDown(ctx context.Context, onRecovered Recovered) {
	h.session.Clear()

	h.mu.Lock()
	wasHealthy := h.healthy
	h.healthy = false
	if h.proberActive {
		h.mu.Unlock()
		return
	}
	h.proberActive = true
	proberCtx, cancel := context.WithCancel(ctx)
	h.stopProber = cancel
	h.mu.Unlock()

	if wasHealthy {
		h.recordDown(ctx)
	}

	go h.runProber(proberCtx, onRecovered)
}

func (h *Health) runProber(ctx context.Context, onRecovered Recovered) {
	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.session.Remint(ctx); err != nil {
				h.logger.Warn("health probe re-init failed", zap.Error(err))
				continue
			}
			h.markHealthy(ctx)
			if onRecovered != nil {
				onRecovered()
			}
			return
		}
	}
}

// markHealthy performs the DOWN→HEALTHY transition's bookkeeping half;
// the caller is responsible for the recovery notification side effect.
func (h *Health) markHealthy(ctx context.Context) {
	h.mu.Lock()
	h.healthy = true
	h.proberActive = false
	stop := h.stopProber
	h.stopProber = nil
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
	h.recordHealthy(ctx)
}

// MarkUpFromRequest performs the same DOWN→HEALTHY transition when a live
// request (not the prober) succeeds while the API was marked down. It
// stops any running prober and reports whether a transition actually
// occurred, so the coordinator only notifies on real recoveries.
func (h *Health) MarkUpFromRequest(ctx context.Context) bool {
	h.mu.Lock()
	if h.healthy {
		h.mu.Unlock()
		return false
	}
	h.healthy = true
	h.proberActive = false
	stop := h.stopProber
	h.stopProber = nil
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
	h.recordHealthy(ctx)
	return true
}

// Shutdown stops any running prober without forcing a state transition,
// used on process shutdown.
func (h *Health) Shutdown() {
	h.mu.Lock()
	stop := h.stopProber
	h.stopProber = nil
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}
