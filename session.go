// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vaizcom/vaiz-mcp/internal/jsonrpc"
	"github.com/vaizcom/vaiz-mcp/internal/upstream"
)

const (
	clientName    = "vaiz-mcp-proxy"
	clientVersion = "1.0.0"
)

var defaultInitParams = json.RawMessage(`{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"` +
	clientName + `","version":"` + clientVersion + `"}}`)

// Session holds the immutable upstream credentials, and the mutable
// session id / init-params / initialized flag that only the
// coordinator and the prober ever touch.
type Session struct {
	creds     upstream.Credentials
	transport *upstream.Transport
	cache     *Cache
	logger    *zap.Logger

	mu             sync.Mutex
	sessionID      string
	lastInitParams json.RawMessage
	initialized    bool

	reinitCounter atomic.Int64
}

// NewSession builds a Session bound to transport for upstream calls and
// cache for storing the re-mint's initialize response.
func NewSession(creds upstream.Credentials, transport *upstream.Transport, cache *Cache, logger *zap.Logger) *Session {
	return &Session{creds: creds, transport: transport, cache: cache, logger: logger}
}

// ID returns the current session id, or "" if none is set.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// CaptureFromResponse overwrites sessionID whenever header carries
// Mcp-Session-Id, on any upstream response that sets it.
func (s *Session) CaptureFromResponse(header http.Header) {
	id := header.Get(upstream.HeaderSessionID)
	if id == "" {
		return
	}
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

// Clear drops the session id, invoked on a transient transport failure
// before any retry, and as a side effect of the API going down.
func (s *Session) Clear() {
	s.mu.Lock()
	s.sessionID = ""
	s.mu.Unlock()
}

// CaptureInitParams remembers params from a local initialize request so
// Remint can replay the same handshake.
func (s *Session) CaptureInitParams(params json.RawMessage) {
	s.mu.Lock()
	s.lastInitParams = params
	s.mu.Unlock()
}

// Initialized reports whether a successful initialize exchange has
// occurred, directly or via Remint.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// SetInitialized flips the initialized flag, used by the coordinator when
// the local peer sends notifications/initialized.
func (s *Session) SetInitialized(v bool) {
	s.mu.Lock()
	s.initialized = v
	s.mu.Unlock()
}

// Remint performs a fresh initialize + notifications/initialized pair,
// unconditionally dropping the current session id and initialized flag
// first, so a half-finished re-mint never leaves stale state behind.
func (s *Session) Remint(ctx context.Context) error {
	s.mu.Lock()
	s.sessionID = ""
	s.initialized = false
	params := s.lastInitParams
	s.mu.Unlock()
	if params == nil {
		params = defaultInitParams
	}

	id := json.RawMessage(fmt.Sprintf(`"_reinit_%d"`, s.reinitCounter.Add(1)))
	body, err := json.Marshal(jsonrpc.Request(id, "initialize", params))
	if err != nil {
		return fmt.Errorf("marshal re-init request: %w", err)
	}

	resp, err := s.transport.Post(ctx, s.creds, "", body)
	if err != nil {
		return fmt.Errorf("re-init request failed: %w", err)
	}
	defer resp.Body.Close()

	s.CaptureFromResponse(resp.Header)
	if resp.Status < 200 || resp.Status >= 300 {
		return fmt.Errorf("re-init request returned status %d", resp.Status)
	}

	raw, err := decodeJSONBody(resp)
	if err != nil {
		return fmt.Errorf("decode re-init response: %w", err)
	}
	if _, ok := jsonrpc.Result(raw); ok {
		s.cache.Put("initialize", raw)
	}

	s.SetInitialized(true)
	go s.sendInitializedNotification(context.Background())
	return nil
}

// sendInitializedNotification fires notifications/initialized
// fire-and-forget, swallowing any error.
func (s *Session) sendInitializedNotification(ctx context.Context) {
	body, err := json.Marshal(jsonrpc.Notification("notifications/initialized", nil))
	if err != nil {
		return
	}
	resp, err := s.transport.Post(ctx, s.creds, s.ID(), body)
	if err != nil {
		s.logger.Debug("fire-and-forget notifications/initialized failed", zap.Error(err))
		return
	}
	resp.Body.Close()
}
