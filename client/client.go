// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package client is a thin one-shot MCP client: it issues single
// requests directly against an upstream endpoint without the stdio
// duplexing the proxy provides, for callers that just need Initialize,
// ListTools, or CallTool without running the full coordinator.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/vaizcom/vaiz-mcp/internal/errors"
	"github.com/vaizcom/vaiz-mcp/internal/jsonrpc"
	"github.com/vaizcom/vaiz-mcp/internal/retry"
	"github.com/vaizcom/vaiz-mcp/internal/upstream"
)

// State reflects the two states this thin client actually passes
// through: it never models a pre-handshake "connected but not
// initialized" step.
type State string

const (
	StateDisconnected State = "disconnected"
	StateInitialized  State = "initialized"
)

// Client issues single JSON-RPC calls against an upstream MCP endpoint.
type Client struct {
	creds     upstream.Credentials
	transport *upstream.Transport
	sessionID atomic.Value // string

	requestID   atomic.Int64
	initialized atomic.Bool
}

// NewClient builds a Client against upstreamURL, authenticating with
// token (and, if non-empty, scoping requests to spaceID). httpClient may
// be nil to use http.DefaultClient.
func NewClient(upstreamURL, token, spaceID string, httpClient *http.Client) *Client {
	c := &Client{
		creds:     upstream.Credentials{Token: token, SpaceID: spaceID, UpstreamURL: upstreamURL},
		transport: upstream.New(httpClient),
	}
	c.sessionID.Store("")
	return c
}

// State reports whether Initialize has completed successfully.
func (c *Client) State() State {
	if c.initialized.Load() {
		return StateInitialized
	}
	return StateDisconnected
}

// SessionID returns the id carried by the most recent upstream response
// that set Mcp-Session-Id (whatever its status), or "" if none has yet.
func (c *Client) SessionID() string {
	return c.sessionID.Load().(string)
}

func (c *Client) nextID() json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", c.requestID.Add(1)))
}

// Initialize performs the initialize handshake and, on success, sends
// notifications/initialized, swallowing any error from that notification
// the way the proxy's own Session.Remint does.
func (c *Client) Initialize(ctx context.Context, params json.RawMessage) error {
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	c.initialized.Store(true)

	if notif, err := json.Marshal(jsonrpc.Notification("notifications/initialized", nil)); err == nil {
		if resp, err := c.transport.Post(ctx, c.creds, c.SessionID(), notif); err == nil {
			resp.Body.Close()
		}
	}
	return nil
}

// ListTools calls tools/list and returns the raw result.
func (c *Client) ListTools(ctx context.Context) (json.RawMessage, error) {
	if !c.initialized.Load() {
		return nil, fmt.Errorf("client not initialized")
	}
	return c.call(ctx, "tools/list", nil)
}

// CallTool calls tools/call with params and returns the raw result.
func (c *Client) CallTool(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	if !c.initialized.Load() {
		return nil, fmt.Errorf("client not initialized")
	}
	return c.call(ctx, "tools/call", params)
}

// call issues a single request with the retry/backoff schedule
// internal/retry defines, reusing the same classification the proxy's
// coordinator relies on for consistent behavior against the same upstream.
func (c *Client) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	id := c.nextID()
	body, err := json.Marshal(jsonrpc.Request(id, method, params))
	if err != nil {
		return nil, err
	}

	schedule := retry.NewBackOff()
	var lastErr error
	for attempt := 1; attempt <= retry.MaxRetries+1; attempt++ {
		resp, err := c.transport.Post(ctx, c.creds, c.SessionID(), body)
		if err != nil {
			lastErr = err
			if retry.Classify(err) != retry.ClassTransient || attempt > retry.MaxRetries {
				break
			}
			if serr := retry.Sleep(ctx, schedule); serr != nil {
				return nil, serr
			}
			continue
		}

		if sid := resp.Header.Get(upstream.HeaderSessionID); sid != "" {
			c.sessionID.Store(sid)
		}

		if resp.Status >= 200 && resp.Status < 300 {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, readErr
			}
			if !json.Valid(data) {
				return nil, fmt.Errorf("decode %s response: invalid JSON body", method)
			}
			raw := json.RawMessage(data)
			if errResult, ok := extractError(raw); ok {
				return nil, errResult
			}
			result, _ := jsonrpc.Result(raw)
			return result, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("upstream returned status %d for %s", resp.Status, method)
		if retry.StatusClass(resp.Status) == retry.ClassRetryableStatus && attempt <= retry.MaxRetries {
			if serr := retry.Sleep(ctx, schedule); serr != nil {
				return nil, serr
			}
			continue
		}
		break
	}
	return nil, fmt.Errorf("%s failed: %w", method, lastErr)
}

func extractError(raw json.RawMessage) (error, bool) {
	var head struct {
		Error *errors.RPCError `json:"error"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Error == nil {
		return nil, false
	}
	return head.Error, true
}
