// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package proxy implements the bidirectional bridge between a local
// newline-delimited JSON-RPC stdio peer and a remote MCP service reached
// over HTTP, orchestrating session management, retries, caching, and
// health probing around a single request coordinator.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vaizcom/vaiz-mcp/internal/errors"
	"github.com/vaizcom/vaiz-mcp/internal/framing"
	"github.com/vaizcom/vaiz-mcp/internal/jsonrpc"
	"github.com/vaizcom/vaiz-mcp/internal/observability"
	"github.com/vaizcom/vaiz-mcp/internal/retry"
	"github.com/vaizcom/vaiz-mcp/internal/ssestream"
	"github.com/vaizcom/vaiz-mcp/internal/upstream"
)

// emit writes one JSON-RPC object downstream; it is threaded through the
// attempt/success/exhaustion helpers instead of being a Coordinator
// method so tests can intercept it without a real Framer.
type emit func(json.RawMessage)

// Coordinator owns the local line framer, the session, cache, and health
// state, and drives one retry/backoff state machine per inbound request.
type Coordinator struct {
	creds     upstream.Credentials
	transport *upstream.Transport
	framer    *framing.Framer
	session   *Session
	cache     *Cache
	health    *Health
	logger    *zap.Logger
	obs       *observability.Provider

	rootCtx context.Context
}

// New wires every component together. obs may be nil, in which case
// tracing/metrics calls are no-ops.
func New(creds upstream.Credentials, transport *upstream.Transport, out io.Writer, logger *zap.Logger, obs *observability.Provider) *Coordinator {
	cache := NewCache()
	session := NewSession(creds, transport, cache, logger)
	var metrics *observability.Metrics
	if obs != nil {
		metrics = obs.Metrics
	}
	return &Coordinator{
		creds:     creds,
		transport: transport,
		framer:    framing.New(logger, out),
		session:   session,
		cache:     cache,
		health:    NewHealth(session, logger, metrics),
		logger:    logger,
		obs:       obs,
	}
}

// Run reads newline-delimited JSON-RPC objects from in until EOF or ctx
// cancellation, dispatching each to the notification or request path.
// It returns nil on a clean shutdown.
func (c *Coordinator) Run(ctx context.Context, in io.Reader) error {
	c.rootCtx = ctx
	defer c.health.Shutdown()

	err := c.framer.Listen(ctx, in, func(ctx context.Context, raw json.RawMessage, isRequest bool) {
		if isRequest {
			c.handleRequest(ctx, raw)
		} else {
			c.handleNotification(ctx, raw)
		}
	})
	if err == context.Canceled || err == context.DeadlineExceeded {
		return nil
	}
	return err
}

// handleNotification forwards a local notification upstream fire-and-forget,
// flipping the initialized flag first when it is notifications/initialized.
func (c *Coordinator) handleNotification(ctx context.Context, raw json.RawMessage) {
	method, err := jsonrpc.Method(raw)
	if err != nil {
		c.logger.Error("notification missing method", zap.Error(err))
		return
	}
	if method == "notifications/initialized" {
		c.session.SetInitialized(true)
	}

	go func() {
		resp, err := c.transport.Post(context.Background(), c.creds, c.session.ID(), raw)
		if err != nil {
			c.logger.Debug("fire-and-forget notification failed", zap.String("method", method), zap.Error(err))
			return
		}
		resp.Body.Close()
	}()
}

// handleRequest runs the full request path: capture init params, attempt
// with retries, and emit exactly one terminal response carrying the
// request's id (plus, for SSE, every object the stream forwards first).
func (c *Coordinator) handleRequest(ctx context.Context, raw json.RawMessage) {
	start := time.Now()
	id := jsonrpc.ID(raw)
	method, err := jsonrpc.Method(raw)
	if err != nil {
		c.logger.Error("request missing method", zap.Error(err))
		return
	}

	corrID := uuid.NewString()
	logger := c.logger.With(zap.String("corr_id", corrID), zap.String("method", method))

	if c.obs != nil {
		var span trace.Span
		ctx, span = c.obs.Tracer.Start(ctx, "mcp.proxy.request", trace.WithAttributes(
			attribute.String("mcp.method", method),
			attribute.String("mcp.corr_id", corrID),
		))
		defer span.End()
		c.obs.Metrics.Requests.Add(ctx, 1)
		defer func() {
			c.obs.Metrics.Latency.Record(ctx, float64(time.Since(start).Milliseconds()))
		}()
	}

	if method == "initialize" {
		var head struct {
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(raw, &head); err == nil {
			c.session.CaptureInitParams(head.Params)
		}
	}

	write := func(v json.RawMessage) {
		if err := c.framer.Write(v); err != nil {
			c.logger.Error("failed writing downstream response", zap.Error(err))
		}
	}

	if err := c.send(ctx, id, method, []byte(raw), write); err != nil {
		logger.Error("request handling aborted", zap.Error(err))
		c.fail(ctx, method, id, write, err, false)
		if c.obs != nil {
			c.obs.Metrics.Errors.Add(ctx, 1)
			trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())
		}
	}
}

// send drives the retry/backoff state machine over a single request,
// dispatching to succeed or fail once it resolves.
func (c *Coordinator) send(ctx context.Context, id json.RawMessage, method string, body []byte, write emit) error {
	schedule := retry.NewBackOff()
	staleSessionRetried := false
	var lastErr error

	for attempt := 1; ; attempt++ {
		resp, err := c.transport.Post(ctx, c.creds, c.session.ID(), body)
		if err != nil {
			lastErr = err
			if retry.Classify(err) != retry.ClassTransient {
				// A fatal transport error (not a dial/timeout/DNS failure by
				// type or message) never entered the retry loop, so it must
				// not trip the health machine either.
				return c.fail(ctx, method, id, write, lastErr, false)
			}
			c.session.Clear()
			if attempt > retry.MaxRetries {
				return c.fail(ctx, method, id, write, lastErr, true)
			}
			c.recordRetry(ctx)
			if serr := retry.Sleep(ctx, schedule); serr != nil {
				return serr
			}
			continue
		}

		c.session.CaptureFromResponse(resp.Header)

		if resp.Status >= 200 && resp.Status < 300 {
			return c.succeed(ctx, resp, id, method, write)
		}

		class := retry.StatusClass(resp.Status)
		resp.Body.Close()
		lastErr = fmt.Errorf("upstream returned status %d for %s", resp.Status, method)

		if class == retry.ClassStaleSession && !staleSessionRetried {
			staleSessionRetried = true
			if remintErr := c.session.Remint(ctx); remintErr != nil {
				return c.fail(ctx, method, id, write, remintErr, true)
			}
			attempt-- // the re-mint detour doesn't count against the retry budget
			continue
		}

		if class == retry.ClassRetryableStatus && attempt <= retry.MaxRetries {
			c.recordRetry(ctx)
			if serr := retry.Sleep(ctx, schedule); serr != nil {
				return serr
			}
			continue
		}

		// A ClassFatal status (401/403, or anything else StatusClass doesn't
		// recognize) stops here on the very first attempt: it never consumed
		// a retry, so it must not mark the upstream down either. Reaching
		// here with ClassRetryableStatus or ClassStaleSession instead means
		// the retry budget (or the one re-mint attempt) is genuinely spent.
		return c.fail(ctx, method, id, write, lastErr, class != retry.ClassFatal)
	}
}

func (c *Coordinator) recordRetry(ctx context.Context) {
	if c.obs != nil {
		c.obs.Metrics.Retries.Add(ctx, 1)
	}
}

// succeed branches on whether the upstream answered with SSE or a single
// JSON object, applying the "API is back" side effect (unless this very
// request is the tools/list that proves it) once that response is fully
// resolved: immediately for a JSON body, only after the stream has
// finished draining for SSE, so every forwarded object still precedes the
// recovery notification on the wire.
func (c *Coordinator) succeed(ctx context.Context, resp *upstream.Response, id json.RawMessage, method string, write emit) error {
	if resp.IsSSE() {
		return c.succeedSSE(ctx, resp, id, method, write)
	}
	if c.health.MarkUpFromRequest(ctx) && method != "tools/list" {
		c.emitToolsListChanged(write)
	}
	return c.succeedJSON(resp, method, write)
}

func (c *Coordinator) succeedJSON(resp *upstream.Response, method string, write emit) error {
	defer resp.Body.Close()
	raw, err := decodeJSONBody(resp)
	if err != nil {
		return err
	}
	if _, ok := jsonrpc.Result(raw); ok && Cacheable(method) {
		c.cache.Put(method, raw)
	}
	write(raw)
	return nil
}

// succeedSSE drains the stream, forwarding every parsed object downstream
// before this function returns, and caches the one object (if any) whose
// id matched the originating request. The recovery notification, if any,
// is only emitted once Drain has returned, so it never precedes an object
// the stream itself forwarded.
func (c *Coordinator) succeedSSE(ctx context.Context, resp *upstream.Response, id json.RawMessage, method string, write emit) error {
	var matchedRaw json.RawMessage
	var hasMatchedResult bool

	matched, err := ssestream.Drain(resp.Body, id, func(raw json.RawMessage) {
		write(raw)
		if bytes.Equal(jsonrpc.ID(raw), id) {
			if _, ok := jsonrpc.Result(raw); ok {
				matchedRaw = raw
				hasMatchedResult = true
			}
		}
	})
	if err != nil && !matched {
		return err
	}

	if c.health.MarkUpFromRequest(ctx) && method != "tools/list" {
		c.emitToolsListChanged(write)
	}

	if hasMatchedResult && Cacheable(method) {
		c.cache.Put(method, matchedRaw)
	}
	if !matched {
		write(marshalMessage(jsonrpc.ErrorResponse(id, errors.NoSSEMatch())))
	}
	return nil
}

// fail is reached once a request's retry/backoff life cycle is over with
// no successful response: either a fatal status/error stopped it on the
// first attempt, the retry budget (or the one re-mint attempt) ran out, a
// re-mint itself failed, or send aborted with an error (an unreadable
// response body, a failed stream read, or cancellation). markDown gates whether this also trips the
// health state machine: per the "exactly one trigger" rule, only a genuine
// exhaustion should mark the upstream down, not a single fatal status like
// 401/403 that never consumed a retry. Once resolved, it answers from
// cache (or the empty-tools/synthesized-error fallback) depending on method.
func (c *Coordinator) fail(ctx context.Context, method string, id json.RawMessage, write emit, lastErr error, markDown bool) error {
	if markDown {
		c.health.MarkDown(c.rootCtx, func() { c.emitToolsListChanged(write) })
	}

	switch method {
	case "tools/list":
		if cached, ok := c.cache.Get("tools/list"); ok {
			rewritten, err := jsonrpc.WithID(cached, id)
			if err == nil {
				write(rewritten)
				return nil
			}
		}
		write(marshalMessage(jsonrpc.Response(id, json.RawMessage(`{"tools":[]}`))))
		return nil
	case "initialize":
		if cached, ok := c.cache.Get("initialize"); ok {
			if rewritten, err := jsonrpc.WithID(cached, id); err == nil {
				write(rewritten)
				return nil
			}
		}
		write(marshalMessage(jsonrpc.ErrorResponse(id, errors.Unavailable(reasonOf(lastErr)))))
		return nil
	default:
		write(marshalMessage(jsonrpc.ErrorResponse(id, errors.Unavailable(reasonOf(lastErr)))))
		return nil
	}
}

// emitToolsListChanged writes the recovery-side push notification once
// the upstream connection transitions back to healthy.
func (c *Coordinator) emitToolsListChanged(write emit) {
	write(marshalMessage(jsonrpc.Notification("notifications/tools/list_changed", nil)))
}

func marshalMessage(msg *jsonrpc.Message) json.RawMessage {
	data, err := json.Marshal(msg)
	if err != nil {
		return json.RawMessage(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"}}`)
	}
	return data
}

func reasonOf(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
