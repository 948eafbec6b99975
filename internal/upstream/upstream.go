// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package upstream issues the single POST per outbound message the
// coordinator needs, applying the required headers and leaving retry,
// classification, and SSE draining to the callers that own those
// concerns.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Header constants for the upstream MCP HTTP transport.
const (
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderAccept         = "Accept"
	HeaderCurrentSpaceID = "Current-Space-Id"
	HeaderSessionID      = "Mcp-Session-Id"

	ContentTypeJSON = "application/json"
	ContentTypeSSE  = "text/event-stream"
	AcceptValue     = "application/json, text/event-stream"
)

// Credentials carries the immutable parts of Session needed to compose
// headers: token and spaceID never change after startup.
type Credentials struct {
	Token       string
	SpaceID     string
	UpstreamURL string
}

// Response is the raw outcome of one POST: the retry engine classifies
// Status, the session tracker inspects Header for a session id, and the
// coordinator either drains Body as an SSE stream or decodes it directly,
// depending on its content type.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// IsSSE reports whether resp's Content-Type indicates an event stream.
func (r *Response) IsSSE() bool {
	return strings.Contains(r.Header.Get(HeaderContentType), ContentTypeSSE)
}

// Transport issues one HTTP POST per message and never retries or
// classifies outcomes itself: that is the retry engine's job.
type Transport struct {
	client *http.Client
}

// New builds a Transport over client, or http.DefaultClient if nil.
func New(client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{client: client}
}

// Post sends body to creds.UpstreamURL with the required headers,
// including Mcp-Session-Id only when sessionID is non-empty. The
// caller owns resp.Body and must close it.
func (t *Transport) Post(ctx context.Context, creds Credentials, sessionID string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	req.Header.Set(HeaderAuthorization, "Bearer "+creds.Token)
	req.Header.Set(HeaderContentType, ContentTypeJSON)
	req.Header.Set(HeaderAccept, AcceptValue)
	if creds.SpaceID != "" {
		req.Header.Set(HeaderCurrentSpaceID, creds.SpaceID)
	}
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}
