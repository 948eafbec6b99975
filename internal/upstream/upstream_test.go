// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vaizcom/vaiz-mcp/internal/upstream"
)

func TestPostSetsRequiredHeaders(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set(upstream.HeaderContentType, upstream.ContentTypeJSON)
		w.Header().Set(upstream.HeaderSessionID, "abc")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer server.Close()

	transport := upstream.New(server.Client())
	creds := upstream.Credentials{Token: "tok", SpaceID: "space-1", UpstreamURL: server.URL}

	resp, err := transport.Post(context.Background(), creds, "sess-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	defer resp.Body.Close()

	if got := gotHeaders.Get(upstream.HeaderAuthorization); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}
	if got := gotHeaders.Get(upstream.HeaderContentType); got != upstream.ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", got, upstream.ContentTypeJSON)
	}
	if got := gotHeaders.Get(upstream.HeaderCurrentSpaceID); got != "space-1" {
		t.Errorf("Current-Space-Id = %q, want %q", got, "space-1")
	}
	if got := gotHeaders.Get(upstream.HeaderSessionID); got != "sess-1" {
		t.Errorf("Mcp-Session-Id = %q, want %q", got, "sess-1")
	}
	if resp.Header.Get(upstream.HeaderSessionID) != "abc" {
		t.Errorf("response session header = %q, want %q", resp.Header.Get(upstream.HeaderSessionID), "abc")
	}
}

func TestPostOmitsOptionalHeadersWhenUnset(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
	}))
	defer server.Close()

	transport := upstream.New(server.Client())
	creds := upstream.Credentials{Token: "tok", UpstreamURL: server.URL}

	resp, err := transport.Post(context.Background(), creds, "", []byte(`{}`))
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	defer resp.Body.Close()

	if gotHeaders.Get(upstream.HeaderCurrentSpaceID) != "" {
		t.Error("expected Current-Space-Id to be omitted when spaceID is unset")
	}
	if gotHeaders.Get(upstream.HeaderSessionID) != "" {
		t.Error("expected Mcp-Session-Id to be omitted when sessionID is unset")
	}
}

func TestIsSSE(t *testing.T) {
	resp := &upstream.Response{Header: http.Header{}}
	resp.Header.Set(upstream.HeaderContentType, "text/event-stream; charset=utf-8")
	if !resp.IsSSE() {
		t.Error("expected IsSSE to be true for text/event-stream content type")
	}

	resp.Header.Set(upstream.HeaderContentType, upstream.ContentTypeJSON)
	if resp.IsSSE() {
		t.Error("expected IsSSE to be false for application/json content type")
	}
}
