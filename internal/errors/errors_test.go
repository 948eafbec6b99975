// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package errors_test

import (
	"testing"

	"github.com/vaizcom/vaiz-mcp/internal/errors"
)

func TestNoSSEMatch(t *testing.T) {
	err := errors.NoSSEMatch()

	if err.Code != errors.CodeAPIUnavailable {
		t.Errorf("expected code %d, got %d", errors.CodeAPIUnavailable, err.Code)
	}
	if err.Message != "No valid response received from SSE stream" {
		t.Errorf("unexpected message: %s", err.Message)
	}
}

func TestUnavailable(t *testing.T) {
	err := errors.Unavailable("connection refused")

	if err.Code != errors.CodeAPIUnavailable {
		t.Errorf("expected code %d, got %d", errors.CodeAPIUnavailable, err.Code)
	}
	if err.Message != "API unavailable: connection refused" {
		t.Errorf("unexpected message: %s", err.Message)
	}
}

func TestDefaultMessage(t *testing.T) {
	if got := errors.DefaultMessage(errors.CodeParseError); got != "Parse error" {
		t.Errorf("expected 'Parse error', got %q", got)
	}
	if got := errors.DefaultMessage(errors.Code(-1)); got != "Server error" {
		t.Errorf("expected fallback 'Server error', got %q", got)
	}
}
