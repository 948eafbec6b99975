// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package observability_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/vaizcom/vaiz-mcp/internal/observability"
)

func TestSetupWithStdoutExporterNeedsNoNetwork(t *testing.T) {
	provider, err := observability.Setup(context.Background(), observability.Config{
		ServiceName:  "vaiz-mcp-proxy-test",
		ExporterType: observability.ExporterStdout,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if provider.Tracer == nil {
		t.Error("expected a non-nil tracer")
	}
	if provider.Metrics.Requests == nil {
		t.Error("expected a non-nil request counter")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestNewLoggerReturnsLoggerInBothModes(t *testing.T) {
	if logger := observability.NewLogger(true); logger == nil {
		t.Error("expected a non-nil development logger")
	}
	if logger := observability.NewLogger(false); logger == nil {
		t.Error("expected a non-nil production logger")
	}
}
