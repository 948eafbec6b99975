// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Command vaiz-mcp-proxy bridges a local newline-delimited JSON-RPC
// stdio peer (an MCP client) and the Vaiz MCP service reached over
// HTTPS, minting and re-minting a session, retrying transient failures,
// and answering initialize/tools/list from cache while the upstream is
// down.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	proxy "github.com/vaizcom/vaiz-mcp"
	"github.com/vaizcom/vaiz-mcp/internal/config"
	"github.com/vaizcom/vaiz-mcp/internal/observability"
	"github.com/vaizcom/vaiz-mcp/internal/upstream"
)

const version = "1.0.0"

const usage = `vaiz-mcp-proxy bridges stdio MCP clients to the Vaiz MCP HTTP service.

Usage:
  vaiz-mcp-proxy            run the proxy over stdin/stdout
  vaiz-mcp-proxy --help     show this help
  vaiz-mcp-proxy --version  print the version

Environment:
  VAIZ_API_TOKEN       required bearer token for the upstream service
  VAIZ_SPACE_ID        optional Current-Space-Id header value
  VAIZ_API_URL         upstream endpoint (default https://api.vaiz.com/mcp)
  VAIZ_DEBUG           "true" for verbose logging
  VAIZ_OTEL_EXPORTER   "stdout" (default) or "otlp"
  VAIZ_OTEL_ENDPOINT   OTLP collector address (default localhost:4317)
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "--help", "-h":
			fmt.Print(usage)
			return 0
		case "--version", "-v":
			fmt.Println(version)
			return 0
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := observability.NewLogger(cfg.Debug)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  "vaiz-mcp-proxy",
		ExporterType: cfg.ExporterType,
		Endpoint:     cfg.Endpoint,
	}, logger)
	if err != nil {
		logger.Error("observability setup failed, continuing without it", zap.Error(err))
		obs = nil
	} else {
		defer obs.Shutdown(context.Background())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	creds := upstream.Credentials{Token: cfg.Token, SpaceID: cfg.SpaceID, UpstreamURL: cfg.UpstreamURL}
	transport := upstream.New(nil)
	coordinator := proxy.New(creds, transport, os.Stdout, logger, obs)

	if err := coordinator.Run(ctx, os.Stdin); err != nil {
		logger.Error("proxy exited with error", zap.Error(err))
		return 1
	}
	return 0
}
