// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package config loads and validates the proxy's environment-variable
// surface, defaulting and validating fields before the proxy starts.
package config

import (
	"fmt"
	"os"

	"github.com/vaizcom/vaiz-mcp/internal/observability"
)

const defaultUpstreamURL = "https://api.vaiz.com/mcp"

// Config is the validated environment the proxy runs with.
type Config struct {
	Token        string
	SpaceID      string
	UpstreamURL  string
	Debug        bool
	ExporterType observability.ExporterType
	Endpoint     string
}

// Load reads VAIZ_API_TOKEN, VAIZ_SPACE_ID, VAIZ_API_URL, VAIZ_DEBUG,
// VAIZ_OTEL_EXPORTER, and VAIZ_OTEL_ENDPOINT from the environment.
func Load() (Config, error) {
	token := os.Getenv("VAIZ_API_TOKEN")
	if token == "" {
		return Config{}, fmt.Errorf("VAIZ_API_TOKEN is required")
	}

	upstreamURL := os.Getenv("VAIZ_API_URL")
	if upstreamURL == "" {
		upstreamURL = defaultUpstreamURL
	}

	exporter := observability.ExporterType(os.Getenv("VAIZ_OTEL_EXPORTER"))
	if exporter == "" {
		exporter = observability.ExporterStdout
	}

	endpoint := os.Getenv("VAIZ_OTEL_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	return Config{
		Token:        token,
		SpaceID:      os.Getenv("VAIZ_SPACE_ID"),
		UpstreamURL:  upstreamURL,
		Debug:        os.Getenv("VAIZ_DEBUG") == "true",
		ExporterType: exporter,
		Endpoint:     endpoint,
	}, nil
}
