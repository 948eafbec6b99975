// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package observability wires the proxy's structured logging and
// OpenTelemetry metrics/tracing. None of it changes request outcomes;
// it exists so the coordinator's request lifecycle is observable end
// to end.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterType selects where metrics and traces are sent.
type ExporterType string

const (
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

const instrumentationName = "github.com/vaizcom/vaiz-mcp"

// Config controls exporter selection for Setup.
type Config struct {
	ServiceName  string
	ExporterType ExporterType
	Endpoint     string
}

// Metrics holds the instruments the coordinator records against: one
// counter per request, one per error, one retry counter, a latency
// histogram, and an up/down counter tracking the health state.
type Metrics struct {
	Requests metric.Int64Counter
	Errors   metric.Int64Counter
	Retries  metric.Int64Counter
	Latency  metric.Float64Histogram
	Health   metric.Int64UpDownCounter
}

// Provider bundles the logger, tracer, and metric instruments plus a
// combined shutdown hook that flushes both OTel providers.
type Provider struct {
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Metrics  *Metrics
	Shutdown func(ctx context.Context) error
}

// NewLogger builds a development logger when debug is set and a production
// logger otherwise, falling back to development config if that fails.
func NewLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

func newConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial otel collector: %w", err)
	}
	return conn, nil
}

// Setup builds the resource, meter provider, and tracer provider and
// returns the instruments the coordinator needs plus a shutdown hook.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	shutdownMeter, err := setupMeterProvider(ctx, res, cfg)
	if err != nil {
		return nil, err
	}
	shutdownTracer, err := setupTracerProvider(ctx, res, cfg)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(instrumentationName)
	requests, _ := meter.Int64Counter("mcp_proxy_requests_total", metric.WithDescription("Total inbound local requests"))
	errs, _ := meter.Int64Counter("mcp_proxy_errors_total", metric.WithDescription("Total requests whose handling aborted with an error"))
	retries, _ := meter.Int64Counter("mcp_proxy_retries_total", metric.WithDescription("Total upstream retry attempts"))
	latency, _ := meter.Float64Histogram("mcp_proxy_request_duration_ms", metric.WithDescription("Local request round-trip latency"), metric.WithUnit("ms"))
	health, _ := meter.Int64UpDownCounter("mcp_proxy_health_state", metric.WithDescription("1 while the upstream is marked down, 0 while healthy"))

	return &Provider{
		Logger: logger,
		Tracer: otel.Tracer(instrumentationName),
		Metrics: &Metrics{
			Requests: requests,
			Errors:   errs,
			Retries:  retries,
			Latency:  latency,
			Health:   health,
		},
		Shutdown: func(ctx context.Context) error {
			if err := shutdownMeter(ctx); err != nil {
				return err
			}
			return shutdownTracer(ctx)
		},
	}, nil
}

func setupMeterProvider(ctx context.Context, res *resource.Resource, cfg Config) (func(context.Context) error, error) {
	var exporter sdkmetric.Exporter
	var err error
	switch cfg.ExporterType {
	case ExporterOTLP:
		conn, dialErr := newConn(cfg.Endpoint)
		if dialErr != nil {
			return nil, dialErr
		}
		exporter, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	default:
		exporter, err = stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("build metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// setupTracerProvider mirrors setupMeterProvider's shape: same exporter
// switch, same resource, same SetXProvider call, for the span half of
// request instrumentation.
func setupTracerProvider(ctx context.Context, res *resource.Resource, cfg Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.ExporterType {
	case ExporterOTLP:
		conn, dialErr := newConn(cfg.Endpoint)
		if dialErr != nil {
			return nil, dialErr
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	default:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
