// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package retry classifies upstream failures and schedules the bounded
// exponential backoff the request coordinator retries under.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// MaxRetries and RetryDelay fix the proxy's backoff schedule: 1s, 2s, 4s
// before attempts 2, 3, 4 of a 4-attempt cycle.
const (
	MaxRetries    = 3
	RetryDelay    = 1000 * time.Millisecond
	backoffFactor = 2.0
)

// Class is the outcome of classifying a failed attempt.
type Class int

const (
	// ClassFatal means stop immediately; do not retry.
	ClassFatal Class = iota
	// ClassTransient means a network-layer failure; retry and clear the session.
	ClassTransient
	// ClassRetryableStatus means a 5xx/429 upstream status; retry as-is.
	ClassRetryableStatus
	// ClassStaleSession means a 400/404 upstream status; re-mint once, then retry.
	ClassStaleSession
)

// Classifier lets an error expose its retry class directly, bypassing the
// textual fallback below. Transport-layer error types should implement it.
type Classifier interface {
	RetryClass() Class
}

// transientSubstrings matches the shapes Go's net/http stack actually
// produces (http.Client.Do wrapping *net.OpError/*net.DNSError text),
// not the original Node error names.
var transientSubstrings = []string{
	"connection refused", "connection reset", "connection timeout",
	"connection lost", "connection aborted",
	"i/o timeout", "read timeout", "write timeout", "dial timeout",
	"no such host",
}

// Classify determines the retry class of a transport-layer error. Errors
// implementing Classifier are trusted directly. A net.Error anywhere in
// the chain (dial failures, timeouts, DNS lookups) is transient by type,
// regardless of its message. Everything else falls back to a
// case-insensitive substring match, kept for errors from opaque
// dependencies that don't wrap a net.Error.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	if c, ok := err.(Classifier); ok {
		return c.RetryClass()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}
	low := strings.ToLower(err.Error())
	if low == "eof" || strings.HasSuffix(low, ": eof") {
		return ClassTransient
	}
	for _, s := range transientSubstrings {
		if strings.Contains(low, s) {
			return ClassTransient
		}
	}
	return ClassFatal
}

// StatusClass maps an upstream HTTP status code to a retry class.
func StatusClass(status int) Class {
	switch {
	case status == 400 || status == 404:
		return ClassStaleSession
	case status == 429 || status >= 500:
		return ClassRetryableStatus
	default:
		return ClassFatal
	}
}

// NewBackOff builds the fixed schedule MAX_RETRIES/RETRY_DELAY_MS describe:
// RandomizationFactor is zeroed so the sequence is exactly 1000/2000/4000ms.
// Reset recomputes currentInterval from the fields above; without it the
// first NextBackOff would still return the constructor's 500ms default.
func NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryDelay
	b.Multiplier = backoffFactor
	b.RandomizationFactor = 0
	b.MaxInterval = RetryDelay * 4
	b.Reset()
	return b
}

// Sleep blocks for the next scheduled delay or returns ctx.Err() if the
// context is cancelled first.
func Sleep(ctx context.Context, b *backoff.ExponentialBackOff) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.NextBackOff()):
		return nil
	}
}
