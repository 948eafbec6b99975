// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

type classifiedErr struct {
	class Class
}

func (e classifiedErr) Error() string     { return "classified" }
func (e classifiedErr) RetryClass() Class { return e.class }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{"nil error is fatal", nil, ClassFatal},
		{
			"net.OpError (dial refused) is transient by type, regardless of message",
			&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			ClassTransient,
		},
		{
			"net.DNSError (lookup failure) is transient by type",
			&net.DNSError{Err: "no such host", Name: "upstream.invalid", IsNotFound: true},
			ClassTransient,
		},
		{"wrapped net.Error is still transient through errors.As", fmt.Errorf("post request: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("i/o timeout")}), ClassTransient},
		{"connection refused substring", errors.New("dial tcp 127.0.0.1:9: connect: connection refused"), ClassTransient},
		{"connection reset substring", errors.New("read: connection reset by peer"), ClassTransient},
		{"exact EOF", io.EOF, ClassTransient},
		{"EOF suffix in wrapped message", errors.New("unexpected EOF"), ClassFatal}, // doesn't match the exact/": eof" forms
		{"unrelated error is fatal", errors.New("schema validation failed"), ClassFatal},
		{"structured classifier wins over message text", classifiedErr{class: ClassStaleSession}, ClassStaleSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status   int
		expected Class
	}{
		{400, ClassStaleSession},
		{404, ClassStaleSession},
		{429, ClassRetryableStatus},
		{500, ClassRetryableStatus},
		{503, ClassRetryableStatus},
		{401, ClassFatal},
		{403, ClassFatal},
	}

	for _, tt := range tests {
		if got := StatusClass(tt.status); got != tt.expected {
			t.Errorf("StatusClass(%d) = %v, expected %v", tt.status, got, tt.expected)
		}
	}
}

func TestNewBackOffSchedule(t *testing.T) {
	b := NewBackOff()

	// Exact 1000/2000/4000ms schedule, no jitter.
	first := b.NextBackOff()
	second := b.NextBackOff()
	third := b.NextBackOff()

	if first != RetryDelay {
		t.Errorf("first delay = %v, expected %v", first, RetryDelay)
	}
	if second != 2*RetryDelay {
		t.Errorf("second delay = %v, expected %v", second, 2*RetryDelay)
	}
	if third != 4*RetryDelay {
		t.Errorf("third delay = %v, expected %v", third, 4*RetryDelay)
	}
}

func TestSleepRespectsCancellation(t *testing.T) {
	b := NewBackOff()
	b.InitialInterval = time.Hour
	b.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := Sleep(ctx, b); err != context.DeadlineExceeded {
		t.Errorf("Sleep() = %v, expected context.DeadlineExceeded", err)
	}
}
