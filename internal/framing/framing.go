// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package framing reads and writes newline-delimited JSON-RPC objects on
// the local stdio streams and classifies each inbound line structurally.
package framing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vaizcom/vaiz-mcp/internal/jsonrpc"
)

// Framer owns the local stdin reader and serializes every stdout write so
// two outbound objects never interleave on a single line.
type Framer struct {
	logger *zap.Logger

	writer io.Writer
	outMu  sync.Mutex
}

// New wraps writer (normally os.Stdout) for serialized line writes.
func New(logger *zap.Logger, writer io.Writer) *Framer {
	return &Framer{logger: logger, writer: writer}
}

// Handler processes one decoded inbound line. isRequest reflects the
// purely structural id-key test from jsonrpc.IsRequest.
type Handler func(ctx context.Context, raw json.RawMessage, isRequest bool)

// Listen reads reader line by line until EOF, ctx cancellation, or a fatal
// read error, dispatching each well-formed line to handle on its own
// goroutine so a slow request never blocks the next line from being read.
func (f *Framer) Listen(ctx context.Context, reader io.Reader, handle Handler) error {
	br := bufio.NewReader(reader)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := f.readLine(ctx, br)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			f.logger.Error("invalid JSON on stdin", zap.String("line", line), zap.Error(err))
			continue
		}
		isRequest, err := jsonrpc.IsRequest(raw)
		if err != nil {
			f.logger.Error("inbound object was not a JSON object", zap.String("line", line), zap.Error(err))
			continue
		}
		go handle(ctx, raw, isRequest)
	}
}

// readLine reads one line, but returns promptly if ctx is cancelled even
// though bufio.Reader.ReadString has no native cancellation.
func (f *Framer) readLine(ctx context.Context, br *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	out := make(chan result, 1)
	go func() {
		line, err := br.ReadString('\n')
		out <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-out:
		return r.line, r.err
	}
}

// Write marshals v and writes it as a single line, flushed immediately.
// Concurrent calls are serialized so no two outbound objects interleave.
func (f *Framer) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	data = append(data, '\n')

	f.outMu.Lock()
	defer f.outMu.Unlock()
	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write outbound message: %w", err)
	}
	if flusher, ok := f.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}
