// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package proxy

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vaizcom/vaiz-mcp/internal/upstream"
)

// decodeJSONBody reads resp's non-SSE body as one JSON object. It does
// not close the body; callers already defer that.
func decodeJSONBody(resp *upstream.Response) (json.RawMessage, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse response body: %w", err)
	}
	return raw, nil
}
