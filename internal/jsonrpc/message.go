// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package jsonrpc holds the wire types the proxy shuttles between the
// local stdio peer and the upstream MCP service, and the purely
// structural request/notification classification the line framer needs.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/vaizcom/vaiz-mcp/internal/errors"
)

const Version = "2.0"

// Message is a decoded JSON-RPC object before its role (request, response,
// notification) has been established. ID is kept as json.RawMessage so a
// number id round-trips exactly and a string id is never coerced.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *errors.RPCError `json:"error,omitempty"`
}

// IsRequest reports whether raw carries an "id" key, the sole, purely
// structural signal distinguishing a request from a notification. It
// does not attempt to parse the id's value.
func IsRequest(raw json.RawMessage) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false, fmt.Errorf("not a JSON object: %w", err)
	}
	_, hasID := fields["id"]
	return hasID, nil
}

// IsResponse reports whether raw carries a "result" or "error" key,
// i.e. it is a message arriving from the upstream rather than a request
// or notification arriving from the local peer.
func IsResponse(raw json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, hasResult := fields["result"]
	_, hasError := fields["error"]
	return hasResult || hasError
}

// Response builds a successful JSON-RPC response carrying id and result.
func Response(id json.RawMessage, result json.RawMessage) *Message {
	return &Message{JSONRPC: Version, ID: id, Result: result}
}

// ErrorResponse builds a failed JSON-RPC response carrying id and err.
func ErrorResponse(id json.RawMessage, err *errors.RPCError) *Message {
	return &Message{JSONRPC: Version, ID: id, Error: err}
}

// Notification builds a JSON-RPC notification: no id, by construction.
func Notification(method string, params json.RawMessage) *Message {
	return &Message{JSONRPC: Version, Method: method, Params: params}
}

// Request builds a JSON-RPC request carrying id and method/params.
func Request(id json.RawMessage, method string, params json.RawMessage) *Message {
	return &Message{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// Method extracts the "method" field from a raw inbound object without
// fully decoding it, used before a full Message unmarshal is warranted.
func Method(raw json.RawMessage) (string, error) {
	var head struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", err
	}
	return head.Method, nil
}

// ID extracts the raw "id" field from an inbound object, or nil if absent.
func ID(raw json.RawMessage) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields["id"]
}

// Result reports whether raw carries a non-null "result" field, and
// returns it. Used by the response cache's insert-only-on-success rule.
func Result(raw json.RawMessage) (json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	result, ok := fields["result"]
	if !ok || string(result) == "null" {
		return nil, false
	}
	return result, true
}

// WithID returns a copy of raw with its "id" field replaced, used to
// rewrite a cached response's id onto the id of the request it now serves.
func WithID(raw json.RawMessage, id json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["id"] = id
	return json.Marshal(fields)
}
