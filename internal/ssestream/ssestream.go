// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package ssestream drains a Server-Sent-Events response body, forwarding
// every parsed data object to the caller and tracking whether the
// originating request's id was ever echoed back.
package ssestream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/vaizcom/vaiz-mcp/internal/jsonrpc"
)

const dataPrefix = "data: "
const doneSentinel = "[DONE]"

// Forward is called once per successfully parsed data object, in
// arrival order, before Drain returns.
type Forward func(raw json.RawMessage)

// Drain reads body to completion (or until an I/O error), splitting on
// "\n" and handling each "data: " line. body is closed before Drain
// returns, win or lose. requestID is the id Drain is watching for; matched
// reports whether any forwarded object carried that id.
func Drain(body io.ReadCloser, requestID json.RawMessage, forward Forward) (matched bool, err error) {
	defer body.Close()

	reader := bufio.NewReader(body)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if m := handleLine(line, requestID, forward); m {
				matched = true
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return matched, nil
			}
			return matched, readErr
		}
	}
}

func handleLine(line string, requestID json.RawMessage, forward Forward) bool {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" || payload == doneSentinel {
		return false
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return false
	}

	forward(raw)

	id := jsonrpc.ID(raw)
	return len(requestID) > 0 && bytes.Equal(id, requestID)
}
