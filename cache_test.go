// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package proxy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheOnlyTracksRestrictedKeySet(t *testing.T) {
	c := NewCache()

	c.Put("tools/list", json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`))
	c.Put("initialize", json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	c.Put("tools/call", json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{}}`))

	_, ok := c.Get("tools/list")
	assert.True(t, ok, "expected tools/list to be cached")

	_, ok = c.Get("initialize")
	assert.True(t, ok, "expected initialize to be cached")

	_, ok = c.Get("tools/call")
	assert.False(t, ok, "expected tools/call to be rejected by Cacheable's key restriction")
}

func TestCacheOverwritesOnFreshSuccess(t *testing.T) {
	c := NewCache()
	c.Put("tools/list", json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{"tools":[{"name":"a"}]}}`))
	c.Put("tools/list", json.RawMessage(`{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"b"}]}}`))

	got, ok := c.Get("tools/list")
	require.True(t, ok, "expected an entry")
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"b"}]}}`, string(got))
}

func TestCacheableKeySet(t *testing.T) {
	assert.True(t, Cacheable("initialize"))
	assert.True(t, Cacheable("tools/list"))
	assert.False(t, Cacheable("tools/call"))
}
