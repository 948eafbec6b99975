// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package proxy

import (
	"encoding/json"
	"sync"
)

// cacheableMethods is the restricted key set the cache tracks.
var cacheableMethods = map[string]bool{
	"initialize": true,
	"tools/list": true,
}

// Cache memoizes the latest successful full Response object (the whole
// JSON-RPC object, original id included) for initialize and tools/list,
// so the coordinator can answer those two methods even while the
// upstream is down. Entries are never evicted on failure.
type Cache struct {
	mu        sync.RWMutex
	responses map[string]json.RawMessage
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{responses: make(map[string]json.RawMessage)}
}

// Cacheable reports whether method is one of the two keys the cache tracks.
func Cacheable(method string) bool {
	return cacheableMethods[method]
}

// Put overwrites the entry for method with response. Callers must only
// call this once a response carrying a non-null result has been
// confirmed; Put itself does not re-check that, matching the cache's
// narrow responsibility of storage, not policy.
func (c *Cache) Put(method string, response json.RawMessage) {
	if !Cacheable(method) {
		return
	}
	c.mu.Lock()
	c.responses[method] = response
	c.mu.Unlock()
}

// Get returns the cached response for method, if any.
func (c *Cache) Get(method string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	response, ok := c.responses[method]
	return response, ok
}
