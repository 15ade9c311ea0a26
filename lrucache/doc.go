/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides a bounded in-memory cache with LRU eviction, per-entry TTL and Prometheus metrics.
// It backs the request counters of the rate limiter, the parsed blog posts and the per-client API throttle state.
package lrucache
