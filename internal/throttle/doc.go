/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package throttle provides coarse per-client request rate limiting for the JSON API.
// It complements the attempt quotas of the ratelimit package: throttling smooths bursts of traffic
// while quotas bound how often a business action may be attempted.
package throttle
