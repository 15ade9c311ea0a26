/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides a fixed-window attempt counter that guards expensive public actions
// (sending the contact form, subscribing to the newsletter, requesting a one-time sign-in code).
//
// Every identity gets its own counter in a bounded LRU cache. The counter is created on the first attempt,
// lives for one window counted from that moment and is never prolonged by later attempts.
// An attempt is rejected when the post-increment count reaches the limit,
// so a limit of L admits L-1 attempts per window.
package ratelimit
