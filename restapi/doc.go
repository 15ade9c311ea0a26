/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi contains helpers for JSON handlers: decoding requests, writing responses
// and errors in the {"error": {"domain", "code", "message"}} shape, and calling JSON APIs.
package restapi
