/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs the site process: units (HTTP servers, background workers)
// are started together and stopped on a signal, context cancellation or the first fatal error.
package service
