/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides log.FieldLogger implementations for tests.
// Recorder keeps every logged entry in memory so tests can assert on messages and fields.
package logtest
