/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient builds HTTP clients for outgoing calls (email API, auth provider)
// out of composable round trippers.
package httpclient
