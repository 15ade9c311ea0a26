/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package newsletter stores newsletter subscribers and sends them welcome emails.
package newsletter
