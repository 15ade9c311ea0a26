/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads component configurations from a YAML/JSON file and environment variables.
// Every component describes its own section by implementing Config; Loader sets defaults for all of them
// first and then reads the values, so a missing file still yields a working configuration.
package config
