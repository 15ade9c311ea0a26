/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package storage opens the SQL database (postgres or sqlite) used by the website through gorm.
package storage
