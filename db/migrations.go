// Package db holds the SQL schema applied on startup.
package db

import "embed"

// Migrations contains the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
