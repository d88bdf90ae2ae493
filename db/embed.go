// Package db embeds the database schema.
package db

import _ "embed"

// Schema is the DDL applied on startup when the PostgreSQL backend is used.
//
//go:embed schema.sql
var Schema string
