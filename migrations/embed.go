// Package migrations embeds the PostgreSQL schema migrations so the server
// and the migrate command can apply them without a source checkout.
package migrations

import "embed"

// FS holds the numbered golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
