// Package migrations embeds the operator audit log schema.
package migrations

import "embed"

// FS holds the forward-only migration files.
//
//go:embed *.sql
var FS embed.FS
