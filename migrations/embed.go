// Package migrations embeds the recruitment schema migrations.
package migrations

import "embed"

// FS contains all migration SQL files.
//
//go:embed *.sql
var FS embed.FS
