// Package migrations embeds the sqlite event journal schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
