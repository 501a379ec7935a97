// Package migrations embeds the goose SQL migrations applied on API start.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
