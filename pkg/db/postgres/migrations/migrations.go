// Package migrations embeds the Postgres schema's SQL migration files so
// the running binary never depends on a migrations directory existing on
// disk at deploy time.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
