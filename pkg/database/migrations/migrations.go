// Package migrations embeds the run-history database's SQL migration files,
// replacing the teacher's generated go-bindata asset package: the migration
// source driver reads directly from this compiled-in filesystem.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
