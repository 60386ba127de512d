// Package migrations embeds the goose SQL migrations for the tables this
// service owns. Threads, projects, and billing subscriptions are managed by
// their own services and are not migrated here.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
