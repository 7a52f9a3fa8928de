package appfs

import "embed"

// FS holds the SQL migrations and the email templates.
// `all:` keeps the `_base` layouts, which embed would skip otherwise.
//go:embed migrations all:templates
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
