// Package migrations holds the booking schema, applied at startup.
package migrations

import (
	"context"
	"embed"

	"github.com/handybook/handybook/libs/db"
)

//go:embed *.sql
var files embed.FS

func Up(ctx context.Context, pool *db.Pool) error {
	return db.Migrate(ctx, pool, files, "schema_migrations_booking")
}
