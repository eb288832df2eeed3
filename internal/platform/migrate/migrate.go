package migrate

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"hubbroker/migrations"
)

// Apply runs any pending SQL migrations bundled with the binary.
func Apply(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrations.Files)
	goose.SetLogger(gooseSlogLogger{logger: logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("migrate: goose up: %w", err)
	}

	return nil
}
