package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the automation tables if they are missing.
func EnsureSchema(ctx context.Context, db *database.PostgresClient) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply automation schema: %w", err)
	}
	return nil
}
