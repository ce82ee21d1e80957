package repository

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// SchemaStatements returns the embedded schema split into single statements, so it can be
// applied without enabling multiStatements on the DSN.
func SchemaStatements() []string {
	parts := strings.Split(schemaSQL, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func Migrate(ctx context.Context, db DBTX) (int, error) {
	applied := 0
	for _, stmt := range SchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
