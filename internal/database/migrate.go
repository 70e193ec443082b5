package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/shopspring/decimal"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the embedded schema and seeds the global supply singleton.
// An existing supply row is left untouched.
func Migrate(ctx context.Context, db *sql.DB, totalSupply decimal.Decimal) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, name := range files {
		stmt, err := schemaFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO global_supply (id, total_supply, mined_supply)
		VALUES (1, $1, 0)
		ON CONFLICT (id) DO NOTHING
	`, totalSupply.String()); err != nil {
		return fmt.Errorf("seed global supply: %w", err)
	}
	return nil
}

func migrationFiles() ([]string, error) {
	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
