// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

//go:embed migrations
var embeddedMigrations embed.FS

// RunMigrations applies the embedded .up.sql files for dbType that are not
// yet recorded in schema_migrations, each in its own transaction.
func RunMigrations(ctx context.Context, bdb *bun.DB, dbType string) error {
	start := time.Now()
	dir := path.Join("migrations", dbType)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations (%s): %w", dir, err)
	}
	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if _, err := bdb.ExecContext(ctx, schemaMigrationsDDL(dbType)); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")
		var exists int
		err := bdb.NewSelect().
			TableExpr("schema_migrations").
			ColumnExpr("1").
			Where("version = ?", version).
			Scan(ctx, &exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check migration version %s: %w", version, err)
		}

		data, err := embeddedMigrations.ReadFile(path.Join(dir, fname))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", fname, err)
		}
		err = bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range splitStatements(string(data)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.NewInsert().
				Model(&map[string]any{"version": version, "applied_at": time.Now().UTC()}).
				TableExpr("schema_migrations").
				Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
		dbLogf("applied migration %s", version)
	}
	dbLogf("migrations for %s completed in %s", dbType, time.Since(start))
	return nil
}

func schemaMigrationsDDL(dbType string) string {
	if dbType == "mysql" {
		return "CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(255) PRIMARY KEY, applied_at DATETIME(6) NOT NULL)"
	}
	return "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP NOT NULL)"
}

// splitStatements splits a migration on ';' so drivers that reject
// multi-statement Exec can run it. Migrations must not contain ';' in
// literals.
func splitStatements(sqlText string) []string {
	var out []string
	for _, part := range strings.Split(sqlText, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
