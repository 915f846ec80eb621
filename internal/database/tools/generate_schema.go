//go:build ignore

// generate_schema applies every registry migration to an in-memory database
// and writes the resulting tables and indexes to internal/database/sqlc/schema.sql,
// which sqlc reads to type the queries.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docstore/internal/database"
	"docstore/internal/database/migrations"
)

const header = `-- This file is auto-generated from migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.
-- Source: internal/database/migrations/files/*.sql

`

func main() {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		fail("opening database", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		fail("applying migrations", err)
	}

	schema, err := dumpSchema(db)
	if err != nil {
		fail("reading schema", err)
	}

	out := filepath.Join("internal", "database", "sqlc", "schema.sql")
	if err := os.WriteFile(out, []byte(header+schema), 0644); err != nil {
		fail("writing schema", err)
	}
	fmt.Printf("wrote %s\n", out)
}

// dumpSchema lists the CREATE statements for user tables, then indexes.
// Triggers are left out; sqlc has no use for them.
func dumpSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, name`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", err
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	return b.String(), rows.Err()
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
