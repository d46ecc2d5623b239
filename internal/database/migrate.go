package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed schema.sql
var schema string

// Migrate applies the embedded schema. Every statement is idempotent so
// this is safe to run on each startup.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	log.Println("Database schema up to date")
	return nil
}
