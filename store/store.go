// Package store opens the per-plugin sqlite databases.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Memory opens a private in-memory database instead of a file
const Memory = ":memory:"

// DBName is the file each plugin keeps in its data directory
const DBName = "data.db"

// Open returns the database in dir, creating dir when needed.
// An empty dir or Memory gives an in-memory database.
func Open(dir string) (*sqlx.DB, error) {
	if dir == "" || dir == Memory {
		db, err := sqlx.Open("sqlite3", Memory)
		if err != nil {
			return nil, err
		}
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
		return db, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	db, err := sqlx.Open("sqlite3", filepath.Join(dir, DBName)+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs each statement in order inside one transaction
func Migrate(db *sqlx.DB, stmts ...string) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return tx.Commit()
}
