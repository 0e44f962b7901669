package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS fav_favorites (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		project_name VARCHAR(255) NOT NULL,
		project_url VARCHAR(500) NOT NULL,
		project_description TEXT,
		keywords VARCHAR(500),
		search_tokens TEXT,
		category VARCHAR(100) DEFAULT 'Other',
		rating INT UNSIGNED DEFAULT 0,
		is_public TINYINT(1) DEFAULT 0,
		tags VARCHAR(300),
		favicon_url VARCHAR(500),
		screenshot_url VARCHAR(500),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_fav_category (category),
		INDEX idx_fav_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	// star counts overflow the historical TINYINT rating column
	`ALTER TABLE fav_favorites MODIFY rating INT UNSIGNED DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS fav_user (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		remark VARCHAR(255)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS fav_favorites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_name TEXT NOT NULL,
		project_url TEXT NOT NULL,
		project_description TEXT,
		keywords TEXT,
		search_tokens TEXT,
		category TEXT DEFAULT 'Other',
		rating INTEGER DEFAULT 0,
		is_public INTEGER DEFAULT 0,
		tags TEXT,
		favicon_url TEXT,
		screenshot_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fav_category ON fav_favorites (category)`,
	`CREATE INDEX IF NOT EXISTS idx_fav_created_at ON fav_favorites (created_at)`,
	`CREATE TABLE IF NOT EXISTS fav_user (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		remark TEXT
	)`,
}

// Migrate creates the tables for the given dialect ("mysql" or "sqlite").
// Statements are idempotent and safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	var stmts []string
	switch dialect {
	case DialectMySQL:
		stmts = mysqlSchema
	case DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
