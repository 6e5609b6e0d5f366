package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir %s: %w", dir, err)
		}
	}

	dsn := "file:" + path +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS project_credentials (
			project_id TEXT PRIMARY KEY,
			refresh_token_sha256 TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id)
		);`,
		`CREATE TABLE IF NOT EXISTS sensors (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT,
			localization TEXT,
			description TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			battery_life REAL,
			wireless INTEGER,
			value_unit TEXT,
			min_safe_value REAL,
			max_safe_value REAL,
			last_measurement_at INTEGER,
			last_measurement_value REAL,
			last_measurement_rssi INTEGER,
			next_measurement_at INTEGER,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sensors_project ON sensors(project_id, id);`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor_id TEXT NOT NULL,
			measured_at INTEGER NOT NULL,
			value REAL,
			FOREIGN KEY(sensor_id) REFERENCES sensors(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_sensor_time ON measurements(sensor_id, measured_at, id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
