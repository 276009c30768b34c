package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"classtrack/internal/auth"
)

// DB wraps sql.DB over either Postgres (pgx) or an embedded SQLite file.
// The repository layer uses $N placeholders, which both drivers accept,
// so only the DDL differs between backends.
type DB struct {
	Client *sql.DB
	driver string
}

// Open connects to the configured backend. driver is "postgres" or "sqlite";
// dsn is a connection URL for Postgres or a file path for SQLite.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "postgres", "pgx":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		return &DB{Client: db, driver: "postgres"}, db.PingContext(context.Background())
	case "sqlite", "sqlite3":
		if dir := filepath.Dir(dsn); dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		return &DB{Client: db, driver: "sqlite"}, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

// Migrate creates the schema when absent. The unique constraints on
// sessions and attendance carry the duplicate-prevention rules; handlers
// map violations to conflicts instead of racing a pre-check.
func (d *DB) Migrate(ctx context.Context) error {
	serial := "SERIAL PRIMARY KEY"
	if d.driver == "sqlite" {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			full_name TEXT NOT NULL,
			user_id TEXT NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sessions (
			id %s,
			course_name TEXT NOT NULL,
			course_type TEXT NOT NULL,
			session_date TEXT NOT NULL,
			professor_id INTEGER NOT NULL REFERENCES users(id),
			qr_code_data TEXT NOT NULL,
			UNIQUE (course_name, course_type, session_date, professor_id)
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS attendance (
			id %s,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			student_id INTEGER NOT NULL REFERENCES users(id),
			status TEXT NOT NULL,
			UNIQUE (session_id, student_id)
		)`, serial),
		`CREATE INDEX IF NOT EXISTS idx_sessions_qr ON sessions(qr_code_data)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance(student_id)`,
	}
	for _, s := range stmts {
		if _, err := d.Client.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Drop removes all tables. Used by the resetdb command only.
func (d *DB) Drop(ctx context.Context) error {
	for _, table := range []string{"attendance", "sessions", "users"} {
		if _, err := d.Client.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

type seedUser struct {
	email, password, role, fullName, userID string
}

// Fixture accounts for development. Passwords are bcrypt-hashed at insert
// time, so the plaintexts here are only good for logging in against a dev
// database.
var seedUsers = []seedUser{
	{"n.bahajoub@gmail.com", "nizar123", "professor", "Dr. Bahajoub", "R140057625"},
	{"anejjarwalid7@gmail.com", "walid123", "professor", "Dr. Anejjar", "R12345678"},
	{"ziad@gmail.com", "ziad123", "student", "Ziad Nadir", "J12345678"},
	{"moughite@gmail.com", "moughite123", "student", "Abdelmoughite Naoumi", "K12345678"},
}

// Seed inserts the fixture accounts when the users table is empty.
func (d *DB) Seed(ctx context.Context) error {
	var count int
	if err := d.Client.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed count: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, u := range seedUsers {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			return fmt.Errorf("seed hash: %w", err)
		}
		_, err = d.Client.ExecContext(ctx, `
			INSERT INTO users (email, password, role, full_name, user_id)
			VALUES ($1, $2, $3, $4, $5)
		`, u.email, hash, u.role, u.fullName, u.userID)
		if err != nil {
			return fmt.Errorf("seed insert %s: %w", u.email, err)
		}
	}
	return nil
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
