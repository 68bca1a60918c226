// Package database provides SQLite database operations for the application
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ariadm/pkg/models"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrPermanentCategory is returned when deleting one of the default categories
	ErrPermanentCategory = errors.New("category cannot be deleted")
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the catalog SQLite connection.
// Every exported method holds mu for its whole duration.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	if err := db.CreateSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func open(dbPath string) (*sql.DB, error) {
	// Add connection parameters to help with concurrent access
	connString := dbPath
	if dbPath != ":memory:" {
		connString = dbPath + "?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	conn, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	conn.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return conn, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateSchema creates the tables and the default categories if they are missing
func (db *DB) CreateSchema() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	schema := `
	CREATE TABLE IF NOT EXISTS category_db_table (
		category TEXT PRIMARY KEY,
		start_time_enable TEXT,
		start_time TEXT,
		end_time_enable TEXT,
		end_time TEXT,
		reverse TEXT,
		limit_enable TEXT,
		limit_value TEXT,
		after_download TEXT,
		gid_list TEXT
	);

	CREATE TABLE IF NOT EXISTS download_db_table (
		file_name TEXT,
		status TEXT,
		size TEXT,
		downloaded_size TEXT,
		percent TEXT,
		connections TEXT,
		rate TEXT,
		estimate_time_left TEXT,
		gid TEXT PRIMARY KEY,
		link TEXT,
		first_try_date TEXT,
		last_try_date TEXT,
		category TEXT,
		FOREIGN KEY (category) REFERENCES category_db_table(category)
		ON UPDATE CASCADE
		ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_download_status ON download_db_table(status);
	CREATE INDEX IF NOT EXISTS idx_download_category ON download_db_table(category);

	CREATE TABLE IF NOT EXISTS addlink_db_table (
		ID INTEGER PRIMARY KEY,
		gid TEXT,
		out TEXT,
		start_time TEXT,
		end_time TEXT,
		link TEXT,
		ip TEXT,
		port TEXT,
		proxy_user TEXT,
		proxy_passwd TEXT,
		download_user TEXT,
		download_passwd TEXT,
		connections TEXT,
		limit_value TEXT,
		download_path TEXT,
		referer TEXT,
		load_cookies TEXT,
		user_agent TEXT,
		header TEXT,
		after_download TEXT,
		FOREIGN KEY (gid) REFERENCES download_db_table(gid)
		ON UPDATE CASCADE
		ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_addlink_gid ON addlink_db_table(gid);
	CREATE INDEX IF NOT EXISTS idx_addlink_link ON addlink_db_table(link);

	CREATE TABLE IF NOT EXISTS video_finder_db_table (
		ID INTEGER PRIMARY KEY,
		video_gid TEXT,
		audio_gid TEXT,
		video_completed TEXT,
		audio_completed TEXT,
		muxing_status TEXT,
		checking TEXT,
		download_path TEXT,
		FOREIGN KEY (video_gid) REFERENCES download_db_table(gid)
		ON DELETE CASCADE,
		FOREIGN KEY (audio_gid) REFERENCES download_db_table(gid)
		ON DELETE CASCADE
	);
	`

	ctx := context.Background()
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return err
	}

	for _, name := range models.PermanentCategories {
		_, err := searchCategory(ctx, db.conn, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := insertCategory(ctx, db.conn, models.NewCategory(name)); err != nil {
			return err
		}
	}

	return nil
}

// NormalizeLegacyUnits rewrites KB, MB and GB suffixes in stored sizes and rates to KiB, MiB and GiB
func (db *DB) NormalizeLegacyUnits() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, units := range [][2]string{{"KB", "KiB"}, {"MB", "MiB"}, {"GB", "GiB"}} {
		query := `
		UPDATE download_db_table SET
			size = replace(size, ?1, ?2),
			rate = replace(rate, ?1, ?2),
			downloaded_size = replace(downloaded_size, ?1, ?2)
		`
		if _, err := tx.Exec(query, units[0], units[1]); err != nil {
			return fmt.Errorf("failed to replace %s units: %w", units[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unit migration: %w", err)
	}

	return nil
}

// ResetStaleState clears the schedule state a previous process left behind.
// Downloads that were not complete or failed become stopped.
func (db *DB) ResetStaleState() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`UPDATE category_db_table SET
			start_time_enable = 'no', end_time_enable = 'no',
			reverse = 'no', limit_enable = 'no', after_download = 'no'`,
		`UPDATE download_db_table SET status = 'stopped'
			WHERE status NOT IN ('complete', 'error')`,
		`UPDATE addlink_db_table SET start_time = NULL, end_time = NULL, after_download = NULL`,
		`UPDATE video_finder_db_table SET checking = 'no'`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to reset stale state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stale state reset: %w", err)
	}

	return nil
}

// ResetAll wipes every download and every user-created category
func (db *DB) ResetAll() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ctx := context.Background()
	empty := []string{}
	for _, name := range models.PermanentCategories {
		if err := updateCategory(ctx, tx, models.CategoryPatch{Name: name, GIDList: &empty}); err != nil {
			return err
		}
	}

	placeholders, args := inClause(models.PermanentCategories)
	statements := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM category_db_table WHERE category NOT IN (` + placeholders + `)`, args},
		{`DELETE FROM download_db_table`, nil},
		{`DELETE FROM addlink_db_table`, nil},
		{`DELETE FROM video_finder_db_table`, nil},
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	slog.Info("Catalog reset")
	return nil
}

func inClause[T ~string](values []T) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = string(v)
	}
	return strings.Join(placeholders, ","), args
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func yesNoPtr(b *bool) *string {
	if b == nil {
		return nil
	}
	s := yesNo(*b)
	return &s
}

func isYes(s sql.NullString) bool {
	return s.Valid && s.String == "yes"
}
