package database

import (
	"database/sql"
	"fmt"
	"sync"

	"ariadm/pkg/models"
)

// PluginsDB holds links submitted by browser helpers until the application picks them up
type PluginsDB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// NewPlugins opens the plugin link queue and creates its table
func NewPlugins(dbPath string) (*PluginsDB, error) {
	conn, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS plugins_db_table (
		ID INTEGER PRIMARY KEY,
		link TEXT,
		referer TEXT,
		load_cookies TEXT,
		user_agent TEXT,
		header TEXT,
		out TEXT,
		status TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_plugins_status ON plugins_db_table(status);
	`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PluginsDB{conn: conn}, nil
}

// Close closes the database connection
func (p *PluginsDB) Close() error {
	return p.conn.Close()
}

// InsertPluginLinks queues links with status new
func (p *PluginsDB) InsertPluginLinks(links ...*models.PluginLink) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO plugins_db_table (link, referer, load_cookies, user_agent, header, out, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, link := range links {
		result, err := tx.Exec(query,
			link.Link, link.Referer, link.LoadCookies, link.UserAgent, link.Header, link.Out,
			string(models.PluginLinkNew),
		)
		if err != nil {
			return fmt.Errorf("failed to insert plugin link: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		link.ID = id
		link.Status = models.PluginLinkNew
	}

	return tx.Commit()
}

// ConsumeNewLinks returns every new link and marks them old in the same transaction
func (p *PluginsDB) ConsumeNewLinks() ([]*models.PluginLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
	SELECT ID, link, referer, load_cookies, user_agent, header, out
	FROM plugins_db_table WHERE status = ? ORDER BY ID
	`, string(models.PluginLinkNew))
	if err != nil {
		return nil, fmt.Errorf("failed to query new links: %w", err)
	}

	var (
		links  []*models.PluginLink
		lastID int64
	)
	for rows.Next() {
		var (
			link models.PluginLink
			url  sql.NullString
		)
		if err := rows.Scan(&link.ID, &url, &link.Referer, &link.LoadCookies, &link.UserAgent, &link.Header, &link.Out); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan plugin link: %w", err)
		}
		link.Link = url.String
		link.Status = models.PluginLinkOld
		links = append(links, &link)
		lastID = link.ID
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate new links: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to read new links: %w", err)
	}
	if len(links) == 0 {
		return links, nil
	}

	// only the rows returned in this batch become old
	if _, err := tx.Exec(`UPDATE plugins_db_table SET status = ? WHERE status = ? AND ID <= ?`,
		string(models.PluginLinkOld), string(models.PluginLinkNew), lastID); err != nil {
		return nil, fmt.Errorf("failed to mark links old: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit consumed links: %w", err)
	}

	return links, nil
}

// DeleteOldLinks removes links that were already consumed and returns how many were deleted
func (p *PluginsDB) DeleteOldLinks() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, err := p.conn.Exec(`DELETE FROM plugins_db_table WHERE status = ?`, string(models.PluginLinkOld))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old links: %w", err)
	}

	return result.RowsAffected()
}
