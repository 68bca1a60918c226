package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ariadm/pkg/models"
)

const downloadColumns = `file_name, status, size, downloaded_size, percent, connections, rate,
	estimate_time_left, gid, link, first_try_date, last_try_date, category`

// InsertDownloads inserts download rows and appends each new gid to its category and to "All Downloads".
// A gid that already exists is left untouched.
func (db *DB) InsertDownloads(downloads ...*models.Download) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ctx := context.Background()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDownloads(ctx, tx, downloads); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateDownload inserts a download and its link request in one transaction
func (db *DB) CreateDownload(download *models.Download, request *models.LinkRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ctx := context.Background()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDownloads(ctx, tx, []*models.Download{download}); err != nil {
		return err
	}
	if err := insertLinkRequest(ctx, tx, request); err != nil {
		return err
	}

	return tx.Commit()
}

// SearchDownload returns the download with the given gid or ErrNotFound
func (db *DB) SearchDownload(gid string) (*models.Download, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(`SELECT `+downloadColumns+` FROM download_db_table WHERE gid = ?`, gid)
	download, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("download %q: %w", gid, ErrNotFound)
	}
	return download, err
}

// ListDownloads returns downloads in insertion order, optionally restricted to one category.
// "All Downloads" and an empty name mean every download.
func (db *DB) ListDownloads(category string) ([]*models.Download, error) {
	return db.FindByStatus(nil, category)
}

// FindByStatus returns downloads whose status is in statuses, optionally restricted to one category.
// A nil statuses slice matches every status.
func (db *DB) FindByStatus(statuses []models.DownloadStatus, category string) ([]*models.Download, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `SELECT ` + downloadColumns + ` FROM download_db_table WHERE 1=1`
	var args []any

	if statuses != nil {
		if len(statuses) == 0 {
			return nil, nil
		}
		placeholders, statusArgs := inClause(statuses)
		query += ` AND status IN (` + placeholders + `)`
		args = append(args, statusArgs...)
	}

	if category != "" && category != models.AllDownloads {
		query += ` AND category = ?`
		args = append(args, category)
	}

	query += ` ORDER BY ROWID`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.Download
	for rows.Next() {
		download, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, download)
	}

	return downloads, rows.Err()
}

// FindActive returns the gids of downloads that have not reached a final state
func (db *DB) FindActive(category string) ([]string, error) {
	return db.findGIDs(models.ActiveStatuses, category)
}

// DownloadingGIDs returns the gids of downloads that are downloading or waiting
func (db *DB) DownloadingGIDs() ([]string, error) {
	return db.findGIDs([]models.DownloadStatus{models.StatusDownloading, models.StatusWaiting}, "")
}

// PausedGIDs returns the gids of paused downloads
func (db *DB) PausedGIDs() ([]string, error) {
	return db.findGIDs([]models.DownloadStatus{models.StatusPaused}, "")
}

func (db *DB) findGIDs(statuses []models.DownloadStatus, category string) ([]string, error) {
	downloads, err := db.FindByStatus(statuses, category)
	if err != nil {
		return nil, err
	}

	gids := make([]string, 0, len(downloads))
	for _, d := range downloads {
		gids = append(gids, d.GID)
	}
	return gids, nil
}

// UpdateDownloads applies partial updates. Nil fields keep their stored value.
func (db *DB) UpdateDownloads(patches ...models.DownloadPatch) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	UPDATE download_db_table SET
		file_name = COALESCE(?, file_name),
		status = COALESCE(?, status),
		size = COALESCE(?, size),
		downloaded_size = COALESCE(?, downloaded_size),
		percent = COALESCE(?, percent),
		connections = COALESCE(?, connections),
		rate = COALESCE(?, rate),
		estimate_time_left = COALESCE(?, estimate_time_left),
		link = COALESCE(?, link),
		first_try_date = COALESCE(?, first_try_date),
		last_try_date = COALESCE(?, last_try_date),
		category = COALESCE(?, category)
	WHERE gid = ?
	`

	for _, p := range patches {
		var status *string
		if p.Status != nil {
			s := string(*p.Status)
			status = &s
		}

		_, err := tx.Exec(query,
			p.FileName, status, p.Size, p.DownloadedSize, p.Percent, p.Connections,
			p.Rate, p.EstimateTimeLeft, p.Link, p.FirstTryDate, p.LastTryDate,
			p.Category, p.GID,
		)
		if err != nil {
			return fmt.Errorf("failed to update download %q: %w", p.GID, err)
		}
	}

	return tx.Commit()
}

// DeleteDownload deletes the download and removes its gid from category and "All Downloads".
// If the gid is half of a video finder pair, its partner is removed from the same lists.
// An empty category means the download's own category.
func (db *DB) DeleteDownload(gid, category string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ctx := context.Background()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if category == "" {
		err := tx.QueryRowContext(ctx, `SELECT category FROM download_db_table WHERE gid = ?`, gid).Scan(&category)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("download %q: %w", gid, ErrNotFound)
			}
			return fmt.Errorf("failed to look up download category: %w", err)
		}
	}

	// The pairing row cascades away with the download, so read it first.
	pair, err := searchVideoFinder(ctx, tx, gid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM download_db_table WHERE gid = ?`, gid); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	names := []string{category}
	if category != models.AllDownloads {
		names = append(names, models.AllDownloads)
	}

	for _, name := range names {
		c, err := searchCategory(ctx, tx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		list, found := remove(c.GIDList, gid)
		if !found {
			continue
		}

		if pair != nil {
			partner := pair.Partner(gid)
			var partnerFound bool
			list, partnerFound = remove(list, partner)
			if !partnerFound {
				slog.Warn("Video finder partner missing from category list",
					"gid", gid, "partner", partner, "category", name)
			}
		}

		if err := updateCategory(ctx, tx, models.CategoryPatch{Name: name, GIDList: &list}); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertDownloads(ctx context.Context, tx *sql.Tx, downloads []*models.Download) error {
	query := `INSERT OR IGNORE INTO download_db_table (` + downloadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	byCategory := map[string][]string{}
	var order []string

	for _, d := range downloads {
		result, err := tx.ExecContext(ctx, query,
			d.FileName, string(d.Status), d.Size, d.DownloadedSize, d.Percent,
			d.Connections, d.Rate, d.EstimateTimeLeft, d.GID, d.Link,
			d.FirstTryDate, d.LastTryDate, d.Category,
		)
		if err != nil {
			return fmt.Errorf("failed to insert download %q: %w", d.GID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			slog.Warn("Download already exists", "gid", d.GID)
			continue
		}

		for _, name := range []string{d.Category, models.AllDownloads} {
			if _, seen := byCategory[name]; !seen {
				order = append(order, name)
			}
			byCategory[name] = append(byCategory[name], d.GID)
		}
	}

	for _, name := range order {
		category, err := searchCategory(ctx, tx, name)
		if err != nil {
			return err
		}

		list := category.GIDList
		for _, gid := range byCategory[name] {
			list = appendUnique(list, gid)
		}

		if err := updateCategory(ctx, tx, models.CategoryPatch{Name: name, GIDList: &list}); err != nil {
			return err
		}
	}

	return nil
}

func scanDownload(row rowScanner) (*models.Download, error) {
	var (
		download models.Download
		status   sql.NullString
		category sql.NullString
	)

	err := row.Scan(
		&download.FileName, &status, &download.Size, &download.DownloadedSize,
		&download.Percent, &download.Connections, &download.Rate,
		&download.EstimateTimeLeft, &download.GID, &download.Link,
		&download.FirstTryDate, &download.LastTryDate, &category,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	download.Status = models.DownloadStatus(status.String)
	download.Category = category.String
	return &download, nil
}
