package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ariadm/pkg/models"
)

const linkColumns = `gid, out, start_time, end_time, link, ip, port, proxy_user, proxy_passwd,
	download_user, download_passwd, connections, limit_value, download_path, referer,
	load_cookies, user_agent, header, after_download`

// InsertLinkRequests stores the submission parameters of one or more downloads
func (db *DB) InsertLinkRequests(requests ...*models.LinkRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ctx := context.Background()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range requests {
		if err := insertLinkRequest(ctx, tx, r); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SearchLinkRequest returns the link request of gid or ErrNotFound
func (db *DB) SearchLinkRequest(gid string) (*models.LinkRequest, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(`SELECT `+linkColumns+` FROM addlink_db_table WHERE gid = ?`, gid)
	request, err := scanLinkRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link request %q: %w", gid, ErrNotFound)
	}
	return request, err
}

// SearchLinkExists reports whether a link request for link was already stored
func (db *DB) SearchLinkExists(link string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM addlink_db_table WHERE link = ?`, link).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to search link: %w", err)
	}
	return count > 0, nil
}

// LinkRequestsByCategory returns link requests in insertion order, optionally restricted to the
// category owning their download
func (db *DB) LinkRequestsByCategory(category string) ([]*models.LinkRequest, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `SELECT ` + linkColumns + ` FROM addlink_db_table`
	var args []any
	if category != "" && category != models.AllDownloads {
		query += ` WHERE gid IN (SELECT gid FROM download_db_table WHERE category = ?)`
		args = append(args, category)
	}
	query += ` ORDER BY ID`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list link requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.LinkRequest
	for rows.Next() {
		request, err := scanLinkRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// UpdateLinkRequests applies partial updates. Nil fields keep their stored value.
func (db *DB) UpdateLinkRequests(patches ...models.LinkRequestPatch) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	UPDATE addlink_db_table SET
		out = COALESCE(?, out),
		start_time = COALESCE(?, start_time),
		end_time = COALESCE(?, end_time),
		link = COALESCE(?, link),
		ip = COALESCE(?, ip),
		port = COALESCE(?, port),
		proxy_user = COALESCE(?, proxy_user),
		proxy_passwd = COALESCE(?, proxy_passwd),
		download_user = COALESCE(?, download_user),
		download_passwd = COALESCE(?, download_passwd),
		connections = COALESCE(?, connections),
		limit_value = COALESCE(?, limit_value),
		download_path = COALESCE(?, download_path),
		referer = COALESCE(?, referer),
		load_cookies = COALESCE(?, load_cookies),
		user_agent = COALESCE(?, user_agent),
		header = COALESCE(?, header),
		after_download = COALESCE(?, after_download)
	WHERE gid = ?
	`

	for _, p := range patches {
		_, err := tx.Exec(query,
			p.Out, p.StartTime, p.EndTime, p.Link, p.IP, p.Port, p.ProxyUser,
			p.ProxyPasswd, p.DownloadUser, p.DownloadPasswd, p.Connections,
			p.LimitValue, p.DownloadPath, p.Referer, p.LoadCookies, p.UserAgent,
			p.Header, p.AfterDownload, p.GID,
		)
		if err != nil {
			return fmt.Errorf("failed to update link request %q: %w", p.GID, err)
		}
	}

	return tx.Commit()
}

// ClearSchedule sets the selected schedule fields of gid's link request to NULL
func (db *DB) ClearSchedule(gid string, startTime, endTime, afterDownload bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var columns []string
	if startTime {
		columns = append(columns, "start_time = NULL")
	}
	if endTime {
		columns = append(columns, "end_time = NULL")
	}
	if afterDownload {
		columns = append(columns, "after_download = NULL")
	}
	if len(columns) == 0 {
		return nil
	}

	query := `UPDATE addlink_db_table SET ` + strings.Join(columns, ", ") + ` WHERE gid = ?`
	if _, err := db.conn.Exec(query, gid); err != nil {
		return fmt.Errorf("failed to clear schedule of %q: %w", gid, err)
	}
	return nil
}

func insertLinkRequest(ctx context.Context, q querier, r *models.LinkRequest) error {
	query := `INSERT INTO addlink_db_table (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		r.GID, r.Out, r.StartTime, r.EndTime, r.Link, r.IP, r.Port, r.ProxyUser,
		r.ProxyPasswd, r.DownloadUser, r.DownloadPasswd, r.Connections,
		r.LimitValue, r.DownloadPath, r.Referer, r.LoadCookies, r.UserAgent,
		r.Header, r.AfterDownload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert link request %q: %w", r.GID, err)
	}
	return nil
}

func scanLinkRequest(row rowScanner) (*models.LinkRequest, error) {
	var (
		r    models.LinkRequest
		link sql.NullString
	)

	err := row.Scan(
		&r.GID, &r.Out, &r.StartTime, &r.EndTime, &link, &r.IP, &r.Port,
		&r.ProxyUser, &r.ProxyPasswd, &r.DownloadUser, &r.DownloadPasswd,
		&r.Connections, &r.LimitValue, &r.DownloadPath, &r.Referer,
		&r.LoadCookies, &r.UserAgent, &r.Header, &r.AfterDownload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan link request: %w", err)
	}

	r.Link = link.String
	return &r, nil
}

// InsertVideoFinder records a video and audio pair
func (db *DB) InsertVideoFinder(link *models.VideoFinderLink) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
	INSERT INTO video_finder_db_table (
		video_gid, audio_gid, video_completed, audio_completed,
		muxing_status, checking, download_path
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.Exec(query,
		link.VideoGID, link.AudioGID, yesNo(link.VideoCompleted), yesNo(link.AudioCompleted),
		link.MuxingStatus, yesNo(link.Checking), link.DownloadPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video finder pair: %w", err)
	}
	return nil
}

// SearchVideoFinder returns the pair that gid belongs to, on either side, or ErrNotFound
func (db *DB) SearchVideoFinder(gid string) (*models.VideoFinderLink, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return searchVideoFinder(context.Background(), db.conn, gid)
}

// UpdateVideoFinder applies partial updates keyed by VideoGID, or AudioGID when VideoGID is empty
func (db *DB) UpdateVideoFinder(patches ...models.VideoFinderPatch) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range patches {
		key, column := p.VideoGID, "video_gid"
		if key == "" {
			key, column = p.AudioGID, "audio_gid"
		}

		query := `
		UPDATE video_finder_db_table SET
			video_completed = COALESCE(?, video_completed),
			audio_completed = COALESCE(?, audio_completed),
			muxing_status = COALESCE(?, muxing_status),
			checking = COALESCE(?, checking),
			download_path = COALESCE(?, download_path)
		WHERE ` + column + ` = ?`

		_, err := tx.Exec(query,
			yesNoPtr(p.VideoCompleted), yesNoPtr(p.AudioCompleted), p.MuxingStatus,
			yesNoPtr(p.Checking), p.DownloadPath, key,
		)
		if err != nil {
			return fmt.Errorf("failed to update video finder pair %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// VideoFinderGIDs returns every gid that takes part in a video finder pair
func (db *DB) VideoFinderGIDs() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT video_gid, audio_gid FROM video_finder_db_table ORDER BY ID`)
	if err != nil {
		return nil, fmt.Errorf("failed to list video finder gids: %w", err)
	}
	defer rows.Close()

	var gids []string
	for rows.Next() {
		var video, audio sql.NullString
		if err := rows.Scan(&video, &audio); err != nil {
			return nil, fmt.Errorf("failed to scan video finder gids: %w", err)
		}
		gids = append(gids, video.String, audio.String)
	}

	return gids, rows.Err()
}

func searchVideoFinder(ctx context.Context, q querier, gid string) (*models.VideoFinderLink, error) {
	query := `
	SELECT video_gid, audio_gid, video_completed, audio_completed, muxing_status, checking, download_path
	FROM video_finder_db_table WHERE video_gid = ?1 OR audio_gid = ?1
	`

	var (
		link                                  models.VideoFinderLink
		video, audio                          sql.NullString
		videoCompleted, audioCompleted, check sql.NullString
	)
	err := q.QueryRowContext(ctx, query, gid).Scan(
		&video, &audio, &videoCompleted, &audioCompleted,
		&link.MuxingStatus, &check, &link.DownloadPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("video finder pair %q: %w", gid, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to search video finder pair: %w", err)
	}

	link.VideoGID = video.String
	link.AudioGID = audio.String
	link.VideoCompleted = isYes(videoCompleted)
	link.AudioCompleted = isYes(audioCompleted)
	link.Checking = isYes(check)
	return &link, nil
}
