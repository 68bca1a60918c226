package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ariadm/pkg/models"
)

const categoryColumns = `category, start_time_enable, start_time, end_time_enable, end_time,
	reverse, limit_enable, limit_value, after_download, gid_list`

// InsertCategory creates a new category with the given settings
func (db *DB) InsertCategory(category *models.Category) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return insertCategory(context.Background(), db.conn, category)
}

// SearchCategory returns the category with the given name or ErrNotFound
func (db *DB) SearchCategory(name string) (*models.Category, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return searchCategory(context.Background(), db.conn, name)
}

// CategoriesList returns category names in creation order
func (db *DB) CategoriesList() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT category FROM category_db_table ORDER BY ROWID`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// ListCategories returns every category in creation order
func (db *DB) ListCategories() ([]*models.Category, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT ` + categoryColumns + ` FROM category_db_table ORDER BY ROWID`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// UpdateCategories applies partial updates. Nil fields keep their stored value.
func (db *DB) UpdateCategories(patches ...models.CategoryPatch) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, patch := range patches {
		if err := updateCategory(context.Background(), tx, patch); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteCategory removes the category's gids from "All Downloads" and deletes the category.
// The foreign key cascade removes the category's download and link request rows.
func (db *DB) DeleteCategory(name string) error {
	if models.IsPermanentCategory(name) {
		return fmt.Errorf("%q: %w", name, ErrPermanentCategory)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	ctx := context.Background()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	category, err := searchCategory(ctx, tx, name)
	if err != nil {
		return err
	}

	all, err := searchCategory(ctx, tx, models.AllDownloads)
	if err != nil {
		return err
	}

	remaining := removeAll(all.GIDList, category.GIDList)
	if err := updateCategory(ctx, tx, models.CategoryPatch{Name: models.AllDownloads, GIDList: &remaining}); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_db_table WHERE category = ?`, name); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return tx.Commit()
}

func insertCategory(ctx context.Context, q querier, category *models.Category) error {
	gidList, err := encodeGIDList(category.GIDList)
	if err != nil {
		return err
	}

	query := `INSERT INTO category_db_table (` + categoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = q.ExecContext(ctx, query,
		category.Name, yesNo(category.StartTimeEnabled), category.StartTime,
		yesNo(category.EndTimeEnabled), category.EndTime, yesNo(category.Reverse),
		yesNo(category.LimitEnabled), category.LimitValue, category.AfterDownload, gidList,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category %q: %w", category.Name, err)
	}

	return nil
}

func searchCategory(ctx context.Context, q querier, name string) (*models.Category, error) {
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM category_db_table WHERE category = ?`, name)
	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	return category, err
}

func updateCategory(ctx context.Context, q querier, patch models.CategoryPatch) error {
	var gidList *string
	if patch.GIDList != nil {
		encoded, err := encodeGIDList(*patch.GIDList)
		if err != nil {
			return err
		}
		gidList = &encoded
	}

	query := `
	UPDATE category_db_table SET
		start_time_enable = COALESCE(?, start_time_enable),
		start_time = COALESCE(?, start_time),
		end_time_enable = COALESCE(?, end_time_enable),
		end_time = COALESCE(?, end_time),
		reverse = COALESCE(?, reverse),
		limit_enable = COALESCE(?, limit_enable),
		limit_value = COALESCE(?, limit_value),
		after_download = COALESCE(?, after_download),
		gid_list = COALESCE(?, gid_list)
	WHERE category = ?
	`
	_, err := q.ExecContext(ctx, query,
		yesNoPtr(patch.StartTimeEnabled), patch.StartTime,
		yesNoPtr(patch.EndTimeEnabled), patch.EndTime,
		yesNoPtr(patch.Reverse), yesNoPtr(patch.LimitEnabled),
		patch.LimitValue, patch.AfterDownload, gidList, patch.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update category %q: %w", patch.Name, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		category                              models.Category
		startEnable, endEnable, reverse       sql.NullString
		limitEnable                           sql.NullString
		startTime, endTime, limitValue, after sql.NullString
		gidList                               sql.NullString
	)

	err := row.Scan(
		&category.Name, &startEnable, &startTime, &endEnable, &endTime,
		&reverse, &limitEnable, &limitValue, &after, &gidList,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	category.StartTimeEnabled = isYes(startEnable)
	category.StartTime = startTime.String
	category.EndTimeEnabled = isYes(endEnable)
	category.EndTime = endTime.String
	category.Reverse = isYes(reverse)
	category.LimitEnabled = isYes(limitEnable)
	category.LimitValue = limitValue.String
	category.AfterDownload = after.String

	category.GIDList, err = decodeGIDList(gidList.String)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", category.Name, err)
	}

	return &category, nil
}

func encodeGIDList(gids []string) (string, error) {
	if gids == nil {
		gids = []string{}
	}
	data, err := json.Marshal(gids)
	if err != nil {
		return "", fmt.Errorf("failed to encode gid list: %w", err)
	}
	return string(data), nil
}

// decodeGIDList accepts JSON lists and the single-quoted lists written by older catalogs
func decodeGIDList(raw string) ([]string, error) {
	gids := []string{}
	if strings.TrimSpace(raw) == "" {
		return gids, nil
	}

	if err := json.Unmarshal([]byte(raw), &gids); err == nil {
		return gids, nil
	}

	if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &gids); err != nil {
		return nil, fmt.Errorf("failed to decode gid list %q: %w", raw, err)
	}
	return gids, nil
}

// appendUnique appends gid unless it is already present
func appendUnique(list []string, gid string) []string {
	for _, existing := range list {
		if existing == gid {
			return list
		}
	}
	return append(list, gid)
}

// remove deletes gid from list and reports whether it was present
func remove(list []string, gid string) ([]string, bool) {
	for i, existing := range list {
		if existing == gid {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}

func removeAll(list, gids []string) []string {
	for _, gid := range gids {
		var found bool
		list, found = remove(list, gid)
		if !found {
			slog.Warn("Gid missing from category list", "gid", gid)
		}
	}
	if list == nil {
		list = []string{}
	}
	return list
}
