package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// CreateFrameVersion appends a new history version for (project, shot number)
// and makes it the single active one. The whole read-increment-insert runs
// under a per-key mutex plus one transaction, so concurrent calls for the
// same key cannot observe the same max version number.
func (ls *LocalStorage) CreateFrameVersion(ctx context.Context, v *types.FrameHistoryVersion) error {
	if v == nil {
		return fmt.Errorf("nil frame version payload")
	}

	mu := ls.versionLock(v.ProjectID, v.ShotNumber)
	mu.Lock()
	defer mu.Unlock()

	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, fmt.Sprintf("CreateFrameVersion:%s:%d", v.ProjectID, v.ShotNumber))

	var max sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version_number) FROM frame_history WHERE project_id = ? AND shot_number = ?`,
		v.ProjectID, v.ShotNumber).Scan(&max)
	if err != nil {
		return fmt.Errorf("query max version: %w", err)
	}
	v.VersionNumber = int(max.Int64) + 1

	_, err = tx.ExecContext(ctx,
		`UPDATE frame_history SET is_active = 0 WHERE project_id = ? AND shot_number = ?`,
		v.ProjectID, v.ShotNumber)
	if err != nil {
		return fmt.Errorf("deactivate versions: %w", err)
	}

	v.IsActive = true
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO frame_history (version_id, project_id, shot_number, version_number,
		                            is_active, image_url, prompt, notes, created_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		v.VersionID, v.ProjectID, v.ShotNumber, v.VersionNumber,
		v.ImageURL, v.Prompt, nullStr(v.Notes), fmtTime(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert frame version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frame version: %w", err)
	}
	return nil
}

// ListFrameHistory returns every version for (project, shot number) ordered
// by version number ascending.
func (ls *LocalStorage) ListFrameHistory(ctx context.Context, projectID string, shotNumber int) ([]*types.FrameHistoryVersion, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT version_id, project_id, shot_number, version_number, is_active,
		        image_url, prompt, notes, created_at
		 FROM frame_history WHERE project_id = ? AND shot_number = ?
		 ORDER BY version_number ASC`, projectID, shotNumber)
	if err != nil {
		return nil, fmt.Errorf("query frame history: %w", err)
	}
	defer rows.Close()

	var versions []*types.FrameHistoryVersion
	for rows.Next() {
		var v types.FrameHistoryVersion
		var active int
		var notes sql.NullString
		var createdAt string
		err := rows.Scan(&v.VersionID, &v.ProjectID, &v.ShotNumber, &v.VersionNumber,
			&active, &v.ImageURL, &v.Prompt, &notes, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan frame version: %w", err)
		}
		v.IsActive = active != 0
		v.Notes = strPtr(notes)
		v.CreatedAt = parseTime(createdAt)
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// SetFrameOrder atomically replaces a project's whole ordering set. Readers
// never observe an empty or partial ordering mid-update. Display order
// uniqueness and contiguity are left to the caller.
func (ls *LocalStorage) SetFrameOrder(ctx context.Context, projectID string, entries []*types.FrameOrderEntry) error {
	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, "SetFrameOrder:"+projectID)

	if _, err := tx.ExecContext(ctx, `DELETE FROM frame_order WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear frame order: %w", err)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO frame_order (project_id, shot_number, display_order) VALUES (?, ?, ?)`,
			projectID, e.ShotNumber, e.DisplayOrder)
		if err != nil {
			return fmt.Errorf("insert frame order for shot %d: %w", e.ShotNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frame order: %w", err)
	}
	return nil
}

// GetFrameOrder returns a project's ordering sorted by display order
// ascending, ties broken by shot number ascending.
func (ls *LocalStorage) GetFrameOrder(ctx context.Context, projectID string) ([]*types.FrameOrderEntry, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT project_id, shot_number, display_order
		 FROM frame_order WHERE project_id = ?
		 ORDER BY display_order ASC, shot_number ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query frame order: %w", err)
	}
	defer rows.Close()

	var entries []*types.FrameOrderEntry
	for rows.Next() {
		var e types.FrameOrderEntry
		if err := rows.Scan(&e.ProjectID, &e.ShotNumber, &e.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan frame order: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
