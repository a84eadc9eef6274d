package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// CreateFrame inserts a new frame row.
func (ls *LocalStorage) CreateFrame(ctx context.Context, f *types.Frame) error {
	if f == nil {
		return fmt.Errorf("nil frame payload")
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := ls.db.ExecContext(ctx,
		`INSERT INTO frames (frame_id, project_id, shot_number, image_url,
		                     character_library_id, character_appearance,
		                     consistency_score, consistency_notes,
		                     is_consistency_locked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FrameID, f.ProjectID, f.ShotNumber, f.ImageURL,
		nullStr(f.CharacterLibraryID), nullStr(f.CharacterAppearance),
		nullInt(f.ConsistencyScore), nullStr(f.ConsistencyNotes),
		boolToInt(f.IsConsistencyLocked), fmtTime(f.CreatedAt), fmtTime(f.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}
	return nil
}

// GetFrame fetches one frame by ID.
func (ls *LocalStorage) GetFrame(ctx context.Context, frameID string) (*types.Frame, error) {
	row := ls.db.QueryRowContext(ctx, frameSelect+` WHERE frame_id = ?`, frameID)
	f, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "frame", ID: frameID}
	}
	return f, err
}

// ListFrames returns every frame in a project ordered by shot number.
func (ls *LocalStorage) ListFrames(ctx context.Context, projectID string) ([]*types.Frame, error) {
	rows, err := ls.db.QueryContext(ctx, frameSelect+` WHERE project_id = ? ORDER BY shot_number ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var frames []*types.Frame
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// UpdateFrame applies an update callback atomically. The callback receives
// the current row, mutates a copy, and the result gets persisted in the same
// transaction. Returning an error from the callback aborts the update.
func (ls *LocalStorage) UpdateFrame(ctx context.Context, frameID string, updater func(*types.Frame) (*types.Frame, error)) (*types.Frame, error) {
	if updater == nil {
		return nil, fmt.Errorf("nil updater")
	}

	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, "UpdateFrame:"+frameID)

	row := tx.QueryRowContext(ctx, frameSelect+` WHERE frame_id = ?`, frameID)
	current, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "frame", ID: frameID}
	}
	if err != nil {
		return nil, err
	}

	updated, err := updater(current)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE frames SET character_library_id = ?, character_appearance = ?,
		                   consistency_score = ?, consistency_notes = ?,
		                   is_consistency_locked = ?, updated_at = ?
		 WHERE frame_id = ?`,
		nullStr(updated.CharacterLibraryID), nullStr(updated.CharacterAppearance),
		nullInt(updated.ConsistencyScore), nullStr(updated.ConsistencyNotes),
		boolToInt(updated.IsConsistencyLocked), fmtTime(updated.UpdatedAt), frameID)
	if err != nil {
		return nil, fmt.Errorf("update frame: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit frame update: %w", err)
	}
	return updated, nil
}

const frameSelect = `SELECT frame_id, project_id, shot_number, image_url,
       character_library_id, character_appearance,
       consistency_score, consistency_notes,
       is_consistency_locked, created_at, updated_at
FROM frames`

func scanFrame(row rowScanner) (*types.Frame, error) {
	var f types.Frame
	var charID, appearance, notes sql.NullString
	var score sql.NullInt64
	var locked int
	var createdAt, updatedAt string

	err := row.Scan(&f.FrameID, &f.ProjectID, &f.ShotNumber, &f.ImageURL,
		&charID, &appearance, &score, &notes, &locked, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan frame: %w", err)
	}
	f.CharacterLibraryID = strPtr(charID)
	f.CharacterAppearance = strPtr(appearance)
	f.ConsistencyScore = intPtr(score)
	f.ConsistencyNotes = strPtr(notes)
	f.IsConsistencyLocked = locked != 0
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
