package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// CreateScenesBatch inserts every scene in one transaction so a decomposition
// stage persists all-or-nothing.
func (ls *LocalStorage) CreateScenesBatch(ctx context.Context, scenes []*types.Scene) error {
	if len(scenes) == 0 {
		return nil
	}

	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, "CreateScenesBatch")

	now := time.Now().UTC()
	for _, s := range scenes {
		s.CreatedAt = now
		s.UpdatedAt = now
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scenes (scene_id, project_id, scene_order, title, description, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.SceneID, s.ProjectID, s.Order, s.Title, s.Description, s.Status,
			fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert scene order %d: %w", s.Order, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scenes batch: %w", err)
	}
	return nil
}

// GetScene fetches one scene by ID.
func (ls *LocalStorage) GetScene(ctx context.Context, sceneID string) (*types.Scene, error) {
	row := ls.db.QueryRowContext(ctx,
		`SELECT scene_id, project_id, scene_order, title, description, status, created_at, updated_at
		 FROM scenes WHERE scene_id = ?`, sceneID)
	s, err := scanScene(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "scene", ID: sceneID}
	}
	return s, err
}

// ListScenes returns a project's scenes ordered by scene order.
func (ls *LocalStorage) ListScenes(ctx context.Context, projectID string) ([]*types.Scene, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT scene_id, project_id, scene_order, title, description, status, created_at, updated_at
		 FROM scenes WHERE project_id = ? ORDER BY scene_order ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*types.Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, s)
	}
	return scenes, rows.Err()
}

// MaxSceneOrder returns the highest scene order in a project, 0 when the
// project has no scenes. Repeated decompositions append after this.
func (ls *LocalStorage) MaxSceneOrder(ctx context.Context, projectID string) (int, error) {
	var max sql.NullInt64
	err := ls.db.QueryRowContext(ctx,
		`SELECT MAX(scene_order) FROM scenes WHERE project_id = ?`, projectID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("query max scene order: %w", err)
	}
	return int(max.Int64), nil
}

// UpdateSceneStatus sets a scene's advisory status label.
func (ls *LocalStorage) UpdateSceneStatus(ctx context.Context, sceneID, status string) error {
	res, err := ls.db.ExecContext(ctx,
		`UPDATE scenes SET status = ?, updated_at = ? WHERE scene_id = ?`,
		status, fmtTime(time.Now().UTC()), sceneID)
	if err != nil {
		return fmt.Errorf("update scene status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.NotFoundError{Kind: "scene", ID: sceneID}
	}
	return nil
}

// CreateShotsBatch inserts every shot in one transaction and flips the owning
// scene to planned as part of the same commit.
func (ls *LocalStorage) CreateShotsBatch(ctx context.Context, sceneID string, shots []*types.Shot) error {
	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, "CreateShotsBatch:"+sceneID)

	now := time.Now().UTC()
	for _, sh := range shots {
		sh.CreatedAt = now
		sh.UpdatedAt = now
		_, err := tx.ExecContext(ctx,
			`INSERT INTO shots (shot_id, scene_id, shot_order, visual_description, camera_angle,
			                    movement, lighting, lens, audio_description, status, actor_id,
			                    created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sh.ShotID, sh.SceneID, sh.Order, sh.VisualDescription, sh.CameraAngle,
			sh.Movement, sh.Lighting, sh.Lens, sh.AudioDescription, sh.Status,
			nullStr(sh.ActorID), fmtTime(sh.CreatedAt), fmtTime(sh.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert shot order %d: %w", sh.Order, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE scenes SET status = ?, updated_at = ? WHERE scene_id = ?`,
		types.SceneStatusPlanned, fmtTime(now), sceneID)
	if err != nil {
		return fmt.Errorf("update scene status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shots batch: %w", err)
	}
	return nil
}

// GetShot fetches one shot by ID.
func (ls *LocalStorage) GetShot(ctx context.Context, shotID string) (*types.Shot, error) {
	row := ls.db.QueryRowContext(ctx,
		`SELECT shot_id, scene_id, shot_order, visual_description, camera_angle,
		        movement, lighting, lens, audio_description, status, actor_id,
		        created_at, updated_at
		 FROM shots WHERE shot_id = ?`, shotID)
	sh, err := scanShot(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "shot", ID: shotID}
	}
	return sh, err
}

// ListShots returns a scene's shots ordered by shot order.
func (ls *LocalStorage) ListShots(ctx context.Context, sceneID string) ([]*types.Shot, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT shot_id, scene_id, shot_order, visual_description, camera_angle,
		        movement, lighting, lens, audio_description, status, actor_id,
		        created_at, updated_at
		 FROM shots WHERE scene_id = ? ORDER BY shot_order ASC`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("query shots: %w", err)
	}
	defer rows.Close()

	var shots []*types.Shot
	for rows.Next() {
		sh, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, sh)
	}
	return shots, rows.Err()
}

// UpdateShotStatus sets a shot's advisory status label.
func (ls *LocalStorage) UpdateShotStatus(ctx context.Context, shotID, status string) error {
	res, err := ls.db.ExecContext(ctx,
		`UPDATE shots SET status = ?, updated_at = ? WHERE shot_id = ?`,
		status, fmtTime(time.Now().UTC()), shotID)
	if err != nil {
		return fmt.Errorf("update shot status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.NotFoundError{Kind: "shot", ID: shotID}
	}
	return nil
}

// BindShotActor attaches a trained actor to a shot so subsequent generations
// use its custom model handle.
func (ls *LocalStorage) BindShotActor(ctx context.Context, shotID string, actorID *string) error {
	res, err := ls.db.ExecContext(ctx,
		`UPDATE shots SET actor_id = ?, updated_at = ? WHERE shot_id = ?`,
		nullStr(actorID), fmtTime(time.Now().UTC()), shotID)
	if err != nil {
		return fmt.Errorf("bind shot actor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.NotFoundError{Kind: "shot", ID: shotID}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScene(row rowScanner) (*types.Scene, error) {
	var s types.Scene
	var createdAt, updatedAt string
	err := row.Scan(&s.SceneID, &s.ProjectID, &s.Order, &s.Title, &s.Description,
		&s.Status, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan scene: %w", err)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanShot(row rowScanner) (*types.Shot, error) {
	var sh types.Shot
	var actorID sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&sh.ShotID, &sh.SceneID, &sh.Order, &sh.VisualDescription,
		&sh.CameraAngle, &sh.Movement, &sh.Lighting, &sh.Lens,
		&sh.AudioDescription, &sh.Status, &actorID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan shot: %w", err)
	}
	sh.ActorID = strPtr(actorID)
	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)
	return &sh, nil
}
