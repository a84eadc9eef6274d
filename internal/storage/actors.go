package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// CreateActor inserts a new actor row in pending.
func (ls *LocalStorage) CreateActor(ctx context.Context, a *types.Actor) error {
	if a == nil {
		return fmt.Errorf("nil actor payload")
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = types.ActorStatusPending
	}

	_, err := ls.db.ExecContext(ctx,
		`INSERT INTO actors (actor_id, user_id, project_id, name, trigger_word, dataset_url,
		                     status, training_job_id, model_handle, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActorID, a.UserID, a.ProjectID, a.Name, a.TriggerWord, a.DatasetURL,
		a.Status, nullStr(a.TrainingJobID), nullStr(a.ModelHandle),
		fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

// GetActor fetches one actor by ID.
func (ls *LocalStorage) GetActor(ctx context.Context, actorID string) (*types.Actor, error) {
	row := ls.db.QueryRowContext(ctx, actorSelect+` WHERE actor_id = ?`, actorID)
	a, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "actor", ID: actorID}
	}
	return a, err
}

// ListActors returns every actor owned by userID, newest first.
func (ls *LocalStorage) ListActors(ctx context.Context, userID string) ([]*types.Actor, error) {
	rows, err := ls.db.QueryContext(ctx, actorSelect+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query actors: %w", err)
	}
	defer rows.Close()

	var actors []*types.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

// TransitionActor moves an actor to a new status with a compare-and-swap on
// the state field. Only forward transitions are accepted
// (pending→training, training→ready, training→failed). Anything else,
// including any write against a terminal actor, fails with a
// StateConflictError. Job ID and model handle are written only when non-nil.
func (ls *LocalStorage) TransitionActor(ctx context.Context, actorID, toStatus string, jobID, modelHandle *string) (*types.Actor, error) {
	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, "TransitionActor:"+actorID)

	row := tx.QueryRowContext(ctx, actorSelect+` WHERE actor_id = ?`, actorID)
	current, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "actor", ID: actorID}
	}
	if err != nil {
		return nil, err
	}

	if !types.ValidActorTransition(current.Status, toStatus) {
		return nil, &types.StateConflictError{
			Reason: fmt.Sprintf("actor %s cannot move from %s to %s", actorID, current.Status, toStatus),
		}
	}

	current.Status = toStatus
	if jobID != nil {
		current.TrainingJobID = jobID
	}
	if modelHandle != nil {
		current.ModelHandle = modelHandle
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE actors SET status = ?, training_job_id = ?, model_handle = ?, updated_at = ?
		 WHERE actor_id = ?`,
		current.Status, nullStr(current.TrainingJobID), nullStr(current.ModelHandle),
		fmtTime(current.UpdatedAt), actorID)
	if err != nil {
		return nil, fmt.Errorf("update actor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit actor transition: %w", err)
	}
	return current, nil
}

const actorSelect = `SELECT actor_id, user_id, project_id, name, trigger_word, dataset_url,
       status, training_job_id, model_handle, created_at, updated_at
FROM actors`

func scanActor(row rowScanner) (*types.Actor, error) {
	var a types.Actor
	var jobID, handle sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&a.ActorID, &a.UserID, &a.ProjectID, &a.Name, &a.TriggerWord,
		&a.DatasetURL, &a.Status, &jobID, &handle, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan actor: %w", err)
	}
	a.TrainingJobID = strPtr(jobID)
	a.ModelHandle = strPtr(handle)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
