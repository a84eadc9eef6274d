package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// CreateProject inserts a new project row.
func (ls *LocalStorage) CreateProject(ctx context.Context, p *types.Project) error {
	if p == nil {
		return fmt.Errorf("nil project payload")
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := ls.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, owner_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ProjectID, p.OwnerID, p.Name, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject fetches one project by ID.
func (ls *LocalStorage) GetProject(ctx context.Context, projectID string) (*types.Project, error) {
	row := ls.db.QueryRowContext(ctx,
		`SELECT project_id, owner_id, name, created_at, updated_at
		 FROM projects WHERE project_id = ?`, projectID)

	var p types.Project
	var createdAt, updatedAt string
	if err := row.Scan(&p.ProjectID, &p.OwnerID, &p.Name, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, &types.NotFoundError{Kind: "project", ID: projectID}
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListProjects returns every project owned by ownerID, newest first.
func (ls *LocalStorage) ListProjects(ctx context.Context, ownerID string) ([]*types.Project, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT project_id, owner_id, name, created_at, updated_at
		 FROM projects WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*types.Project
	for rows.Next() {
		var p types.Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ProjectID, &p.OwnerID, &p.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and every descendant row in one
// transaction. Usage ledger entries are retained for billing audit.
func (ls *LocalStorage) DeleteProject(ctx context.Context, projectID string) error {
	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackTx(tx, "DeleteProject:"+projectID)

	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.NotFoundError{Kind: "project", ID: projectID}
	}

	deletes := []string{
		`DELETE FROM shots WHERE scene_id IN (SELECT scene_id FROM scenes WHERE project_id = ?)`,
		`DELETE FROM scenes WHERE project_id = ?`,
		`DELETE FROM generations WHERE project_id = ?`,
		`DELETE FROM frames WHERE project_id = ?`,
		`DELETE FROM frame_history WHERE project_id = ?`,
		`DELETE FROM frame_order WHERE project_id = ?`,
	}
	for _, stmt := range deletes {
		if _, err := tx.ExecContext(ctx, stmt, projectID); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit project delete: %w", err)
	}
	return nil
}
