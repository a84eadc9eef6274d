package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// CreateGeneration appends an immutable generation row. There is no update or
// delete path for generations anywhere in the store.
func (ls *LocalStorage) CreateGeneration(ctx context.Context, g *types.Generation) error {
	if g == nil {
		return fmt.Errorf("nil generation payload")
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	_, err := ls.db.ExecContext(ctx,
		`INSERT INTO generations (generation_id, shot_id, project_id, image_url, prompt,
		                          model, quality_tier, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.GenerationID, g.ShotID, g.ProjectID, g.ImageURL, g.Prompt,
		g.Model, g.QualityTier, g.Cost, fmtTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// CurrentGeneration returns the newest generation for a shot, or a
// NotFoundError when the shot has none.
func (ls *LocalStorage) CurrentGeneration(ctx context.Context, shotID string) (*types.Generation, error) {
	row := ls.db.QueryRowContext(ctx,
		`SELECT generation_id, shot_id, project_id, image_url, prompt, model, quality_tier, cost, created_at
		 FROM generations WHERE shot_id = ? ORDER BY created_at DESC LIMIT 1`, shotID)

	g, err := scanGeneration(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{Kind: "generation for shot", ID: shotID}
	}
	return g, err
}

// ListGenerations returns a shot's generations oldest first.
func (ls *LocalStorage) ListGenerations(ctx context.Context, shotID string) ([]*types.Generation, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT generation_id, shot_id, project_id, image_url, prompt, model, quality_tier, cost, created_at
		 FROM generations WHERE shot_id = ? ORDER BY created_at ASC`, shotID)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var gens []*types.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

func scanGeneration(row rowScanner) (*types.Generation, error) {
	var g types.Generation
	var createdAt string
	err := row.Scan(&g.GenerationID, &g.ShotID, &g.ProjectID, &g.ImageURL, &g.Prompt,
		&g.Model, &g.QualityTier, &g.Cost, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan generation: %w", err)
	}
	g.CreatedAt = parseTime(createdAt)
	return &g, nil
}
