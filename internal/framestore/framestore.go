package framestore

import (
	"context"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/pkg/types"
)

// Store captures the storage operations behind the frame history and order
// store. The storage layer owns the per-key serialization of CreateFrameVersion.
type Store interface {
	CreateFrameVersion(ctx context.Context, v *types.FrameHistoryVersion) error
	ListFrameHistory(ctx context.Context, projectID string, shotNumber int) ([]*types.FrameHistoryVersion, error)
	SetFrameOrder(ctx context.Context, projectID string, entries []*types.FrameOrderEntry) error
	GetFrameOrder(ctx context.Context, projectID string) ([]*types.FrameOrderEntry, error)
}

// FrameStore versions frame history per (project, shot number) and keeps the
// project's independent display ordering.
type FrameStore struct {
	store Store
}

// New returns a frame store over the given storage.
func New(store Store) *FrameStore {
	return &FrameStore{store: store}
}

// OrderInput is one caller-supplied ordering entry.
type OrderInput struct {
	ShotNumber   int `json:"shot_number"`
	DisplayOrder int `json:"display_order"`
}

// CreateVersion appends a new version for (project, shot number), deactivates
// every prior version, and returns the new row as the single active one.
func (fs *FrameStore) CreateVersion(ctx context.Context, projectID string, shotNumber int, imageURL, prompt string, notes *string) (*types.FrameHistoryVersion, error) {
	if imageURL == "" {
		return nil, &types.ValidationError{Field: "imageUrl", Reason: "must not be empty"}
	}

	v := &types.FrameHistoryVersion{
		VersionID:  uuid.NewString(),
		ProjectID:  projectID,
		ShotNumber: shotNumber,
		ImageURL:   imageURL,
		Prompt:     prompt,
		Notes:      notes,
	}
	if err := fs.store.CreateFrameVersion(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ListHistory returns every version for the key, version number ascending.
func (fs *FrameStore) ListHistory(ctx context.Context, projectID string, shotNumber int) ([]*types.FrameHistoryVersion, error) {
	return fs.store.ListFrameHistory(ctx, projectID, shotNumber)
}

// SetOrder atomically replaces the project's whole ordering set. No
// uniqueness or contiguity validation is applied to display orders.
func (fs *FrameStore) SetOrder(ctx context.Context, projectID string, entries []OrderInput) error {
	rows := make([]*types.FrameOrderEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &types.FrameOrderEntry{
			ProjectID:    projectID,
			ShotNumber:   e.ShotNumber,
			DisplayOrder: e.DisplayOrder,
		})
	}
	return fs.store.SetFrameOrder(ctx, projectID, rows)
}

// GetOrder returns the ordering sorted by display order ascending, ties
// broken by shot number ascending.
func (fs *FrameStore) GetOrder(ctx context.Context, projectID string) ([]*types.FrameOrderEntry, error) {
	return fs.store.GetFrameOrder(ctx, projectID)
}
