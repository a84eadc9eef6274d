package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/pkg/types"
)

// Store captures the storage operations the ledger needs. Deliberately
// append-and-read only: no update or delete exists.
type Store interface {
	AppendUsage(ctx context.Context, e *types.UsageLedgerEntry) error
	ProjectUsageTotal(ctx context.Context, projectID string) (float64, error)
	ListUsage(ctx context.Context, projectID string) ([]*types.UsageLedgerEntry, error)
}

// Ledger is the append-only cost log. Every billable action in the core
// appends exactly one entry, even along partial-success paths; cost already
// logged before a downstream failure is never reversed.
type Ledger struct {
	store Store
}

// New returns a ledger over the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Append records one billable action and returns the stored entry.
func (l *Ledger) Append(ctx context.Context, projectID, userID, actionType, modelID string, quantity int, cost float64) (*types.UsageLedgerEntry, error) {
	entry := &types.UsageLedgerEntry{
		EntryID:    uuid.NewString(),
		ProjectID:  projectID,
		UserID:     userID,
		ActionType: actionType,
		ModelID:    modelID,
		Quantity:   quantity,
		Cost:       cost,
	}
	if err := l.store.AppendUsage(ctx, entry); err != nil {
		return nil, err
	}

	logger.Logger.Debug().
		Str("project_id", projectID).
		Str("action_type", actionType).
		Float64("cost", cost).
		Msg("usage recorded")
	return entry, nil
}

// ProjectTotal sums cost across a project's entries, 0 when none exist.
func (l *Ledger) ProjectTotal(ctx context.Context, projectID string) (float64, error) {
	return l.store.ProjectUsageTotal(ctx, projectID)
}

// Entries lists a project's ledger rows oldest first.
func (l *Ledger) Entries(ctx context.Context, projectID string) ([]*types.UsageLedgerEntry, error) {
	return l.store.ListUsage(ctx, projectID)
}
