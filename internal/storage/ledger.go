package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/pkg/types"
)

// AppendUsage inserts one usage ledger row. The timestamp is assigned here;
// the table has no update or delete path anywhere in the store.
func (ls *LocalStorage) AppendUsage(ctx context.Context, e *types.UsageLedgerEntry) error {
	if e == nil {
		return fmt.Errorf("nil ledger entry")
	}
	e.Timestamp = time.Now().UTC()

	_, err := ls.db.ExecContext(ctx,
		`INSERT INTO usage_ledger (entry_id, project_id, user_id, action_type, model_id, quantity, cost, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.ProjectID, e.UserID, e.ActionType, e.ModelID, e.Quantity, e.Cost, fmtTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ProjectUsageTotal sums cost over every ledger entry for a project. Returns
// 0 for a project with no entries.
func (ls *LocalStorage) ProjectUsageTotal(ctx context.Context, projectID string) (float64, error) {
	var total sql.NullFloat64
	err := ls.db.QueryRowContext(ctx,
		`SELECT SUM(cost) FROM usage_ledger WHERE project_id = ?`, projectID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query usage total: %w", err)
	}
	return total.Float64, nil
}

// ListUsage returns a project's ledger entries oldest first.
func (ls *LocalStorage) ListUsage(ctx context.Context, projectID string) ([]*types.UsageLedgerEntry, error) {
	rows, err := ls.db.QueryContext(ctx,
		`SELECT entry_id, project_id, user_id, action_type, model_id, quantity, cost, timestamp
		 FROM usage_ledger WHERE project_id = ? ORDER BY timestamp ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query usage ledger: %w", err)
	}
	defer rows.Close()

	var entries []*types.UsageLedgerEntry
	for rows.Next() {
		var e types.UsageLedgerEntry
		var ts string
		err := rows.Scan(&e.EntryID, &e.ProjectID, &e.UserID, &e.ActionType,
			&e.ModelID, &e.Quantity, &e.Cost, &ts)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Timestamp = parseTime(ts)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
