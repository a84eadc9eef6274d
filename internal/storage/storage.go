package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/reelforge/reelforge/internal/logger"

	_ "modernc.org/sqlite"
)

// LocalStorage is the sqlite-backed persistence layer. All timestamps are
// stored as UTC RFC3339Nano TEXT so rows stay portable across drivers.
type LocalStorage struct {
	db *sql.DB

	// versionMu guards versionLocks, which serializes createVersion per
	// (project, shot number) key so concurrent calls cannot read the same
	// max version number.
	versionMu    sync.Mutex
	versionLocks map[string]*sync.Mutex
}

// NewLocalStorage opens (or creates) the database at path and applies the
// schema. ":memory:" opens an ephemeral store.
func NewLocalStorage(path string) (*LocalStorage, error) {
	dsn := path
	if path == ":memory:" {
		// Shared cache keeps every pooled connection on the same in-memory DB.
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ls := &LocalStorage{
		db:           db,
		versionLocks: make(map[string]*sync.Mutex),
	}
	if err := ls.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Logger.Info().Str("path", path).Msg("local storage ready")
	return ls, nil
}

// Close releases the underlying database handle.
func (ls *LocalStorage) Close() error { return ls.db.Close() }

func (ls *LocalStorage) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scenes (
			scene_id    TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			scene_order INTEGER NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE(project_id, scene_order)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_project ON scenes(project_id)`,
		`CREATE TABLE IF NOT EXISTS shots (
			shot_id           TEXT PRIMARY KEY,
			scene_id          TEXT NOT NULL,
			shot_order        INTEGER NOT NULL,
			visual_description TEXT NOT NULL,
			camera_angle      TEXT NOT NULL,
			movement          TEXT NOT NULL,
			lighting          TEXT NOT NULL,
			lens              TEXT NOT NULL,
			audio_description TEXT NOT NULL,
			status            TEXT NOT NULL,
			actor_id          TEXT,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL,
			UNIQUE(scene_id, shot_order)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shots_scene ON shots(scene_id)`,
		`CREATE TABLE IF NOT EXISTS generations (
			generation_id TEXT PRIMARY KEY,
			shot_id       TEXT NOT NULL,
			project_id    TEXT NOT NULL,
			image_url     TEXT NOT NULL,
			prompt        TEXT NOT NULL,
			model         TEXT NOT NULL,
			quality_tier  TEXT NOT NULL,
			cost          REAL NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_generations_shot ON generations(shot_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS frames (
			frame_id              TEXT PRIMARY KEY,
			project_id            TEXT NOT NULL,
			shot_number           INTEGER NOT NULL,
			image_url             TEXT NOT NULL,
			character_library_id  TEXT,
			character_appearance  TEXT,
			consistency_score     INTEGER,
			consistency_notes     TEXT,
			is_consistency_locked INTEGER NOT NULL DEFAULT 0,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_frames_project ON frames(project_id)`,
		`CREATE TABLE IF NOT EXISTS actors (
			actor_id        TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			project_id      TEXT NOT NULL,
			name            TEXT NOT NULL,
			trigger_word    TEXT NOT NULL,
			dataset_url     TEXT NOT NULL,
			status          TEXT NOT NULL,
			training_job_id TEXT,
			model_handle    TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actors_user ON actors(user_id)`,
		`CREATE TABLE IF NOT EXISTS usage_ledger (
			entry_id    TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			action_type TEXT NOT NULL,
			model_id    TEXT NOT NULL,
			quantity    INTEGER NOT NULL,
			cost        REAL NOT NULL,
			timestamp   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_ledger_project ON usage_ledger(project_id)`,
		`CREATE TABLE IF NOT EXISTS frame_history (
			version_id     TEXT PRIMARY KEY,
			project_id     TEXT NOT NULL,
			shot_number    INTEGER NOT NULL,
			version_number INTEGER NOT NULL,
			is_active      INTEGER NOT NULL DEFAULT 0,
			image_url      TEXT NOT NULL,
			prompt         TEXT NOT NULL,
			notes          TEXT,
			created_at     TEXT NOT NULL,
			UNIQUE(project_id, shot_number, version_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_frame_history_key ON frame_history(project_id, shot_number)`,
		`CREATE TABLE IF NOT EXISTS frame_order (
			project_id    TEXT NOT NULL,
			shot_number   INTEGER NOT NULL,
			display_order INTEGER NOT NULL,
			PRIMARY KEY(project_id, shot_number)
		)`,
	}

	for _, stmt := range schema {
		if _, err := ls.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// versionLock returns the mutex guarding createVersion for one
// (project, shot number) key, creating it on first use.
func (ls *LocalStorage) versionLock(projectID string, shotNumber int) *sync.Mutex {
	key := fmt.Sprintf("%s:%d", projectID, shotNumber)
	ls.versionMu.Lock()
	defer ls.versionMu.Unlock()
	mu, ok := ls.versionLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		ls.versionLocks[key] = mu
	}
	return mu
}

// rollbackTx rolls back tx and logs when rollback itself fails. Safe to defer
// after a successful commit; the driver reports ErrTxDone which is ignored.
func rollbackTx(tx *sql.Tx, op string) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logger.Logger.Warn().Err(err).Str("op", op).Msg("transaction rollback failed")
	}
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullStr(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
