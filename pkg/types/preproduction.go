package types

import "time"

// Scene statuses are advisory labels set by the decomposition pipeline. No
// operation in the core treats them as hard preconditions.
const (
	SceneStatusDraft   = "draft"
	SceneStatusPlanned = "planned"
	SceneStatusShot    = "shot"
)

// Shot statuses mirror the scene lifecycle at shot granularity.
const (
	ShotStatusPlanned  = "planned"
	ShotStatusShot     = "shot"
	ShotStatusApproved = "approved"
)

// Actor statuses. An actor is created in pending, moves to training once the
// external job is submitted, and ends in ready or failed. Terminal states are
// final; the storage layer rejects any other transition.
const (
	ActorStatusPending  = "pending"
	ActorStatusTraining = "training"
	ActorStatusReady    = "ready"
	ActorStatusFailed   = "failed"
)

// Billable action types recorded in the usage ledger.
const (
	ActionShotGeneration  = "SHOT_GENERATION"
	ActionImageGeneration = "IMAGE_GENERATION"
	ActionModelTraining   = "MODEL_TRAINING"
)

// IsTerminalActorStatus reports whether status is ready or failed.
func IsTerminalActorStatus(status string) bool {
	return status == ActorStatusReady || status == ActorStatusFailed
}

// ValidActorTransition reports whether from→to is a legal forward transition.
// Self-transitions are not valid; callers short-circuit those before writing.
func ValidActorTransition(from, to string) bool {
	switch from {
	case ActorStatusPending:
		return to == ActorStatusTraining || to == ActorStatusFailed
	case ActorStatusTraining:
		return to == ActorStatusReady || to == ActorStatusFailed
	default:
		return false
	}
}

// Project is the root container. Deleting a project cascades to every scene,
// shot, generation, frame, history version and order entry beneath it. Usage
// ledger entries are retained for billing audit.
type Project struct {
	ProjectID string    `json:"project_id" db:"project_id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Scene is an ordered narrative unit decomposed from a script. Order is unique
// within a project and assigned sequentially by the pipeline.
type Scene struct {
	SceneID     string    `json:"scene_id" db:"scene_id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	Order       int       `json:"order" db:"scene_order"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Shot is an ordered visual unit decomposed from a scene; the unit of image
// generation. Order is unique within a scene.
type Shot struct {
	ShotID            string    `json:"shot_id" db:"shot_id"`
	SceneID           string    `json:"scene_id" db:"scene_id"`
	Order             int       `json:"order" db:"shot_order"`
	VisualDescription string    `json:"visual_description" db:"visual_description"`
	CameraAngle       string    `json:"camera_angle" db:"camera_angle"`
	Movement          string    `json:"movement" db:"movement"`
	Lighting          string    `json:"lighting" db:"lighting"`
	Lens              string    `json:"lens" db:"lens"`
	AudioDescription  string    `json:"audio_description" db:"audio_description"`
	Status            string    `json:"status" db:"status"`
	ActorID           *string   `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Generation is an immutable record of one image generation for a shot. Rows
// are never updated or deleted; the current generation for a shot is the one
// with the latest CreatedAt.
type Generation struct {
	GenerationID string    `json:"generation_id" db:"generation_id"`
	ShotID       string    `json:"shot_id" db:"shot_id"`
	ProjectID    string    `json:"project_id" db:"project_id"`
	ImageURL     string    `json:"image_url" db:"image_url"`
	Prompt       string    `json:"prompt" db:"prompt"`
	Model        string    `json:"model" db:"model"`
	QualityTier  string    `json:"quality_tier" db:"quality_tier"`
	Cost         float64   `json:"cost" db:"cost"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Frame is a generated storyboard image for a shot number within a project.
// The character binding fields are mutated only by the consistency engine and
// are guarded by IsConsistencyLocked.
type Frame struct {
	FrameID             string    `json:"frame_id" db:"frame_id"`
	ProjectID           string    `json:"project_id" db:"project_id"`
	ShotNumber          int       `json:"shot_number" db:"shot_number"`
	ImageURL            string    `json:"image_url" db:"image_url"`
	CharacterLibraryID  *string   `json:"character_library_id,omitempty" db:"character_library_id"`
	CharacterAppearance *string   `json:"character_appearance,omitempty" db:"character_appearance"`
	ConsistencyScore    *int      `json:"consistency_score,omitempty" db:"consistency_score"`
	ConsistencyNotes    *string   `json:"consistency_notes,omitempty" db:"consistency_notes"`
	IsConsistencyLocked bool      `json:"is_consistency_locked" db:"is_consistency_locked"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is a user-initiated custom visual model tracked through an external
// training job lifecycle.
type Actor struct {
	ActorID       string    `json:"actor_id" db:"actor_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	ProjectID     string    `json:"project_id" db:"project_id"`
	Name          string    `json:"name" db:"name"`
	TriggerWord   string    `json:"trigger_word" db:"trigger_word"`
	DatasetURL    string    `json:"dataset_url" db:"dataset_url"`
	Status        string    `json:"status" db:"status"`
	TrainingJobID *string   `json:"training_job_id,omitempty" db:"training_job_id"`
	ModelHandle   *string   `json:"model_handle,omitempty" db:"model_handle"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// UsageLedgerEntry is one append-only billing row. No update or delete
// operation exists anywhere in the core.
type UsageLedgerEntry struct {
	EntryID    string    `json:"entry_id" db:"entry_id"`
	ProjectID  string    `json:"project_id" db:"project_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	ActionType string    `json:"action_type" db:"action_type"`
	ModelID    string    `json:"model_id" db:"model_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	Cost       float64   `json:"cost" db:"cost"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// FrameHistoryVersion is one row of the versioned frame history. Exactly one
// row per (project, shot number) carries IsActive=true at any time, and
// VersionNumber strictly increases per key.
type FrameHistoryVersion struct {
	VersionID     string    `json:"version_id" db:"version_id"`
	ProjectID     string    `json:"project_id" db:"project_id"`
	ShotNumber    int       `json:"shot_number" db:"shot_number"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	ImageURL      string    `json:"image_url" db:"image_url"`
	Prompt        string    `json:"prompt" db:"prompt"`
	Notes         *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// FrameOrderEntry is one row of a project's caller-controlled display
// ordering, decoupled from shot numbering. A setOrder call replaces the whole
// set atomically; displayOrder uniqueness is the caller's responsibility.
type FrameOrderEntry struct {
	ProjectID    string `json:"project_id" db:"project_id"`
	ShotNumber   int    `json:"shot_number" db:"shot_number"`
	DisplayOrder int    `json:"display_order" db:"display_order"`
}

// CharacterConsistency is one per-character bucket of the consistency report.
type CharacterConsistency struct {
	CharacterLibraryID string  `json:"character_library_id"`
	FrameCount         int     `json:"frame_count"`
	AverageScore       float64 `json:"average_score"`
}

// ConsistencyReport aggregates character binding state over every frame in a
// project. AverageConsistencyScore covers only frames with a character bound
// and is 0 when there are none.
type ConsistencyReport struct {
	TotalFrames             int                    `json:"total_frames"`
	FramesWithCharacters    int                    `json:"frames_with_characters"`
	AverageConsistencyScore int                    `json:"average_consistency_score"`
	LockedFrames            int                    `json:"locked_frames"`
	InconsistentFrames      int                    `json:"inconsistent_frames"`
	CharacterBreakdown      []CharacterConsistency `json:"character_breakdown"`
}

// AppearanceDescriptor is the structured appearance handed to the external
// consistency analyzer.
type AppearanceDescriptor struct {
	Clothing    string   `json:"clothing,omitempty"`
	Expression  string   `json:"expression,omitempty"`
	Pose        string   `json:"pose,omitempty"`
	Accessories []string `json:"accessories,omitempty"`
}

// SimilarityJudgement is the analyzer's verdict on two appearances.
type SimilarityJudgement struct {
	Score       float64  `json:"score"`
	Verdict     string   `json:"verdict"`
	Differences []string `json:"differences,omitempty"`
}

// ShotGenerationResult is one tagged entry of a batch generation result list.
// One item's failure never cancels its siblings or the batch.
type ShotGenerationResult struct {
	ShotID   string `json:"shot_id"`
	Success  bool   `json:"success"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PlannedScene is the narrative segmentation collaborator's output unit.
type PlannedScene struct {
	Order       int    `json:"order"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PlannedShot is the shot planning collaborator's output unit.
type PlannedShot struct {
	Order             int    `json:"order"`
	VisualDescription string `json:"visual_description"`
	CameraAngle       string `json:"camera_angle"`
	Movement          string `json:"movement"`
	Lighting          string `json:"lighting"`
	Lens              string `json:"lens"`
	AudioDescription  string `json:"audio_description"`
}
