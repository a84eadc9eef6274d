package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reelforge/reelforge/pkg/types"
)

// FrameStorage captures the frame reads and writes the HTTP layer needs
// outside the consistency engine.
type FrameStorage interface {
	CreateFrame(ctx context.Context, f *types.Frame) error
	GetFrame(ctx context.Context, frameID string) (*types.Frame, error)
	ListFrames(ctx context.Context, projectID string) ([]*types.Frame, error)
}

// ConsistencyService captures the identity lock and consistency operations.
type ConsistencyService interface {
	BindCharacter(ctx context.Context, frameID, characterLibraryID string, appearance *string) (*types.Frame, error)
	UpdateConsistencyScore(ctx context.Context, frameID string, score int, notes *string) (*types.Frame, error)
	Lock(ctx context.Context, frameID string) (*types.Frame, error)
	Unlock(ctx context.Context, frameID string) (*types.Frame, error)
	ClearBinding(ctx context.Context, frameID string) (*types.Frame, error)
	Report(ctx context.Context, projectID string) (*types.ConsistencyReport, error)
}

// CreateFrameRequest is the request body for registering a frame. ShotNumber
// is validated by hand so that 0 stays a legal value.
type CreateFrameRequest struct {
	ShotNumber int    `json:"shot_number"`
	ImageURL   string `json:"image_url" binding:"required"`
}

// CreateFrameHandler handles POST /api/v1/projects/:project_id/frames
func CreateFrameHandler(store FrameStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateFrameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		if strings.TrimSpace(req.ImageURL) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image_url cannot be empty"})
			return
		}
		if req.ShotNumber < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shot_number cannot be negative"})
			return
		}

		now := time.Now()
		frame := &types.Frame{
			FrameID:    uuid.NewString(),
			ProjectID:  c.Param("project_id"),
			ShotNumber: req.ShotNumber,
			ImageURL:   req.ImageURL,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.CreateFrame(context.Background(), frame); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, frame)
	}
}

// ListFramesHandler handles GET /api/v1/projects/:project_id/frames
func ListFramesHandler(store FrameStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		frames, err := store.ListFrames(context.Background(), c.Param("project_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if frames == nil {
			frames = []*types.Frame{}
		}
		c.JSON(http.StatusOK, gin.H{"frames": frames, "total": len(frames)})
	}
}

// BindCharacterRequest is the request body for binding a character to a frame.
type BindCharacterRequest struct {
	CharacterLibraryID string  `json:"character_library_id" binding:"required"`
	Appearance         *string `json:"appearance"`
}

// BindCharacterHandler handles PUT /api/v1/frames/:frame_id/character
func BindCharacterHandler(svc ConsistencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BindCharacterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		frame, err := svc.BindCharacter(context.Background(), c.Param("frame_id"), req.CharacterLibraryID, req.Appearance)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, frame)
	}
}

// UpdateScoreRequest is the request body for recording a consistency score.
type UpdateScoreRequest struct {
	Score int     `json:"score"`
	Notes *string `json:"notes"`
}

// UpdateScoreHandler handles PUT /api/v1/frames/:frame_id/consistency-score
func UpdateScoreHandler(svc ConsistencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateScoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		frame, err := svc.UpdateConsistencyScore(context.Background(), c.Param("frame_id"), req.Score, req.Notes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, frame)
	}
}

// LockFrameHandler handles POST /api/v1/frames/:frame_id/lock
func LockFrameHandler(svc ConsistencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		frame, err := svc.Lock(context.Background(), c.Param("frame_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, frame)
	}
}

// UnlockFrameHandler handles POST /api/v1/frames/:frame_id/unlock
func UnlockFrameHandler(svc ConsistencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		frame, err := svc.Unlock(context.Background(), c.Param("frame_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, frame)
	}
}

// ClearBindingHandler handles DELETE /api/v1/frames/:frame_id/character
// Clearing is permitted on locked frames and resets the lock.
func ClearBindingHandler(svc ConsistencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		frame, err := svc.ClearBinding(context.Background(), c.Param("frame_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, frame)
	}
}

// ConsistencyReportHandler handles GET /api/v1/projects/:project_id/consistency-report
func ConsistencyReportHandler(svc ConsistencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Report(context.Background(), c.Param("project_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
