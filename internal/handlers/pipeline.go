package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelforge/reelforge/pkg/types"
)

// PipelineService captures the decomposition pipeline operations the HTTP
// layer drives.
type PipelineService interface {
	DecomposeScript(ctx context.Context, projectID, scriptText string) ([]*types.Scene, error)
	DecomposeScene(ctx context.Context, sceneID, userID string) ([]*types.Shot, error)
	GenerateShotImage(ctx context.Context, shotID, userID string) (string, error)
	GenerateBatch(ctx context.Context, shotIDs []string, userID string, concurrency int) ([]types.ShotGenerationResult, error)
	Scenes(ctx context.Context, projectID string) ([]*types.Scene, error)
	Shots(ctx context.Context, sceneID string) ([]*types.Shot, error)
	CurrentGeneration(ctx context.Context, shotID string) (*types.Generation, error)
}

// ShotActorBinder captures the shot/actor binding write.
type ShotActorBinder interface {
	BindShotActor(ctx context.Context, shotID string, actorID *string) error
}

// DecomposeScriptRequest is the request body for script decomposition.
type DecomposeScriptRequest struct {
	ScriptText string `json:"script_text" binding:"required"`
}

// DecomposeScriptHandler handles POST /api/v1/projects/:project_id/decompose
func DecomposeScriptHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DecomposeScriptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		scenes, err := svc.DecomposeScript(context.Background(), c.Param("project_id"), req.ScriptText)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"scenes": scenes, "total": len(scenes)})
	}
}

// ListScenesHandler handles GET /api/v1/projects/:project_id/scenes
func ListScenesHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		scenes, err := svc.Scenes(context.Background(), c.Param("project_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if scenes == nil {
			scenes = []*types.Scene{}
		}
		c.JSON(http.StatusOK, gin.H{"scenes": scenes, "total": len(scenes)})
	}
}

// DecomposeSceneHandler handles POST /api/v1/scenes/:scene_id/shots
// Plans a scene's shots and records the spend in the usage ledger.
func DecomposeSceneHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shots, err := svc.DecomposeScene(context.Background(), c.Param("scene_id"), userIDFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"shots": shots, "total": len(shots)})
	}
}

// ListShotsHandler handles GET /api/v1/scenes/:scene_id/shots
func ListShotsHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shots, err := svc.Shots(context.Background(), c.Param("scene_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if shots == nil {
			shots = []*types.Shot{}
		}
		c.JSON(http.StatusOK, gin.H{"shots": shots, "total": len(shots)})
	}
}

// GenerateShotResponse is the response for a single shot generation.
type GenerateShotResponse struct {
	ShotID   string `json:"shot_id"`
	ImageURL string `json:"image_url"`
}

// GenerateShotHandler handles POST /api/v1/shots/:shot_id/generate
func GenerateShotHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shotID := c.Param("shot_id")
		imageURL, err := svc.GenerateShotImage(context.Background(), shotID, userIDFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, GenerateShotResponse{ShotID: shotID, ImageURL: imageURL})
	}
}

// CurrentGenerationHandler handles GET /api/v1/shots/:shot_id/generation
func CurrentGenerationHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		gen, err := svc.CurrentGeneration(context.Background(), c.Param("shot_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gen)
	}
}

// BindShotActorRequest is the request body for binding an actor to a shot.
// A null actor_id clears the binding.
type BindShotActorRequest struct {
	ActorID *string `json:"actor_id"`
}

// BindShotActorHandler handles PUT /api/v1/shots/:shot_id/actor
func BindShotActorHandler(store ShotActorBinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BindShotActorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		if err := store.BindShotActor(context.Background(), c.Param("shot_id"), req.ActorID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GenerateBatchRequest is the request body for batch generation.
type GenerateBatchRequest struct {
	ShotIDs     []string `json:"shot_ids" binding:"required"`
	Concurrency int      `json:"concurrency"`
}

// GenerateBatchResponse carries the per-item outcomes of a batch.
type GenerateBatchResponse struct {
	Results []types.ShotGenerationResult `json:"results"`
	Total   int                          `json:"total"`
	Failed  int                          `json:"failed"`
}

// GenerateBatchHandler handles POST /api/v1/generate-batch
// Responds 200 when every item succeeded and 207 on a partial failure; the
// per-item result list carries the detail either way.
func GenerateBatchHandler(svc PipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GenerateBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		if len(req.ShotIDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shot_ids cannot be empty"})
			return
		}

		results, err := svc.GenerateBatch(context.Background(), req.ShotIDs, userIDFrom(c), req.Concurrency)
		resp := GenerateBatchResponse{Results: results, Total: len(results)}
		for _, r := range results {
			if !r.Success {
				resp.Failed++
			}
		}

		var partial *types.PartialBatchFailure
		switch {
		case err == nil:
			c.JSON(http.StatusOK, resp)
		case errors.As(err, &partial):
			c.JSON(http.StatusMultiStatus, resp)
		default:
			writeError(c, err)
		}
	}
}
