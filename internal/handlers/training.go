package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelforge/reelforge/pkg/types"
)

// TrainingService captures the actor training tracker operations.
type TrainingService interface {
	Start(ctx context.Context, userID, projectID, name, triggerWord, datasetURL string) (*types.Actor, error)
	PollStatus(ctx context.Context, actorID string) (string, error)
	Get(ctx context.Context, actorID string) (*types.Actor, error)
	List(ctx context.Context, userID string) ([]*types.Actor, error)
}

// StartTrainingRequest is the request body for starting actor training.
type StartTrainingRequest struct {
	ProjectID   string `json:"project_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	TriggerWord string `json:"trigger_word" binding:"required"`
	DatasetURL  string `json:"dataset_url" binding:"required"`
}

// StartTrainingHandler handles POST /api/v1/actors
// Training cost is charged at submission and is not reversed if the job
// later fails.
func StartTrainingHandler(svc TrainingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartTrainingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		actor, err := svc.Start(context.Background(), userIDFrom(c), req.ProjectID, req.Name, req.TriggerWord, req.DatasetURL)
		if err != nil {
			// A failed submission still persists the actor in failed state;
			// return it alongside the error marker so callers can see both.
			if actor != nil && types.IsUpstream(err) {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "actor": actor})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, actor)
	}
}

// PollStatusHandler handles POST /api/v1/actors/:actor_id/poll
// Re-checks the external training job and returns the (possibly advanced)
// actor status.
func PollStatusHandler(svc TrainingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.PollStatus(context.Background(), c.Param("actor_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"actor_id": c.Param("actor_id"), "status": status})
	}
}

// GetActorHandler handles GET /api/v1/actors/:actor_id
func GetActorHandler(svc TrainingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := svc.Get(context.Background(), c.Param("actor_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, actor)
	}
}

// ListActorsHandler handles GET /api/v1/actors
func ListActorsHandler(svc TrainingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actors, err := svc.List(context.Background(), userIDFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if actors == nil {
			actors = []*types.Actor{}
		}
		c.JSON(http.StatusOK, gin.H{"actors": actors, "total": len(actors)})
	}
}
