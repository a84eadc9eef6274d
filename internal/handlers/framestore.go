package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reelforge/reelforge/internal/framestore"
	"github.com/reelforge/reelforge/pkg/types"
)

// FrameHistoryService captures the versioned frame history and display order
// operations.
type FrameHistoryService interface {
	CreateVersion(ctx context.Context, projectID string, shotNumber int, imageURL, prompt string, notes *string) (*types.FrameHistoryVersion, error)
	ListHistory(ctx context.Context, projectID string, shotNumber int) ([]*types.FrameHistoryVersion, error)
	SetOrder(ctx context.Context, projectID string, entries []framestore.OrderInput) error
	GetOrder(ctx context.Context, projectID string) ([]*types.FrameOrderEntry, error)
}

// CreateVersionRequest is the request body for recording a frame version.
type CreateVersionRequest struct {
	ImageURL string  `json:"image_url" binding:"required"`
	Prompt   string  `json:"prompt"`
	Notes    *string `json:"notes"`
}

// CreateVersionHandler handles POST /api/v1/projects/:project_id/shots/:shot_number/versions
// The new version becomes the single active one for its shot number.
func CreateVersionHandler(svc FrameHistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shotNumber, err := strconv.Atoi(c.Param("shot_number"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shot_number must be an integer"})
			return
		}
		var req CreateVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		version, err := svc.CreateVersion(context.Background(), c.Param("project_id"), shotNumber, req.ImageURL, req.Prompt, req.Notes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, version)
	}
}

// ListHistoryHandler handles GET /api/v1/projects/:project_id/shots/:shot_number/versions
func ListHistoryHandler(svc FrameHistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		shotNumber, err := strconv.Atoi(c.Param("shot_number"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shot_number must be an integer"})
			return
		}

		versions, err := svc.ListHistory(context.Background(), c.Param("project_id"), shotNumber)
		if err != nil {
			writeError(c, err)
			return
		}
		if versions == nil {
			versions = []*types.FrameHistoryVersion{}
		}
		c.JSON(http.StatusOK, gin.H{"versions": versions, "total": len(versions)})
	}
}

// SetOrderRequest is the request body for replacing a project's display order.
type SetOrderRequest struct {
	Entries []framestore.OrderInput `json:"entries" binding:"required"`
}

// SetOrderHandler handles PUT /api/v1/projects/:project_id/frame-order
// Replaces the whole ordering atomically.
func SetOrderHandler(svc FrameHistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		if err := svc.SetOrder(context.Background(), c.Param("project_id"), req.Entries); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "total": len(req.Entries)})
	}
}

// GetOrderHandler handles GET /api/v1/projects/:project_id/frame-order
func GetOrderHandler(svc FrameHistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.GetOrder(context.Background(), c.Param("project_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if entries == nil {
			entries = []*types.FrameOrderEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
	}
}
