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

// ProjectStorage captures the storage operations required for project handlers.
type ProjectStorage interface {
	CreateProject(ctx context.Context, p *types.Project) error
	GetProject(ctx context.Context, projectID string) (*types.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]*types.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// UsageReader captures the ledger reads exposed per project.
type UsageReader interface {
	ProjectTotal(ctx context.Context, projectID string) (float64, error)
	Entries(ctx context.Context, projectID string) ([]*types.UsageLedgerEntry, error)
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateProjectHandler handles POST /api/v1/projects
func CreateProjectHandler(store ProjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}

		now := time.Now()
		project := &types.Project{
			ProjectID: uuid.NewString(),
			OwnerID:   userIDFrom(c),
			Name:      strings.TrimSpace(req.Name),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.CreateProject(context.Background(), project); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, project)
	}
}

// GetProjectHandler handles GET /api/v1/projects/:project_id
func GetProjectHandler(store ProjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := store.GetProject(context.Background(), c.Param("project_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// ListProjectsHandler handles GET /api/v1/projects
func ListProjectsHandler(store ProjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := store.ListProjects(context.Background(), userIDFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if projects == nil {
			projects = []*types.Project{}
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects, "total": len(projects)})
	}
}

// DeleteProjectHandler handles DELETE /api/v1/projects/:project_id
// Cascades to scenes, shots, generations, frames, history and order entries.
// Usage ledger rows are retained.
func DeleteProjectHandler(store ProjectStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.DeleteProject(context.Background(), c.Param("project_id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ProjectUsageHandler handles GET /api/v1/projects/:project_id/usage
func ProjectUsageHandler(usage UsageReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")
		ctx := context.Background()

		total, err := usage.ProjectTotal(ctx, projectID)
		if err != nil {
			writeError(c, err)
			return
		}
		entries, err := usage.Entries(ctx, projectID)
		if err != nil {
			writeError(c, err)
			return
		}
		if entries == nil {
			entries = []*types.UsageLedgerEntry{}
		}
		c.JSON(http.StatusOK, gin.H{
			"project_id": projectID,
			"total_cost": total,
			"entries":    entries,
		})
	}
}
