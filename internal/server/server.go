package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/consistency"
	"github.com/reelforge/reelforge/internal/events"
	"github.com/reelforge/reelforge/internal/framestore"
	"github.com/reelforge/reelforge/internal/handlers"
	"github.com/reelforge/reelforge/internal/ledger"
	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/internal/pipeline"
	"github.com/reelforge/reelforge/internal/providers"
	"github.com/reelforge/reelforge/internal/storage"
	"github.com/reelforge/reelforge/internal/training"
)

// Server assembles storage, provider clients and the domain services behind
// one gin router.
type Server struct {
	cfg    *config.Config
	store  *storage.LocalStorage
	bus    *events.ProductionEventBus
	router *gin.Engine
	http   *http.Server
}

// NewServer builds a fully wired server from config.
func NewServer(cfg *config.Config) (*Server, error) {
	store, err := storage.NewLocalStorage(cfg.Storage.Local.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	bus := events.NewProductionEventBus()
	clients := providers.NewClients(cfg.Providers)

	usage := ledger.New(store)
	pipe := pipeline.New(store, clients, nil, usage, bus, cfg.Pipeline, cfg.Billing)
	engine := consistency.New(store, clients.Analyzer, cfg.Pipeline.ConsistencyThreshold)
	tracker := training.New(store, clients.Trainer, usage, bus, cfg.Billing.TrainingCost)
	frames := framestore.New(store)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		store:  store,
		bus:    bus,
		router: router,
	}
	s.registerRoutes(store, usage, pipe, engine, tracker, frames)
	return s, nil
}

func (s *Server) registerRoutes(store *storage.LocalStorage, usage *ledger.Ledger, pipe *pipeline.Pipeline, engine *consistency.Engine, tracker *training.Tracker, frames *framestore.FrameStore) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")

	v1.POST("/projects", handlers.CreateProjectHandler(store))
	v1.GET("/projects", handlers.ListProjectsHandler(store))
	v1.GET("/projects/:project_id", handlers.GetProjectHandler(store))
	v1.DELETE("/projects/:project_id", handlers.DeleteProjectHandler(store))
	v1.GET("/projects/:project_id/usage", handlers.ProjectUsageHandler(usage))

	v1.POST("/projects/:project_id/decompose", handlers.DecomposeScriptHandler(pipe))
	v1.GET("/projects/:project_id/scenes", handlers.ListScenesHandler(pipe))
	v1.POST("/scenes/:scene_id/shots", handlers.DecomposeSceneHandler(pipe))
	v1.GET("/scenes/:scene_id/shots", handlers.ListShotsHandler(pipe))
	v1.POST("/shots/:shot_id/generate", handlers.GenerateShotHandler(pipe))
	v1.GET("/shots/:shot_id/generation", handlers.CurrentGenerationHandler(pipe))
	v1.PUT("/shots/:shot_id/actor", handlers.BindShotActorHandler(store))
	v1.POST("/generate-batch", handlers.GenerateBatchHandler(pipe))

	v1.POST("/projects/:project_id/frames", handlers.CreateFrameHandler(store))
	v1.GET("/projects/:project_id/frames", handlers.ListFramesHandler(store))
	v1.PUT("/frames/:frame_id/character", handlers.BindCharacterHandler(engine))
	v1.DELETE("/frames/:frame_id/character", handlers.ClearBindingHandler(engine))
	v1.PUT("/frames/:frame_id/consistency-score", handlers.UpdateScoreHandler(engine))
	v1.POST("/frames/:frame_id/lock", handlers.LockFrameHandler(engine))
	v1.POST("/frames/:frame_id/unlock", handlers.UnlockFrameHandler(engine))
	v1.GET("/projects/:project_id/consistency-report", handlers.ConsistencyReportHandler(engine))

	v1.POST("/actors", handlers.StartTrainingHandler(tracker))
	v1.GET("/actors", handlers.ListActorsHandler(tracker))
	v1.GET("/actors/:actor_id", handlers.GetActorHandler(tracker))
	v1.POST("/actors/:actor_id/poll", handlers.PollStatusHandler(tracker))

	v1.POST("/projects/:project_id/shots/:shot_number/versions", handlers.CreateVersionHandler(frames))
	v1.GET("/projects/:project_id/shots/:shot_number/versions", handlers.ListHistoryHandler(frames))
	v1.PUT("/projects/:project_id/frame-order", handlers.SetOrderHandler(frames))
	v1.GET("/projects/:project_id/frame-order", handlers.GetOrderHandler(frames))
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info().Int("port", s.cfg.Server.Port).Msg("reelforge server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.store.Close()
}
