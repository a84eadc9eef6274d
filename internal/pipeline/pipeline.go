package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/events"
	"github.com/reelforge/reelforge/internal/ledger"
	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/internal/providers"
	"github.com/reelforge/reelforge/pkg/types"
)

// DefaultBatchConcurrency bounds generateBatch when the caller passes no
// explicit concurrency.
const DefaultBatchConcurrency = 3

// Store captures the storage operations the pipeline needs.
type Store interface {
	GetProject(ctx context.Context, projectID string) (*types.Project, error)
	MaxSceneOrder(ctx context.Context, projectID string) (int, error)
	CreateScenesBatch(ctx context.Context, scenes []*types.Scene) error
	GetScene(ctx context.Context, sceneID string) (*types.Scene, error)
	ListScenes(ctx context.Context, projectID string) ([]*types.Scene, error)
	CreateShotsBatch(ctx context.Context, sceneID string, shots []*types.Shot) error
	GetShot(ctx context.Context, shotID string) (*types.Shot, error)
	ListShots(ctx context.Context, sceneID string) ([]*types.Shot, error)
	UpdateShotStatus(ctx context.Context, shotID, status string) error
	UpdateSceneStatus(ctx context.Context, sceneID, status string) error
	GetActor(ctx context.Context, actorID string) (*types.Actor, error)
	CreateGeneration(ctx context.Context, g *types.Generation) error
	CurrentGeneration(ctx context.Context, shotID string) (*types.Generation, error)
}

// BrandContext resolves a project's optional brand guideline notes. The
// brand text store is an external collaborator; a nil resolver means no
// brand context.
type BrandContext interface {
	BrandNotes(ctx context.Context, projectID string) (visualStyle, notes string, err error)
}

// Pipeline decomposes scripts into scenes and shots and drives image
// generation. Every billable step appends to the usage ledger before the
// operation reports success; an upstream failure after a ledger append is
// never reversed.
type Pipeline struct {
	store     Store
	segmenter providers.NarrativeSegmenter
	planner   providers.ShotPlanner
	imageGen  providers.ImageGenerator
	brand     BrandContext
	ledger    *ledger.Ledger
	bus       *events.ProductionEventBus
	cfg       config.PipelineConfig
	billing   config.BillingConfig
}

// New wires a pipeline. brand may be nil.
func New(store Store, clients *providers.Clients, brand BrandContext, l *ledger.Ledger, bus *events.ProductionEventBus, cfg config.PipelineConfig, billing config.BillingConfig) *Pipeline {
	return &Pipeline{
		store:     store,
		segmenter: clients.Segmenter,
		planner:   clients.Planner,
		imageGen:  clients.ImageGen,
		brand:     brand,
		ledger:    l,
		bus:       bus,
		cfg:       cfg,
		billing:   billing,
	}
}

// DecomposeScript turns a script into an ordered scene list and persists it
// in one atomic batch, every scene in draft. Repeated runs append after the
// project's current highest scene order rather than replacing prior scenes.
func (p *Pipeline) DecomposeScript(ctx context.Context, projectID, scriptText string) ([]*types.Scene, error) {
	if strings.TrimSpace(scriptText) == "" {
		return nil, &types.ValidationError{Field: "scriptText", Reason: "must not be empty"}
	}
	if _, err := p.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	brandHints := ""
	if p.brand != nil {
		if _, notes, err := p.brand.BrandNotes(ctx, projectID); err == nil {
			brandHints = notes
		}
	}

	planned, err := p.segmenter.SegmentScript(ctx, scriptText, brandHints)
	if err != nil {
		return nil, &types.UpstreamServiceError{Service: providers.ServiceSegmentation, Err: err}
	}
	if len(planned) == 0 {
		return nil, &types.UpstreamServiceError{Service: providers.ServiceSegmentation, Err: fmt.Errorf("empty scene list")}
	}

	sort.SliceStable(planned, func(i, j int) bool { return planned[i].Order < planned[j].Order })

	base, err := p.store.MaxSceneOrder(ctx, projectID)
	if err != nil {
		return nil, err
	}

	scenes := make([]*types.Scene, 0, len(planned))
	for i, ps := range planned {
		scenes = append(scenes, &types.Scene{
			SceneID:     uuid.NewString(),
			ProjectID:   projectID,
			Order:       base + i + 1,
			Title:       ps.Title,
			Description: ps.Description,
			Status:      types.SceneStatusDraft,
		})
	}
	if err := p.store.CreateScenesBatch(ctx, scenes); err != nil {
		return nil, err
	}

	p.bus.Publish(events.ProductionEvent{
		Type:      events.EventScenesDecomposed,
		ProjectID: projectID,
		Data:      map[string]interface{}{"scene_count": len(scenes)},
	})
	logger.Logger.Info().Str("project_id", projectID).Int("scenes", len(scenes)).Msg("script decomposed")
	return scenes, nil
}

// DecomposeScene turns one scene into an ordered shot list, persists it in
// one atomic batch with the scene flipped to planned, and appends one
// SHOT_GENERATION ledger entry covering the whole plan.
func (p *Pipeline) DecomposeScene(ctx context.Context, sceneID, userID string) ([]*types.Shot, error) {
	scene, err := p.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	req := providers.ShotPlanRequest{
		SceneContext: fmt.Sprintf("%s: %s", scene.Title, scene.Description),
	}
	if p.brand != nil {
		if style, notes, err := p.brand.BrandNotes(ctx, scene.ProjectID); err == nil {
			req.VisualStyle = style
			req.BrandNotes = notes
		}
	}

	planned, err := p.planner.PlanShots(ctx, req)
	if err != nil {
		return nil, &types.UpstreamServiceError{Service: providers.ServiceShotPlanner, Err: err}
	}
	if len(planned) == 0 {
		return nil, &types.UpstreamServiceError{Service: providers.ServiceShotPlanner, Err: fmt.Errorf("empty shot list")}
	}

	sort.SliceStable(planned, func(i, j int) bool { return planned[i].Order < planned[j].Order })

	shots := make([]*types.Shot, 0, len(planned))
	for i, ps := range planned {
		shots = append(shots, &types.Shot{
			ShotID:            uuid.NewString(),
			SceneID:           sceneID,
			Order:             i + 1,
			VisualDescription: ps.VisualDescription,
			CameraAngle:       ps.CameraAngle,
			Movement:          ps.Movement,
			Lighting:          ps.Lighting,
			Lens:              ps.Lens,
			AudioDescription:  ps.AudioDescription,
			Status:            types.ShotStatusPlanned,
		})
	}
	if err := p.store.CreateShotsBatch(ctx, sceneID, shots); err != nil {
		return nil, err
	}

	cost := p.billing.ShotPlanCost * float64(len(shots))
	if _, err := p.ledger.Append(ctx, scene.ProjectID, userID, types.ActionShotGeneration, p.cfg.DefaultModel, len(shots), cost); err != nil {
		logger.Logger.Error().Err(err).Str("scene_id", sceneID).Msg("ledger append failed for shot plan")
	}

	p.bus.Publish(events.ProductionEvent{
		Type:      events.EventShotsPlanned,
		ProjectID: scene.ProjectID,
		EntityID:  sceneID,
		Data:      map[string]interface{}{"shot_count": len(shots)},
	})
	return shots, nil
}

// GenerateShotImage generates one image for a shot, writes the immutable
// generation row, appends one IMAGE_GENERATION ledger entry, and returns the
// image URL. Frame and consistency state are untouched; promoting a
// generation to a frame is the consistency engine's territory.
func (p *Pipeline) GenerateShotImage(ctx context.Context, shotID, userID string) (string, error) {
	shot, err := p.store.GetShot(ctx, shotID)
	if err != nil {
		return "", err
	}
	scene, err := p.store.GetScene(ctx, shot.SceneID)
	if err != nil {
		return "", err
	}

	req := providers.ImageRequest{
		Prompt:      buildShotPrompt(shot),
		Model:       p.cfg.DefaultModel,
		QualityTier: p.cfg.DefaultQualityTier,
	}
	model := p.cfg.DefaultModel
	if shot.ActorID != nil {
		actor, err := p.store.GetActor(ctx, *shot.ActorID)
		if err != nil {
			return "", err
		}
		if actor.Status == types.ActorStatusReady && actor.ModelHandle != nil {
			req.ModelHandle = *actor.ModelHandle
			req.Prompt = actor.TriggerWord + ", " + req.Prompt
			model = *actor.ModelHandle
		}
	}

	imageURL, err := p.imageGen.GenerateImage(ctx, req)
	if err != nil {
		return "", &types.UpstreamServiceError{Service: providers.ServiceImageGen, Err: err}
	}

	// Spend is recorded before any later persistence step can fail.
	if _, err := p.ledger.Append(ctx, scene.ProjectID, userID, types.ActionImageGeneration, model, 1, p.billing.ImageGenCost); err != nil {
		logger.Logger.Error().Err(err).Str("shot_id", shotID).Msg("ledger append failed for generation")
	}

	gen := &types.Generation{
		GenerationID: uuid.NewString(),
		ShotID:       shotID,
		ProjectID:    scene.ProjectID,
		ImageURL:     imageURL,
		Prompt:       req.Prompt,
		Model:        model,
		QualityTier:  req.QualityTier,
		Cost:         p.billing.ImageGenCost,
	}
	if err := p.store.CreateGeneration(ctx, gen); err != nil {
		return "", err
	}
	if err := p.store.UpdateShotStatus(ctx, shotID, types.ShotStatusShot); err != nil {
		logger.Logger.Warn().Err(err).Str("shot_id", shotID).Msg("shot status update failed after generation")
	}
	p.advanceSceneStatus(ctx, scene.SceneID)

	p.bus.Publish(events.ProductionEvent{
		Type:      events.EventGenerationCreated,
		ProjectID: scene.ProjectID,
		EntityID:  shotID,
		Data:      map[string]interface{}{"image_url": imageURL},
	})
	return imageURL, nil
}

// GenerateBatch generates images for shotIDs in chunks of size concurrency,
// awaiting each chunk fully before starting the next. Each item's outcome is
// captured independently; one failure never cancels siblings or the batch.
// The returned error is a PartialBatchFailure when at least one item failed,
// nil when all succeeded.
func (p *Pipeline) GenerateBatch(ctx context.Context, shotIDs []string, userID string, concurrency int) ([]types.ShotGenerationResult, error) {
	if concurrency <= 0 {
		concurrency = p.cfg.BatchConcurrency
	}
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]types.ShotGenerationResult, len(shotIDs))
	for start := 0; start < len(shotIDs); start += concurrency {
		end := start + concurrency
		if end > len(shotIDs) {
			end = len(shotIDs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				shotID := shotIDs[idx]
				imageURL, err := p.GenerateShotImage(ctx, shotID, userID)
				if err != nil {
					results[idx] = types.ShotGenerationResult{ShotID: shotID, Error: err.Error()}
					return
				}
				results[idx] = types.ShotGenerationResult{ShotID: shotID, Success: true, ImageURL: imageURL}
			}(i)
		}
		wg.Wait()
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}

	p.bus.Publish(events.ProductionEvent{
		Type: events.EventBatchCompleted,
		Data: map[string]interface{}{"total": len(results), "failed": failed},
	})

	if failed > 0 {
		return results, &types.PartialBatchFailure{Total: len(results), Failed: failed}
	}
	return results, nil
}

// Scenes lists a project's scenes in order.
func (p *Pipeline) Scenes(ctx context.Context, projectID string) ([]*types.Scene, error) {
	return p.store.ListScenes(ctx, projectID)
}

// Shots lists a scene's shots in order.
func (p *Pipeline) Shots(ctx context.Context, sceneID string) ([]*types.Shot, error) {
	return p.store.ListShots(ctx, sceneID)
}

// CurrentGeneration returns the newest generation for a shot.
func (p *Pipeline) CurrentGeneration(ctx context.Context, shotID string) (*types.Generation, error) {
	return p.store.CurrentGeneration(ctx, shotID)
}

// advanceSceneStatus flips a scene to shot once every one of its shots has
// been generated. Advisory only, so failures are logged and swallowed.
func (p *Pipeline) advanceSceneStatus(ctx context.Context, sceneID string) {
	shots, err := p.store.ListShots(ctx, sceneID)
	if err != nil || len(shots) == 0 {
		return
	}
	for _, sh := range shots {
		if sh.Status == types.ShotStatusPlanned {
			return
		}
	}
	if err := p.store.UpdateSceneStatus(ctx, sceneID, types.SceneStatusShot); err != nil {
		logger.Logger.Warn().Err(err).Str("scene_id", sceneID).Msg("scene status update failed")
	}
}

// buildShotPrompt flattens a shot's cinematography fields into one prompt.
func buildShotPrompt(sh *types.Shot) string {
	parts := []string{sh.VisualDescription}
	for _, detail := range []struct{ label, value string }{
		{"camera", sh.CameraAngle},
		{"movement", sh.Movement},
		{"lighting", sh.Lighting},
		{"lens", sh.Lens},
	} {
		if detail.value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", detail.label, detail.value))
		}
	}
	return strings.Join(parts, ", ")
}
