package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/events"
	"github.com/reelforge/reelforge/internal/ledger"
	"github.com/reelforge/reelforge/internal/providers"
	"github.com/reelforge/reelforge/internal/storage"
	"github.com/reelforge/reelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSegmenter struct {
	scenes []types.PlannedScene
	err    error
}

func (f *fakeSegmenter) SegmentScript(ctx context.Context, scriptText, brandHints string) ([]types.PlannedScene, error) {
	return f.scenes, f.err
}

type fakePlanner struct {
	shots []types.PlannedShot
	err   error
}

func (f *fakePlanner) PlanShots(ctx context.Context, req providers.ShotPlanRequest) ([]types.PlannedShot, error) {
	return f.shots, f.err
}

type fakeImageGen struct {
	mu       sync.Mutex
	calls    int
	inflight int
	peak     int
	prompts  []string
}

func (f *fakeImageGen) GenerateImage(ctx context.Context, req providers.ImageRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	n := f.calls
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if strings.Contains(req.Prompt, "FAIL") {
		return "", errors.New("generation refused")
	}
	return fmt.Sprintf("http://img/%d.png", n), nil
}

type testFixture struct {
	pipe     *Pipeline
	store    *storage.LocalStorage
	usage    *ledger.Ledger
	imageGen *fakeImageGen
}

func newTestPipeline(t *testing.T, segmenter *fakeSegmenter, planner *fakePlanner) *testFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	imageGen := &fakeImageGen{}
	clients := &providers.Clients{
		Segmenter: segmenter,
		Planner:   planner,
		ImageGen:  imageGen,
	}
	usage := ledger.New(store)
	cfg := config.PipelineConfig{BatchConcurrency: 3, DefaultModel: "sdxl-base", DefaultQualityTier: "standard"}
	billing := config.BillingConfig{ShotPlanCost: 0.02, ImageGenCost: 0.04, TrainingCost: 2.50}

	return &testFixture{
		pipe:     New(store, clients, nil, usage, events.NewProductionEventBus(), cfg, billing),
		store:    store,
		usage:    usage,
		imageGen: imageGen,
	}
}

func createTestProject(t *testing.T, store *storage.LocalStorage) *types.Project {
	t.Helper()
	project := &types.Project{ProjectID: uuid.NewString(), OwnerID: "user-1", Name: "Test"}
	require.NoError(t, store.CreateProject(context.Background(), project))
	return project
}

func plannedScenes(n int) []types.PlannedScene {
	var out []types.PlannedScene
	for i := 1; i <= n; i++ {
		out = append(out, types.PlannedScene{Order: i, Title: fmt.Sprintf("Scene %d", i), Description: "desc"})
	}
	return out
}

func plannedShots(n int) []types.PlannedShot {
	var out []types.PlannedShot
	for i := 1; i <= n; i++ {
		out = append(out, types.PlannedShot{Order: i, VisualDescription: fmt.Sprintf("shot %d", i), CameraAngle: "wide"})
	}
	return out
}

func TestDecomposeScript_CreatesOrderedDraftScenes(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{scenes: plannedScenes(3)}, &fakePlanner{})
	ctx := context.Background()
	project := createTestProject(t, fx.store)

	scenes, err := fx.pipe.DecomposeScript(ctx, project.ProjectID, "INT. WAREHOUSE - NIGHT ...")
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	for i, s := range scenes {
		assert.Equal(t, i+1, s.Order)
		assert.Equal(t, types.SceneStatusDraft, s.Status)
	}

	// Script decomposition itself is not billed.
	entries, err := fx.usage.Entries(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecomposeScript_RepeatAppendsAfterExistingScenes(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{scenes: plannedScenes(2)}, &fakePlanner{})
	ctx := context.Background()
	project := createTestProject(t, fx.store)

	_, err := fx.pipe.DecomposeScript(ctx, project.ProjectID, "act one")
	require.NoError(t, err)
	second, err := fx.pipe.DecomposeScript(ctx, project.ProjectID, "act two")
	require.NoError(t, err)
	assert.Equal(t, 3, second[0].Order)
	assert.Equal(t, 4, second[1].Order)

	all, err := fx.pipe.Scenes(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDecomposeScript_EmptyScriptRejected(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{scenes: plannedScenes(1)}, &fakePlanner{})
	project := createTestProject(t, fx.store)

	_, err := fx.pipe.DecomposeScript(context.Background(), project.ProjectID, "   ")
	assert.True(t, types.IsValidation(err))
}

func TestDecomposeScript_MissingProject(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{scenes: plannedScenes(1)}, &fakePlanner{})

	_, err := fx.pipe.DecomposeScript(context.Background(), "missing", "a script")
	assert.True(t, types.IsNotFound(err))
}

func TestDecomposeScript_SegmenterFailureTagged(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{err: errors.New("llm timeout")}, &fakePlanner{})
	ctx := context.Background()
	project := createTestProject(t, fx.store)

	_, err := fx.pipe.DecomposeScript(ctx, project.ProjectID, "a script")
	require.Error(t, err)
	assert.True(t, types.IsUpstream(err))

	// Nothing persisted on failure.
	scenes, err := fx.pipe.Scenes(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, scenes)
}

func TestDecomposeScene_CreatesShotsAndBillsOnce(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{scenes: plannedScenes(1)}, &fakePlanner{shots: plannedShots(4)})
	ctx := context.Background()
	project := createTestProject(t, fx.store)

	scenes, err := fx.pipe.DecomposeScript(ctx, project.ProjectID, "a script")
	require.NoError(t, err)

	shots, err := fx.pipe.DecomposeScene(ctx, scenes[0].SceneID, "user-1")
	require.NoError(t, err)
	require.Len(t, shots, 4)
	for i, sh := range shots {
		assert.Equal(t, i+1, sh.Order)
		assert.Equal(t, types.ShotStatusPlanned, sh.Status)
	}

	scene, err := fx.store.GetScene(ctx, scenes[0].SceneID)
	require.NoError(t, err)
	assert.Equal(t, types.SceneStatusPlanned, scene.Status)

	entries, err := fx.usage.Entries(ctx, project.ProjectID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionShotGeneration, entries[0].ActionType)
	assert.Equal(t, 4, entries[0].Quantity)
}

func TestDecomposeScene_PlannerFailureLeavesSceneUntouched(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{scenes: plannedScenes(1)}, &fakePlanner{err: errors.New("llm down")})
	ctx := context.Background()
	project := createTestProject(t, fx.store)

	scenes, err := fx.pipe.DecomposeScript(ctx, project.ProjectID, "a script")
	require.NoError(t, err)

	_, err = fx.pipe.DecomposeScene(ctx, scenes[0].SceneID, "user-1")
	assert.True(t, types.IsUpstream(err))

	scene, err := fx.store.GetScene(ctx, scenes[0].SceneID)
	require.NoError(t, err)
	assert.Equal(t, types.SceneStatusDraft, scene.Status)

	entries, err := fx.usage.Entries(ctx, project.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func setupShots(t *testing.T, fx *testFixture, n int) (string, []string) {
	t.Helper()
	ctx := context.Background()
	project := createTestProject(t, fx.store)
	scene := &types.Scene{
		SceneID: uuid.NewString(), ProjectID: project.ProjectID,
		Order: 1, Title: "s", Description: "d", Status: types.SceneStatusDraft,
	}
	require.NoError(t, fx.store.CreateScenesBatch(ctx, []*types.Scene{scene}))

	var shots []*types.Shot
	var ids []string
	for i := 1; i <= n; i++ {
		sh := &types.Shot{
			ShotID: uuid.NewString(), SceneID: scene.SceneID, Order: i,
			VisualDescription: fmt.Sprintf("shot %d", i), Status: types.ShotStatusPlanned,
		}
		shots = append(shots, sh)
		ids = append(ids, sh.ShotID)
	}
	require.NoError(t, fx.store.CreateShotsBatch(ctx, scene.SceneID, shots))
	return project.ProjectID, ids
}

func TestGenerateShotImage_PersistsGenerationAndBills(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{}, &fakePlanner{})
	ctx := context.Background()
	projectID, shotIDs := setupShots(t, fx, 1)

	imageURL, err := fx.pipe.GenerateShotImage(ctx, shotIDs[0], "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, imageURL)

	gen, err := fx.pipe.CurrentGeneration(ctx, shotIDs[0])
	require.NoError(t, err)
	assert.Equal(t, imageURL, gen.ImageURL)
	assert.Equal(t, "sdxl-base", gen.Model)
	assert.Equal(t, projectID, gen.ProjectID)

	shot, err := fx.store.GetShot(ctx, shotIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.ShotStatusShot, shot.Status)

	entries, err := fx.usage.Entries(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionImageGeneration, entries[0].ActionType)
	assert.InDelta(t, 0.04, entries[0].Cost, 1e-9)
}

func TestGenerateShotImage_UsesBoundActorModel(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{}, &fakePlanner{})
	ctx := context.Background()
	_, shotIDs := setupShots(t, fx, 1)

	actor := &types.Actor{
		ActorID: uuid.NewString(), UserID: "user-1", ProjectID: "proj-1",
		Name: "Hero", TriggerWord: "hero_v1", DatasetURL: "http://data/set.zip",
	}
	require.NoError(t, fx.store.CreateActor(ctx, actor))
	jobID := "job-1"
	handle := "user-1/hero"
	_, err := fx.store.TransitionActor(ctx, actor.ActorID, types.ActorStatusTraining, &jobID, &handle)
	require.NoError(t, err)
	_, err = fx.store.TransitionActor(ctx, actor.ActorID, types.ActorStatusReady, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fx.store.BindShotActor(ctx, shotIDs[0], &actor.ActorID))

	_, err = fx.pipe.GenerateShotImage(ctx, shotIDs[0], "user-1")
	require.NoError(t, err)

	require.Len(t, fx.imageGen.prompts, 1)
	assert.True(t, strings.HasPrefix(fx.imageGen.prompts[0], "hero_v1, "))

	gen, err := fx.pipe.CurrentGeneration(ctx, shotIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "user-1/hero", gen.Model)
}

func TestGenerateShotImage_PendingActorIgnored(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{}, &fakePlanner{})
	ctx := context.Background()
	_, shotIDs := setupShots(t, fx, 1)

	actor := &types.Actor{
		ActorID: uuid.NewString(), UserID: "user-1", ProjectID: "proj-1",
		Name: "Hero", TriggerWord: "hero_v1", DatasetURL: "http://data/set.zip",
	}
	require.NoError(t, fx.store.CreateActor(ctx, actor))
	require.NoError(t, fx.store.BindShotActor(ctx, shotIDs[0], &actor.ActorID))

	_, err := fx.pipe.GenerateShotImage(ctx, shotIDs[0], "user-1")
	require.NoError(t, err)

	gen, err := fx.pipe.CurrentGeneration(ctx, shotIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "sdxl-base", gen.Model)
}

func TestGenerateBatch_AllSucceed(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{}, &fakePlanner{})
	ctx := context.Background()
	projectID, shotIDs := setupShots(t, fx, 7)

	results, err := fx.pipe.GenerateBatch(ctx, shotIDs, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, results, 7)
	for i, r := range results {
		assert.Equal(t, shotIDs[i], r.ShotID)
		assert.True(t, r.Success)
		assert.NotEmpty(t, r.ImageURL)
	}

	assert.Equal(t, 7, fx.imageGen.calls)
	assert.LessOrEqual(t, fx.imageGen.peak, 3)

	entries, err := fx.usage.Entries(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, entries, 7)

	// Every shot generated, so the scene advanced to shot.
	scenes, err := fx.pipe.Scenes(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, types.SceneStatusShot, scenes[0].Status)
}

func TestGenerateBatch_PartialFailureIsolated(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{}, &fakePlanner{})
	ctx := context.Background()
	_, shotIDs := setupShots(t, fx, 3)

	// A shot whose prompt trips the generator, in its own project.
	failing := &types.Shot{
		ShotID: uuid.NewString(), SceneID: uuid.NewString(), Order: 1,
		VisualDescription: "FAIL on purpose", Status: types.ShotStatusPlanned,
	}
	scene := &types.Scene{
		SceneID: failing.SceneID, ProjectID: uuid.NewString(),
		Order: 1, Title: "s", Description: "d", Status: types.SceneStatusDraft,
	}
	project := &types.Project{ProjectID: scene.ProjectID, OwnerID: "user-1", Name: "p2"}
	require.NoError(t, fx.store.CreateProject(ctx, project))
	require.NoError(t, fx.store.CreateScenesBatch(ctx, []*types.Scene{scene}))
	require.NoError(t, fx.store.CreateShotsBatch(ctx, scene.SceneID, []*types.Shot{failing}))

	batch := []string{shotIDs[0], failing.ShotID, shotIDs[2]}
	results, err := fx.pipe.GenerateBatch(ctx, batch, "user-1", 2)
	require.Error(t, err)

	var partial *types.PartialBatchFailure
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 3, partial.Total)
	assert.Equal(t, 1, partial.Failed)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Success)
}

func TestGenerateBatch_MissingShotReported(t *testing.T) {
	fx := newTestPipeline(t, &fakeSegmenter{}, &fakePlanner{})
	ctx := context.Background()
	_, shotIDs := setupShots(t, fx, 2)

	batch := []string{shotIDs[0], "missing-shot", shotIDs[1]}
	results, err := fx.pipe.GenerateBatch(ctx, batch, "user-1", 0)
	require.Error(t, err)

	var partial *types.PartialBatchFailure
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 1, partial.Failed)
	assert.False(t, results[1].Success)
}

func TestGenerateBatch_ZeroConcurrencyUsesConfigured(t *testing.T) {
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	imageGen := &fakeImageGen{}
	clients := &providers.Clients{
		Segmenter: &fakeSegmenter{},
		Planner:   &fakePlanner{},
		ImageGen:  imageGen,
	}
	usage := ledger.New(store)
	cfg := config.PipelineConfig{BatchConcurrency: 1, DefaultModel: "sdxl-base", DefaultQualityTier: "standard"}
	billing := config.BillingConfig{ShotPlanCost: 0.02, ImageGenCost: 0.04, TrainingCost: 2.50}
	fx := &testFixture{
		pipe:     New(store, clients, nil, usage, events.NewProductionEventBus(), cfg, billing),
		store:    store,
		usage:    usage,
		imageGen: imageGen,
	}
	_, shotIDs := setupShots(t, fx, 4)

	results, err := fx.pipe.GenerateBatch(context.Background(), shotIDs, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, 4, imageGen.calls)
	assert.Equal(t, 1, imageGen.peak)
}

func TestBuildShotPrompt_IncludesCinematography(t *testing.T) {
	shot := &types.Shot{
		VisualDescription: "hero walks in",
		CameraAngle:       "low angle",
		Lighting:          "noir",
	}
	prompt := buildShotPrompt(shot)
	assert.Contains(t, prompt, "hero walks in")
	assert.Contains(t, prompt, "camera: low angle")
	assert.Contains(t, prompt, "lighting: noir")
	assert.NotContains(t, prompt, "movement:")
}
