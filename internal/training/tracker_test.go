package training

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/reelforge/reelforge/internal/events"
	"github.com/reelforge/reelforge/internal/ledger"
	"github.com/reelforge/reelforge/internal/storage"
	"github.com/reelforge/reelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrainer struct {
	jobID     string
	submitErr error
	status    string
	statusErr error

	submitted int
	polled    int
}

func (f *fakeTrainer) SubmitTraining(ctx context.Context, datasetURL, triggerWord, destinationHandle string) (string, error) {
	f.submitted++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeTrainer) TrainingStatus(ctx context.Context, jobID string) (string, error) {
	f.polled++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	return f.status, nil
}

func newTestTracker(t *testing.T, trainer *fakeTrainer) (*Tracker, *storage.LocalStorage, *ledger.Ledger) {
	t.Helper()
	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	usage := ledger.New(store)
	tracker := New(store, trainer, usage, events.NewProductionEventBus(), 2.50)
	return tracker, store, usage
}

func TestStart_SubmitsAndMovesToTraining(t *testing.T) {
	trainer := &fakeTrainer{jobID: "job-1"}
	tracker, _, usage := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Lead Hero", "hero_v1", "http://data/set.zip")
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusTraining, actor.Status)
	require.NotNil(t, actor.TrainingJobID)
	assert.Equal(t, "job-1", *actor.TrainingJobID)
	require.NotNil(t, actor.ModelHandle)
	assert.Contains(t, *actor.ModelHandle, "user-1/lead-hero-")
	assert.Equal(t, 1, trainer.submitted)

	// Training cost charged once, at submission.
	entries, err := usage.Entries(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.ActionModelTraining, entries[0].ActionType)
	assert.InDelta(t, 2.50, entries[0].Cost, 1e-9)
}

func TestStart_SubmitFailureIsTerminalAndStillCharged(t *testing.T) {
	trainer := &fakeTrainer{submitErr: errors.New("provider down")}
	tracker, store, usage := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "http://data/set.zip")
	require.Error(t, err)
	assert.True(t, types.IsUpstream(err))
	require.NotNil(t, actor)
	assert.Equal(t, types.ActorStatusFailed, actor.Status)

	// Cost is not reversed on failure.
	entries, err := usage.Entries(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Failed is final: no retry path exists.
	_, err = store.TransitionActor(ctx, actor.ActorID, types.ActorStatusTraining, nil, nil)
	assert.True(t, types.IsStateConflict(err))
}

func TestStart_ValidatesInput(t *testing.T) {
	tracker, _, _ := newTestTracker(t, &fakeTrainer{jobID: "job-1"})
	ctx := context.Background()

	_, err := tracker.Start(ctx, "user-1", "proj-1", "", "hero_v1", "http://data/set.zip")
	assert.True(t, types.IsValidation(err))

	_, err = tracker.Start(ctx, "user-1", "proj-1", "Hero", " ", "http://data/set.zip")
	assert.True(t, types.IsValidation(err))

	_, err = tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "")
	assert.True(t, types.IsValidation(err))
}

func TestPollStatus_SucceededMovesToReady(t *testing.T) {
	trainer := &fakeTrainer{jobID: "job-1", status: "succeeded"}
	tracker, _, _ := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "http://data/set.zip")
	require.NoError(t, err)

	status, err := tracker.PollStatus(ctx, actor.ActorID)
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusReady, status)

	got, err := tracker.Get(ctx, actor.ActorID)
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusReady, got.Status)
	require.NotNil(t, got.ModelHandle)
}

func TestPollStatus_InProgressLeavesTraining(t *testing.T) {
	trainer := &fakeTrainer{jobID: "job-1", status: "processing"}
	tracker, _, _ := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "http://data/set.zip")
	require.NoError(t, err)

	status, err := tracker.PollStatus(ctx, actor.ActorID)
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusTraining, status)
}

func TestPollStatus_TerminalShortCircuits(t *testing.T) {
	trainer := &fakeTrainer{jobID: "job-1", status: "succeeded"}
	tracker, _, usage := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "http://data/set.zip")
	require.NoError(t, err)

	_, err = tracker.PollStatus(ctx, actor.ActorID)
	require.NoError(t, err)
	polledOnce := trainer.polled

	// Second poll must not hit the provider again or write anything.
	status, err := tracker.PollStatus(ctx, actor.ActorID)
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusReady, status)
	assert.Equal(t, polledOnce, trainer.polled)

	entries, err := usage.Entries(ctx, "proj-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPollStatus_ProviderErrorKeepsLastKnownStatus(t *testing.T) {
	trainer := &fakeTrainer{jobID: "job-1", statusErr: errors.New("timeout")}
	tracker, _, _ := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "http://data/set.zip")
	require.NoError(t, err)

	status, err := tracker.PollStatus(ctx, actor.ActorID)
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusTraining, status)
}

func TestPollStatus_CanceledMapsToFailed(t *testing.T) {
	trainer := &fakeTrainer{jobID: "job-1", status: "canceled"}
	tracker, _, _ := newTestTracker(t, trainer)
	ctx := context.Background()

	actor, err := tracker.Start(ctx, "user-1", "proj-1", "Hero", "hero_v1", "http://data/set.zip")
	require.NoError(t, err)

	status, err := tracker.PollStatus(ctx, actor.ActorID)
	require.NoError(t, err)
	assert.Equal(t, types.ActorStatusFailed, status)
}
