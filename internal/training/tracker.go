package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/internal/events"
	"github.com/reelforge/reelforge/internal/ledger"
	"github.com/reelforge/reelforge/internal/logger"
	"github.com/reelforge/reelforge/internal/providers"
	"github.com/reelforge/reelforge/pkg/types"
)

// Store captures the storage operations the tracker needs.
type Store interface {
	CreateActor(ctx context.Context, a *types.Actor) error
	GetActor(ctx context.Context, actorID string) (*types.Actor, error)
	ListActors(ctx context.Context, userID string) ([]*types.Actor, error)
	TransitionActor(ctx context.Context, actorID, toStatus string, jobID, modelHandle *string) (*types.Actor, error)
}

// Tracker drives the actor training state machine
// (pending→training→{ready,failed}) over the external training service.
// Status is pull-based; the storage layer's compare-and-swap rejects any
// transition that is not a legal forward move, which also closes the race
// between polling and any push-style completion path.
type Tracker struct {
	store   Store
	trainer providers.ModelTrainer
	ledger  *ledger.Ledger
	bus     *events.ProductionEventBus

	trainingCost float64
}

// New returns a tracker wired to its collaborators.
func New(store Store, trainer providers.ModelTrainer, l *ledger.Ledger, bus *events.ProductionEventBus, trainingCost float64) *Tracker {
	return &Tracker{
		store:        store,
		trainer:      trainer,
		ledger:       l,
		bus:          bus,
		trainingCost: trainingCost,
	}
}

// Start creates an actor in pending and submits the training job. On submit
// success the actor moves to training with the external job ID and model
// handle stored; on submit failure it moves to failed, terminally, with no
// retry. Exactly one ledger entry is appended either way: training cost is
// charged at submission, not completion, and is never reversed.
func (t *Tracker) Start(ctx context.Context, userID, projectID, name, triggerWord, datasetURL string) (*types.Actor, error) {
	switch {
	case strings.TrimSpace(name) == "":
		return nil, &types.ValidationError{Field: "name", Reason: "must not be empty"}
	case strings.TrimSpace(triggerWord) == "":
		return nil, &types.ValidationError{Field: "triggerWord", Reason: "must not be empty"}
	case strings.TrimSpace(datasetURL) == "":
		return nil, &types.ValidationError{Field: "datasetUrl", Reason: "must not be empty"}
	}

	actor := &types.Actor{
		ActorID:     uuid.NewString(),
		UserID:      userID,
		ProjectID:   projectID,
		Name:        name,
		TriggerWord: triggerWord,
		DatasetURL:  datasetURL,
		Status:      types.ActorStatusPending,
	}
	if err := t.store.CreateActor(ctx, actor); err != nil {
		return nil, err
	}

	handle := destinationHandle(userID, name, actor.ActorID)

	jobID, submitErr := t.trainer.SubmitTraining(ctx, datasetURL, triggerWord, handle)

	// Charged at submission regardless of outcome.
	if _, err := t.ledger.Append(ctx, projectID, userID, types.ActionModelTraining, handle, 1, t.trainingCost); err != nil {
		logger.Logger.Error().Err(err).Str("actor_id", actor.ActorID).Msg("ledger append failed for training submission")
	}

	if submitErr != nil {
		failed, err := t.store.TransitionActor(ctx, actor.ActorID, types.ActorStatusFailed, nil, &handle)
		if err != nil {
			return nil, err
		}
		t.publishTransition(failed)
		return failed, &types.UpstreamServiceError{Service: providers.ServiceTraining, Err: submitErr}
	}

	trained, err := t.store.TransitionActor(ctx, actor.ActorID, types.ActorStatusTraining, &jobID, &handle)
	if err != nil {
		return nil, err
	}
	t.publishTransition(trained)

	logger.Logger.Info().
		Str("actor_id", trained.ActorID).
		Str("job_id", jobID).
		Str("model_handle", handle).
		Msg("training job submitted")
	return trained, nil
}

// PollStatus returns the actor's current status, querying the external
// service when the job is still in flight. Terminal actors short-circuit with
// no provider call and no ledger writes. A provider query error leaves the
// stored status untouched and returns the last known value.
func (t *Tracker) PollStatus(ctx context.Context, actorID string) (string, error) {
	actor, err := t.store.GetActor(ctx, actorID)
	if err != nil {
		return "", err
	}

	if types.IsTerminalActorStatus(actor.Status) {
		return actor.Status, nil
	}
	if actor.TrainingJobID == nil {
		return actor.Status, nil
	}

	providerStatus, err := t.trainer.TrainingStatus(ctx, *actor.TrainingJobID)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("actor_id", actorID).Msg("training status query failed, keeping last known status")
		return actor.Status, nil
	}

	mapped, ok := mapProviderStatus(providerStatus)
	if !ok {
		// In-progress provider states leave the actor at training.
		return actor.Status, nil
	}
	if mapped == actor.Status {
		return actor.Status, nil
	}

	updated, err := t.store.TransitionActor(ctx, actorID, mapped, nil, nil)
	if err != nil {
		// A racing completion may have landed first; report what is stored.
		if types.IsStateConflict(err) {
			current, getErr := t.store.GetActor(ctx, actorID)
			if getErr != nil {
				return "", getErr
			}
			return current.Status, nil
		}
		return "", err
	}
	t.publishTransition(updated)
	return updated.Status, nil
}

// Get returns one actor.
func (t *Tracker) Get(ctx context.Context, actorID string) (*types.Actor, error) {
	return t.store.GetActor(ctx, actorID)
}

// List returns a user's actors, newest first.
func (t *Tracker) List(ctx context.Context, userID string) ([]*types.Actor, error) {
	return t.store.ListActors(ctx, userID)
}

func (t *Tracker) publishTransition(a *types.Actor) {
	t.bus.Publish(events.ProductionEvent{
		Type:      events.EventActorTransition,
		ProjectID: a.ProjectID,
		EntityID:  a.ActorID,
		Status:    a.Status,
	})
}

// mapProviderStatus translates the provider's raw status into the actor state
// machine. Unmapped values are in-progress.
func mapProviderStatus(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "succeeded":
		return types.ActorStatusReady, true
	case "failed", "canceled":
		return types.ActorStatusFailed, true
	default:
		return "", false
	}
}

// destinationHandle derives the model handle a finished training publishes
// under. Kept stable per actor so resubmissions are traceable.
func destinationHandle(userID, name, actorID string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	return fmt.Sprintf("%s/%s-%s", userID, slug, actorID[:8])
}
