package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidActorTransition(t *testing.T) {
	valid := [][2]string{
		{ActorStatusPending, ActorStatusTraining},
		{ActorStatusPending, ActorStatusFailed},
		{ActorStatusTraining, ActorStatusReady},
		{ActorStatusTraining, ActorStatusFailed},
	}
	for _, tc := range valid {
		assert.True(t, ValidActorTransition(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}

	invalid := [][2]string{
		{ActorStatusPending, ActorStatusReady},
		{ActorStatusPending, ActorStatusPending},
		{ActorStatusTraining, ActorStatusTraining},
		{ActorStatusTraining, ActorStatusPending},
		{ActorStatusReady, ActorStatusFailed},
		{ActorStatusReady, ActorStatusTraining},
		{ActorStatusFailed, ActorStatusTraining},
		{ActorStatusFailed, ActorStatusReady},
	}
	for _, tc := range invalid {
		assert.False(t, ValidActorTransition(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}
}

func TestIsTerminalActorStatus(t *testing.T) {
	assert.True(t, IsTerminalActorStatus(ActorStatusReady))
	assert.True(t, IsTerminalActorStatus(ActorStatusFailed))
	assert.False(t, IsTerminalActorStatus(ActorStatusPending))
	assert.False(t, IsTerminalActorStatus(ActorStatusTraining))
}

func TestErrorPredicatesMatchWrappedErrors(t *testing.T) {
	base := &NotFoundError{Kind: "actor", ID: "a-1"}
	wrapped := fmt.Errorf("loading actor: %w", base)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsStateConflict(wrapped))

	upstream := &UpstreamServiceError{Service: "image-generation", Err: fmt.Errorf("timeout")}
	assert.True(t, IsUpstream(upstream))
	assert.EqualError(t, upstream, "upstream service image-generation failed: timeout")

	conflict := fmt.Errorf("saving: %w", &StateConflictError{Reason: "locked"})
	assert.True(t, IsStateConflict(conflict))

	validation := &ValidationError{Field: "score", Reason: "101 outside [0,100]"}
	assert.True(t, IsValidation(validation))
	assert.False(t, IsValidation(base))
}
