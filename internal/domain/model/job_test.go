package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainStatus_Valid(t *testing.T) {
	assert.True(t, ChainStatusSubmitting.Valid())
	assert.True(t, ChainStatusSubmitted.Valid())
	assert.True(t, ChainStatusFailed.Valid())
	assert.False(t, ChainStatus("queued").Valid())
}

func TestChainStatus_UnmarshalText(t *testing.T) {
	var s ChainStatus
	require.NoError(t, s.UnmarshalText([]byte(" Failed ")))
	assert.Equal(t, ChainStatusFailed, s)

	err := s.UnmarshalText([]byte("done"))
	require.Error(t, err)
	assert.Equal(t, ChainStatusFailed, s, "failed parse must not modify the receiver")
}

func TestQueueState_Terminal(t *testing.T) {
	assert.False(t, QueueStatePending.Terminal())
	assert.False(t, QueueStateRunning.Terminal())
	assert.False(t, QueueStateUnknown.Terminal())
	assert.True(t, QueueStateCompleted.Terminal())
	assert.True(t, QueueStateFailed.Terminal())
	assert.True(t, QueueStateCancelled.Terminal())
}
