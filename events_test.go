package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_Emit(t *testing.T) {
	failing := &fakeSink{err: errors.New("connection refused")}
	healthy := &fakeSink{}
	events := NewEvents(failing, healthy)

	events.Emit(context.Background(), Event{Stage: StageReceived, UserID: testUser, FileID: "file-1"})

	require.Len(t, healthy.events, 1)
	assert.Equal(t, StageReceived, healthy.events[0].Stage)
	assert.False(t, healthy.events[0].At.IsZero())
	assert.Len(t, failing.events, 1, "a failing sink does not stop the fan-out")
}

func TestEvents_Close(t *testing.T) {
	first := &fakeSink{err: errors.New("already closed")}
	second := &fakeSink{}

	NewEvents(first, second).Close()

	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestEvents_Nil(t *testing.T) {
	var events *Events

	assert.NotPanics(t, func() {
		events.Emit(context.Background(), Event{Stage: StageFailed})
		events.Close()
	})
}
