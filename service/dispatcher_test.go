package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voting-coordinator/models"
)

func receive(t *testing.T, ch <-chan models.Outcome) models.Outcome {
	t.Helper()
	select {
	case outcome, ok := <-ch:
		require.True(t, ok, "result channel closed without an outcome")
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome received")
	}
	return models.Outcome{}
}

func TestDispatcherRunsTriggers(t *testing.T) {
	require := require.New(t)
	gw := &mockGateway{}
	gw.On("HasVoted", alice).Return(false, nil).Once()
	gw.On("SubmitVote", alice, uint64(2)).Return(nil).Once()
	gw.On("RegisterCandidate", "Dora", "Violet", alice).Return(nil).Once()

	c, _, _ := newTestCoordinator(gw, alice)
	d := NewDispatcher(c, 4, 2)
	d.Start()
	defer d.Stop()

	require.Equal(models.OutcomeVoted, receive(t, d.QueueVote(context.Background(), 2)).Kind)
	require.Equal(models.OutcomeRegistered, receive(t, d.QueueRegistration(context.Background(), "Dora", "Violet")).Kind)
	gw.AssertExpectations(t)
}

func TestDispatcherResultChannelIsClosedAfterOutcome(t *testing.T) {
	gw := &mockGateway{}
	c, _, _ := newTestCoordinator(gw, models.NoIdentity)
	d := NewDispatcher(c, 1, 1)
	d.Start()
	defer d.Stop()

	ch := d.QueueVote(context.Background(), 1)
	require.Equal(t, models.OutcomeIdentityUnavailable, receive(t, ch).Kind)
	_, ok := <-ch
	require.False(t, ok)
}

func TestDispatcherFullQueueIsUnavailable(t *testing.T) {
	require := require.New(t)
	gw := &mockGateway{}
	c, _, recorder := newTestCoordinator(gw, alice)

	// not started, so nothing drains the queue
	d := NewDispatcher(c, 1, 1)
	first := d.QueueVote(context.Background(), 1)
	outcome := receive(t, d.QueueVote(context.Background(), 1))
	require.Equal(models.OutcomeLedgerUnavailable, outcome.Kind)
	require.Equal("vote queue is full", outcome.Reason)

	d.Stop()
	outcome = receive(t, first)
	require.Equal(models.OutcomeLedgerUnavailable, outcome.Kind)
	require.Equal("dispatcher stopped", outcome.Reason)

	require.Len(recorder.OfKind(EventOutcome), 2)
	gw.AssertNotCalled(t, "HasVoted", mock.Anything)
}

func TestDispatcherAfterStop(t *testing.T) {
	gw := &mockGateway{}
	c, _, _ := newTestCoordinator(gw, alice)
	d := NewDispatcher(c, 1, 1)
	d.Start()
	d.Stop()
	d.Stop()

	outcome := receive(t, d.QueueRegistration(context.Background(), "Ana", "Green"))
	require.Equal(t, models.OutcomeLedgerUnavailable, outcome.Kind)
	require.Empty(t, gw.Calls)
}
