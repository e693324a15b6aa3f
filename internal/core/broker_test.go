package core

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majeland/gatekeep/internal/model"
)

func newTestBroker() (*ApprovalBroker, *fakeClock) {
	clock := newFakeClock()
	b := NewApprovalBroker(zerolog.Nop())
	b.now = clock.Now
	return b, clock
}

func TestBroker_Create_StartsPending(t *testing.T) {
	b, _ := newTestBroker()

	id := b.Create("ep-1", "user-1", "alice", "rm")
	require.NotEmpty(t, id)

	status, err := b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)

	req, err := b.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "ep-1", req.EndpointID)
	assert.Equal(t, "user-1", req.OwnerUserID)
	assert.Equal(t, "alice", req.UserName)
	assert.Equal(t, "rm", req.Command)
}

func TestBroker_Poll_UnknownID(t *testing.T) {
	b, _ := newTestBroker()

	_, err := b.Poll("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

// Deny at t=5 applies; approve at t=6 loses; poll at t=10 sees denied.
func TestBroker_Resolve_FirstDecisionWins(t *testing.T) {
	b, clock := newTestBroker()
	id := b.Create("ep-1", "user-1", "alice", "rm")

	clock.Advance(5 * time.Second)
	outcome, err := b.Resolve(id, model.StatusDenied)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	clock.Advance(1 * time.Second)
	outcome, err = b.Resolve(id, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyResolved, outcome)

	clock.Advance(4 * time.Second)
	status, err := b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDenied, status)
}

// An untouched request is observably expired once it passes 30 seconds.
func TestBroker_Poll_ExpiresAfterDeadline(t *testing.T) {
	b, clock := newTestBroker()
	id := b.Create("ep-1", "user-1", "alice", "rm")

	clock.Advance(30 * time.Second)
	status, err := b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status, "exactly 30s is still inside the window")

	clock.Advance(1 * time.Second)
	status, err = b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)

	// Terminal status is stable across repeated polls.
	status, err = b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)
}

func TestBroker_Resolve_ExpiryBeatsDecision(t *testing.T) {
	b, clock := newTestBroker()
	id := b.Create("ep-1", "user-1", "alice", "rm")

	clock.Advance(31 * time.Second)
	outcome, err := b.Resolve(id, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	status, err := b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)
}

func TestBroker_Resolve_UnknownID(t *testing.T) {
	b, _ := newTestBroker()

	_, err := b.Resolve("no-such-id", model.StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBroker_Resolve_InvalidDecision(t *testing.T) {
	b, _ := newTestBroker()
	id := b.Create("ep-1", "user-1", "alice", "rm")

	_, err := b.Resolve(id, "maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = b.Resolve(id, model.StatusPending)
	assert.ErrorIs(t, err, ErrInvalidDecision)

	status, err := b.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status, "rejected decisions must not mutate state")
}

// At most one of many racing approve/deny calls may return applied.
func TestBroker_Resolve_SingleWinnerUnderConcurrency(t *testing.T) {
	b := NewApprovalBroker(zerolog.Nop())
	id := b.Create("ep-1", "user-1", "alice", "rm")

	const callers = 64
	outcomes := make(chan Outcome, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		decision := model.StatusApproved
		if i%2 == 1 {
			decision = model.StatusDenied
		}
		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			outcome, err := b.Resolve(id, d)
			if assert.NoError(t, err) {
				outcomes <- outcome
			}
		}(decision)
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for outcome := range outcomes {
		if outcome == OutcomeApplied {
			applied++
		} else {
			assert.Equal(t, OutcomeAlreadyResolved, outcome)
		}
	}
	assert.Equal(t, 1, applied)

	status, err := b.Poll(id)
	require.NoError(t, err)
	assert.Contains(t, []string{model.StatusApproved, model.StatusDenied}, status)
}

// Requests on different ids resolve independently and in parallel.
func TestBroker_Resolve_IndependentRequests(t *testing.T) {
	b := NewApprovalBroker(zerolog.Nop())

	const n = 32
	ids := make([]string, n)
	for i := range ids {
		ids[i] = b.Create("ep-1", "user-1", "alice", "rm")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			outcome, err := b.Resolve(id, model.StatusApproved)
			if assert.NoError(t, err) {
				assert.Equal(t, OutcomeApplied, outcome)
			}
		}(id)
	}
	wg.Wait()
}

func TestBroker_ListPending_FiltersOwnerAndExpired(t *testing.T) {
	b, clock := newTestBroker()

	stale := b.Create("ep-1", "user-1", "alice", "rm")
	clock.Advance(31 * time.Second)

	fresh := b.Create("ep-1", "user-1", "alice", "shutdown")
	other := b.Create("ep-9", "user-2", "bob", "rm")
	resolved := b.Create("ep-1", "user-1", "alice", "mkfs")
	_, err := b.Resolve(resolved, model.StatusApproved)
	require.NoError(t, err)

	pending := b.ListPending("user-1")
	assert.Len(t, pending, 1)
	assert.Contains(t, pending, fresh)
	assert.NotContains(t, pending, stale)
	assert.NotContains(t, pending, other)
	assert.NotContains(t, pending, resolved)

	// Listing expired the stale request as a side effect.
	status, err := b.Poll(stale)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)
}

func TestBroker_DropEndpoint(t *testing.T) {
	b, _ := newTestBroker()

	a := b.Create("ep-1", "user-1", "alice", "rm")
	bReq := b.Create("ep-1", "user-1", "alice", "shutdown")
	keep := b.Create("ep-2", "user-1", "alice", "rm")

	dropped := b.DropEndpoint("ep-1")
	assert.Equal(t, 2, dropped)

	_, err := b.Poll(a)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Poll(bReq)
	assert.ErrorIs(t, err, ErrNotFound)

	status, err := b.Poll(keep)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)

	assert.Equal(t, 0, b.DropEndpoint("ep-1"))
}

func TestBroker_Sweep_ExpiresAndRetires(t *testing.T) {
	b, clock := newTestBroker()

	abandoned := b.Create("ep-1", "user-1", "alice", "rm")
	resolved := b.Create("ep-1", "user-1", "alice", "shutdown")
	_, err := b.Resolve(resolved, model.StatusDenied)
	require.NoError(t, err)

	// Past the TTL but inside the retention window: the abandoned request is
	// expired, nothing is removed yet.
	clock.Advance(31 * time.Second)
	expired, removed := b.Sweep()
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, removed)

	status, err := b.Poll(abandoned)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, status)

	// Terminal requests stay readable for the grace period, then go away.
	clock.Advance(5*time.Minute + time.Second)
	expired, removed = b.Sweep()
	assert.Equal(t, 0, expired)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, b.Len())

	_, err = b.Poll(resolved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBroker_Get_UnknownID(t *testing.T) {
	b, _ := newTestBroker()

	_, err := b.Get("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}
