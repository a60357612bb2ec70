package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/untillpro/goutils/logger"
	"golang.org/x/sync/singleflight"

	"voting-coordinator/identity"
	"voting-coordinator/ledger"
	"voting-coordinator/models"
)

// Coordinator sequences ledger reads and writes for one voting session and
// owns its SessionState.
type Coordinator struct {
	gateway ledger.Gateway
	tracker *identity.Tracker
	sink    EventSink
	// base context of background role derivations
	ctx context.Context

	mu      sync.RWMutex
	state   *SessionState
	roleSeq uint64
	// bumped by Reset; loads started before a reset are discarded
	resetGen uint64

	loads       singleflight.Group
	votes       singleflight.Group
	derivations sync.WaitGroup
}

// NewCoordinator subscribes the coordinator to tracker. Role derivations run
// on ctx.
func NewCoordinator(ctx context.Context, gateway ledger.Gateway, tracker *identity.Tracker, sink EventSink) *Coordinator {
	if sink == nil {
		sink = NopSink
	}

	c := &Coordinator{
		gateway: gateway,
		tracker: tracker,
		sink:    sink,
		ctx:     ctx,
		state:   newSessionState(models.NoIdentity),
	}
	tracker.Subscribe(c.OnIdentityChanged)

	c.mu.Lock()
	if !c.state.rederiving {
		c.state.Identity = tracker.Current()
	}
	c.mu.Unlock()
	return c
}

func (c *Coordinator) Snapshot() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.copy()
}

func (c *Coordinator) Phase() Phase {
	return c.Snapshot().Phase
}

// Bootstrap loads the candidate list and then derives the role in the
// background. EventRoleDerived is published once the role is known.
func (c *Coordinator) Bootstrap(ctx context.Context) ([]models.Candidate, models.Outcome) {
	c.mu.Lock()
	if c.state.Phase == PhaseUninitialized {
		c.state.Phase = PhaseBootstrapping
	}
	c.mu.Unlock()

	candidates, outcome, applied := c.load(ctx)
	if !outcome.Succeeded() {
		c.mu.Lock()
		if c.state.Phase == PhaseBootstrapping {
			c.state.Phase = PhaseUninitialized
		}
		c.mu.Unlock()
		return nil, outcome
	}

	if applied {
		c.startRoleDerivation(c.tracker.Current())
	}
	return candidates, outcome
}

// Refresh re-fetches the candidate list without touching the role. An
// uninitialized session is bootstrapped instead.
func (c *Coordinator) Refresh(ctx context.Context) ([]models.Candidate, models.Outcome) {
	if c.Phase() == PhaseUninitialized {
		return c.Bootstrap(ctx)
	}
	candidates, outcome, _ := c.load(ctx)
	return candidates, outcome
}

// load fetches the candidate list. A list fetched across a Reset is returned
// to the caller but not stored, and applied reports false.
func (c *Coordinator) load(ctx context.Context) ([]models.Candidate, models.Outcome, bool) {
	id := c.tracker.Current()
	c.mu.RLock()
	gen := c.resetGen
	c.mu.RUnlock()

	v, err, _ := c.loads.Do("candidates", func() (interface{}, error) {
		return c.gateway.ListCandidates(ctx)
	})
	if err != nil {
		return nil, c.publishOutcome(c.failure(id, "list candidates", err)), false
	}
	listed := v.([]models.Candidate)

	candidates := make([]models.Candidate, len(listed))
	copy(candidates, listed)

	out := make([]models.Candidate, len(candidates))
	copy(out, candidates)

	c.mu.Lock()
	if gen != c.resetGen {
		c.mu.Unlock()
		logger.Verbose("discarding candidate list fetched before session reset")
		return out, models.NewOutcome(models.OutcomeLoaded, id, ""), false
	}
	c.state.Candidates = candidates
	c.state.CandidatesLoaded = true
	c.state.Phase = PhaseReady
	role := c.state.Role
	c.mu.Unlock()

	logger.Verbose("loaded", len(candidates), "candidates")
	c.sink.Publish(Event{
		Kind:       EventCandidatesLoaded,
		Identity:   id,
		Role:       role,
		Candidates: VisibleCandidates(candidates, role),
	})

	return out, models.NewOutcome(models.OutcomeLoaded, id, ""), true
}

// CastVote checks the vote status of the current identity and submits the
// vote only if none is recorded. The check and the submit are separate ledger
// calls; concurrent calls for the same identity share a single check and
// submit, but another coordinator can still slip in between the two calls.
func (c *Coordinator) CastVote(ctx context.Context, candidateID uint64) models.Outcome {
	id := c.tracker.Current()
	if !id.IsSet() {
		return c.publishOutcome(models.NewOutcome(models.OutcomeIdentityUnavailable, id, ""))
	}

	for {
		v, _, _ := c.votes.Do(string(id), func() (interface{}, error) {
			return voteResult{candidateID: candidateID, outcome: c.checkThenVote(ctx, id, candidateID)}, nil
		})
		res := v.(voteResult)
		if res.candidateID == candidateID {
			return c.publishOutcome(res.outcome)
		}

		// joined a vote for another candidate
		switch res.outcome.Kind {
		case models.OutcomeVoted, models.OutcomeAlreadyVoted:
			return c.publishOutcome(models.NewOutcome(models.OutcomeAlreadyVoted, id, ""))
		}
	}
}

type voteResult struct {
	candidateID uint64
	outcome     models.Outcome
}

func (c *Coordinator) checkThenVote(ctx context.Context, id models.Identity, candidateID uint64) models.Outcome {
	voted, err := c.gateway.HasVoted(ctx, id)
	if err != nil {
		return c.failure(id, "check vote status", err)
	}
	if voted {
		return models.NewOutcome(models.OutcomeAlreadyVoted, id, "")
	}

	if err := c.gateway.SubmitVote(ctx, id, candidateID); err != nil {
		return c.failure(id, fmt.Sprintf("vote for candidate %d", candidateID), err)
	}

	logger.Info(fmt.Sprintf("%s voted for candidate %d", id, candidateID))
	return models.NewOutcome(models.OutcomeVoted, id, "")
}

// RegisterCandidate submits a new candidate as the current identity. The
// ledger decides who may register. The cached list is left as is; call
// Refresh or Bootstrap to see the new candidate.
func (c *Coordinator) RegisterCandidate(ctx context.Context, name, party string) models.Outcome {
	id := c.tracker.Current()
	if !id.IsSet() {
		return c.publishOutcome(models.NewOutcome(models.OutcomeIdentityUnavailable, id, ""))
	}

	if err := c.gateway.RegisterCandidate(ctx, name, party, id); err != nil {
		return c.publishOutcome(c.failure(id, "register candidate", err))
	}

	logger.Info(fmt.Sprintf("%s registered candidate %q (%s)", id, name, party))
	return c.publishOutcome(models.NewOutcome(models.OutcomeRegistered, id, ""))
}

// DeriveRole derives the role of the current identity and returns it. The
// session role is only updated if no newer derivation started meanwhile.
func (c *Coordinator) DeriveRole(ctx context.Context) models.Role {
	id := c.tracker.Current()
	seq := c.beginDerivation(id)
	role := c.queryRole(ctx, id)
	c.applyRole(seq, id, role)
	return role
}

// OnIdentityChanged drops the role of the previous identity and starts one
// derivation for the new one. Candidates are identity independent and kept.
// Notifications may arrive out of order, so the derivation always targets the
// tracker's current identity rather than newIdentity.
func (c *Coordinator) OnIdentityChanged(newIdentity models.Identity) {
	id := c.tracker.Current()
	logger.Info("identity changed to", id)
	c.startRoleDerivation(id)
}

// Reset returns the session to Uninitialized. Derivations in flight are
// discarded when they complete.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.state.reset()
	c.roleSeq++
	c.resetGen++
	id := c.state.Identity
	c.mu.Unlock()

	c.sink.Publish(Event{Kind: EventReset, Identity: id, Role: models.RoleUnknown})
}

// DismissAlert resets the session and loads it again.
func (c *Coordinator) DismissAlert(ctx context.Context) ([]models.Candidate, models.Outcome) {
	c.Reset()
	return c.Bootstrap(ctx)
}

// Wait blocks until background role derivations have finished.
func (c *Coordinator) Wait() {
	c.derivations.Wait()
}

func (c *Coordinator) startRoleDerivation(id models.Identity) {
	seq := c.beginDerivation(id)

	c.derivations.Add(1)
	go func() {
		defer c.derivations.Done()
		c.applyRole(seq, id, c.queryRole(c.ctx, id))
	}()
}

// beginDerivation invalidates the current role and returns the sequence
// number the new derivation must still hold when it completes.
func (c *Coordinator) beginDerivation(id models.Identity) uint64 {
	c.mu.Lock()
	c.roleSeq++
	seq := c.roleSeq
	c.state.invalidateRole(id)
	c.mu.Unlock()

	c.sink.Publish(Event{Kind: EventRoleInvalidated, Identity: id, Role: models.RoleUnknown})
	return seq
}

func (c *Coordinator) queryRole(ctx context.Context, id models.Identity) models.Role {
	if !id.IsSet() {
		return models.RoleUnknown
	}

	isOwner, err := c.gateway.IsOwner(ctx, id)
	if err != nil {
		logger.Warning(fmt.Sprintf("role derivation for %s failed, hiding admin data: %v", id, err))
		return models.RoleUnknown
	}
	if isOwner {
		return models.RoleAdmin
	}
	return models.RoleVoter
}

func (c *Coordinator) applyRole(seq uint64, id models.Identity, role models.Role) bool {
	c.mu.Lock()
	if seq != c.roleSeq || c.state.Identity != id || c.tracker.Current() != id {
		c.mu.Unlock()
		logger.Verbose("discarding stale role", role, "for", id)
		return false
	}
	c.state.Role = role
	c.state.rederiving = false
	candidates := c.state.Candidates
	c.mu.Unlock()

	c.sink.Publish(Event{
		Kind:       EventRoleDerived,
		Identity:   id,
		Role:       role,
		Candidates: VisibleCandidates(candidates, role),
	})
	return true
}

// failure maps a gateway error to an outcome. Errors that are neither
// rejections nor marked unavailable are reported as unavailability too.
func (c *Coordinator) failure(id models.Identity, op string, err error) models.Outcome {
	if reason, ok := ledger.RejectionReason(err); ok {
		logger.Warning(fmt.Sprintf("ledger rejected %s for %s: %s", op, id, reason))
		return models.NewOutcome(models.OutcomeRejected, id, reason)
	}

	logger.Error(fmt.Sprintf("failed to %s for %s: %v", op, id, err))
	return models.NewOutcome(models.OutcomeLedgerUnavailable, id, err.Error())
}

func (c *Coordinator) publishOutcome(outcome models.Outcome) models.Outcome {
	o := outcome
	c.mu.RLock()
	role := c.state.Role
	c.mu.RUnlock()

	c.sink.Publish(Event{
		Kind:     EventOutcome,
		Identity: o.Identity,
		Role:     role,
		Outcome:  &o,
		Message:  o.Message(),
	})
	return outcome
}
