package service

import (
	"context"
	"sync"

	"github.com/untillpro/goutils/logger"

	"voting-coordinator/models"
)

// Dispatcher turns user triggers into coordinator operations run by a pool of
// workers. Triggers never block the caller: they return a channel that gets
// exactly one Outcome.
type Dispatcher struct {
	coordinator    *Coordinator
	voteCh         chan *VoteRequest
	registrationCh chan *RegistrationRequest
	shutdownCh     chan struct{}
	processingWg   sync.WaitGroup
	workers        int

	mu      sync.RWMutex
	stopped bool
}

// VoteRequest represents a queued vote trigger
type VoteRequest struct {
	Ctx         context.Context
	CandidateID uint64
	ResultCh    chan<- models.Outcome
}

// RegistrationRequest represents a queued add-candidate trigger
type RegistrationRequest struct {
	Ctx      context.Context
	Name     string
	Party    string
	ResultCh chan<- models.Outcome
}

func NewDispatcher(coordinator *Coordinator, queueSize, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		coordinator:    coordinator,
		voteCh:         make(chan *VoteRequest, queueSize),
		registrationCh: make(chan *RegistrationRequest, queueSize),
		shutdownCh:     make(chan struct{}),
		workers:        workers,
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.processingWg.Add(1)
		go d.worker()
	}
}

// Stop waits for the operations being processed. Queued triggers that were
// not picked up yet are answered as unavailable.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.shutdownCh)
	d.processingWg.Wait()

	for {
		select {
		case req := <-d.voteCh:
			d.reject(req.ResultCh, "dispatcher stopped")
		case req := <-d.registrationCh:
			d.reject(req.ResultCh, "dispatcher stopped")
		default:
			return
		}
	}
}

func (d *Dispatcher) QueueVote(ctx context.Context, candidateID uint64) <-chan models.Outcome {
	resultCh := make(chan models.Outcome, 1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.reject(resultCh, "dispatcher stopped")
		return resultCh
	}

	select {
	case d.voteCh <- &VoteRequest{Ctx: ctx, CandidateID: candidateID, ResultCh: resultCh}:
	default:
		logger.Warning("vote queue is full, trigger for candidate", candidateID, "dropped")
		d.reject(resultCh, "vote queue is full")
	}
	return resultCh
}

func (d *Dispatcher) QueueRegistration(ctx context.Context, name, party string) <-chan models.Outcome {
	resultCh := make(chan models.Outcome, 1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.reject(resultCh, "dispatcher stopped")
		return resultCh
	}

	select {
	case d.registrationCh <- &RegistrationRequest{Ctx: ctx, Name: name, Party: party, ResultCh: resultCh}:
	default:
		logger.Warning("registration queue is full, trigger for", name, "dropped")
		d.reject(resultCh, "registration queue is full")
	}
	return resultCh
}

func (d *Dispatcher) worker() {
	defer d.processingWg.Done()

	for {
		select {
		case <-d.shutdownCh:
			return
		case req := <-d.voteCh:
			req.ResultCh <- d.coordinator.CastVote(req.Ctx, req.CandidateID)
			close(req.ResultCh)
		case req := <-d.registrationCh:
			req.ResultCh <- d.coordinator.RegisterCandidate(req.Ctx, req.Name, req.Party)
			close(req.ResultCh)
		}
	}
}

func (d *Dispatcher) reject(resultCh chan<- models.Outcome, reason string) {
	id := d.coordinator.tracker.Current()
	resultCh <- d.coordinator.publishOutcome(models.NewOutcome(models.OutcomeLedgerUnavailable, id, reason))
	close(resultCh)
}
