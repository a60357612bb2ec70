package service

import (
	"context"
	"sync"
	"time"

	"voting-coordinator/ledger"
	"voting-coordinator/models"
)

// Ledger operations tracked by MetricsCollector.
const (
	OpListCandidates    = "list_candidates"
	OpHasVoted          = "has_voted"
	OpSubmitVote        = "submit_vote"
	OpRegisterCandidate = "register_candidate"
	OpIsOwner           = "is_owner"
)

// MetricsCollector tracks ledger call timings and coordinator outcomes.
type MetricsCollector struct {
	mu         sync.RWMutex
	operations map[string]*operationStats
	outcomes   map[models.OutcomeKind]int
	startTime  time.Time
}

type operationStats struct {
	count     int
	failures  int
	totalTime time.Duration
	lastCall  time.Time
}

// OperationMetrics contains timing information for a ledger operation
type OperationMetrics struct {
	Count          int       `json:"count"`
	Failures       int       `json:"failures"`
	ProcessingTime int64     `json:"processing_time_ms"`
	LastCall       time.Time `json:"last_call,omitempty"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Since      time.Time                   `json:"since"`
	Operations map[string]OperationMetrics `json:"operations"`
	Outcomes   map[string]int              `json:"outcomes"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operations: make(map[string]*operationStats),
		outcomes:   make(map[models.OutcomeKind]int),
		startTime:  time.Now(),
	}
}

// RecordCall records one finished ledger call.
func (mc *MetricsCollector) RecordCall(op string, duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	stats, ok := mc.operations[op]
	if !ok {
		stats = &operationStats{}
		mc.operations[op] = stats
	}
	stats.count++
	stats.totalTime += duration
	stats.lastCall = time.Now()
	if err != nil {
		stats.failures++
	}
}

// Publish counts outcome events, so the collector can sit in a FanOut.
func (mc *MetricsCollector) Publish(ev Event) {
	if ev.Kind != EventOutcome || ev.Outcome == nil {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.outcomes[ev.Outcome.Kind]++
}

func (mc *MetricsCollector) Calls(op string) int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if stats, ok := mc.operations[op]; ok {
		return stats.count
	}
	return 0
}

func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	resp := MetricsResponse{
		Since:      mc.startTime,
		Operations: make(map[string]OperationMetrics, len(mc.operations)),
		Outcomes:   make(map[string]int, len(mc.outcomes)),
	}
	for op, stats := range mc.operations {
		resp.Operations[op] = OperationMetrics{
			Count:          stats.count,
			Failures:       stats.failures,
			ProcessingTime: stats.totalTime.Milliseconds(),
			LastCall:       stats.lastCall,
		}
	}
	for kind, n := range mc.outcomes {
		resp.Outcomes[kind.String()] = n
	}
	return resp
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.operations = make(map[string]*operationStats)
	mc.outcomes = make(map[models.OutcomeKind]int)
	mc.startTime = time.Now()
}

type meteredGateway struct {
	next    ledger.Gateway
	metrics *MetricsCollector
}

// NewMeteredGateway records every call made through gw in metrics.
func NewMeteredGateway(gw ledger.Gateway, metrics *MetricsCollector) ledger.Gateway {
	return &meteredGateway{next: gw, metrics: metrics}
}

func (m *meteredGateway) observe(op string, start time.Time, err error) {
	m.metrics.RecordCall(op, time.Since(start), err)
}

func (m *meteredGateway) ListCandidates(ctx context.Context) (candidates []models.Candidate, err error) {
	start := time.Now()
	defer func() { m.observe(OpListCandidates, start, err) }()
	return m.next.ListCandidates(ctx)
}

func (m *meteredGateway) HasVoted(ctx context.Context, id models.Identity) (voted bool, err error) {
	start := time.Now()
	defer func() { m.observe(OpHasVoted, start, err) }()
	return m.next.HasVoted(ctx, id)
}

func (m *meteredGateway) SubmitVote(ctx context.Context, id models.Identity, candidateID uint64) (err error) {
	start := time.Now()
	defer func() { m.observe(OpSubmitVote, start, err) }()
	return m.next.SubmitVote(ctx, id, candidateID)
}

func (m *meteredGateway) RegisterCandidate(ctx context.Context, name, party string, submitter models.Identity) (err error) {
	start := time.Now()
	defer func() { m.observe(OpRegisterCandidate, start, err) }()
	return m.next.RegisterCandidate(ctx, name, party, submitter)
}

func (m *meteredGateway) IsOwner(ctx context.Context, id models.Identity) (owner bool, err error) {
	start := time.Now()
	defer func() { m.observe(OpIsOwner, start, err) }()
	return m.next.IsOwner(ctx, id)
}
