package service

import (
	"sync"

	"voting-coordinator/models"
)

type EventKind int

const (
	EventCandidatesLoaded EventKind = iota
	EventRoleInvalidated
	EventRoleDerived
	EventOutcome
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventCandidatesLoaded:
		return "candidates_loaded"
	case EventRoleInvalidated:
		return "role_invalidated"
	case EventRoleDerived:
		return "role_derived"
	case EventOutcome:
		return "outcome"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is what the coordinator reports to presentation. Candidates are
// already redacted for Role.
type Event struct {
	Kind       EventKind              `json:"kind"`
	Identity   models.Identity        `json:"identity,omitempty"`
	Role       models.Role            `json:"role"`
	Candidates []models.CandidateView `json:"candidates,omitempty"`
	Outcome    *models.Outcome        `json:"outcome,omitempty"`
	Message    string                 `json:"message,omitempty"`
}

type EventSink interface {
	Publish(Event)
}

type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) Publish(Event) {}

var NopSink EventSink = nopSink{}

type fanOut []EventSink

func (f fanOut) Publish(ev Event) {
	for _, sink := range f {
		sink.Publish(ev)
	}
}

// FanOut publishes every event to all sinks in order.
func FanOut(sinks ...EventSink) EventSink {
	return fanOut(sinks)
}

// EventRecorder keeps every published event in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns recorded events of the given kind.
func (r *EventRecorder) OfKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
