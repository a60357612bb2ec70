package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutcomeKind int

const (
	OutcomeLoaded OutcomeKind = iota
	OutcomeVoted
	OutcomeAlreadyVoted
	OutcomeRegistered
	OutcomeRejected
	OutcomeIdentityUnavailable
	OutcomeLedgerUnavailable
)

var outcomeKindNames = map[OutcomeKind]string{
	OutcomeLoaded:              "loaded",
	OutcomeVoted:               "voted",
	OutcomeAlreadyVoted:        "already_voted",
	OutcomeRegistered:          "registered",
	OutcomeRejected:            "rejected",
	OutcomeIdentityUnavailable: "identity_unavailable",
	OutcomeLedgerUnavailable:   "ledger_unavailable",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the typed result of one coordinator operation.
type Outcome struct {
	ID        string      `json:"id"`
	Kind      OutcomeKind `json:"kind"`
	Reason    string      `json:"reason,omitempty"`
	Identity  Identity    `json:"identity,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func NewOutcome(kind OutcomeKind, identity Identity, reason string) Outcome {
	return Outcome{
		ID:        uuid.New().String(),
		Kind:      kind,
		Reason:    reason,
		Identity:  identity,
		Timestamp: time.Now().Unix(),
	}
}

// Succeeded reports whether the operation had its intended effect.
func (o Outcome) Succeeded() bool {
	switch o.Kind {
	case OutcomeLoaded, OutcomeVoted, OutcomeRegistered:
		return true
	}
	return false
}

// Alert reports whether the outcome should be surfaced to the user. A
// successful load renders the list instead of raising an alert.
func (o Outcome) Alert() bool {
	return o.Kind != OutcomeLoaded
}

// Message is the user-facing alert text.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeLoaded:
		return "Candidates loaded"
	case OutcomeVoted:
		return "You have voted!"
	case OutcomeAlreadyVoted:
		return "You have already voted"
	case OutcomeRegistered:
		return "You have added a candidate!"
	case OutcomeRejected:
		if o.Reason == "" {
			return "The ledger rejected the request"
		}
		return fmt.Sprintf("The ledger rejected the request: %s", o.Reason)
	case OutcomeIdentityUnavailable:
		return "No account is connected"
	case OutcomeLedgerUnavailable:
		return "The ledger is unavailable, please try again"
	default:
		return o.Kind.String()
	}
}
