// Package ledger defines the contract every ledger backend must satisfy to be
// driven by the session coordinator.
package ledger

import (
	"context"

	"voting-coordinator/models"
)

// Gateway is the authoritative ledger. Every call may fail with an error
// wrapping ErrUnavailable or with a *RejectedError.
type Gateway interface {
	// ListCandidates returns candidates in registration order.
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
	HasVoted(ctx context.Context, identity models.Identity) (bool, error)
	SubmitVote(ctx context.Context, identity models.Identity, candidateID uint64) error
	RegisterCandidate(ctx context.Context, name, party string, submitter models.Identity) error
	IsOwner(ctx context.Context, identity models.Identity) (bool, error)
}
