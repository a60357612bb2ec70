package models

// Candidate is a ledger-side candidate record. VoteCount is only meant to be
// shown to admins.
type Candidate struct {
	ID        uint64 `json:"uid"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	VoteCount uint64 `json:"votes"`
}

// CandidateView is what presentation surfaces get; Votes is nil unless the
// viewer is an admin.
type CandidateView struct {
	ID    uint64  `json:"uid"`
	Name  string  `json:"name"`
	Party string  `json:"party"`
	Votes *uint64 `json:"votes,omitempty"`
}
