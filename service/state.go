package service

import (
	"fmt"
	"time"

	"voting-coordinator/models"
)

type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseBootstrapping
	PhaseReady
	// PhaseRoleRederiving is Ready with the role still being derived for a
	// new identity.
	PhaseRoleRederiving
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseReady:
		return "ready"
	case PhaseRoleRederiving:
		return "role_rederiving"
	default:
		return "uninitialized"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for _, phase := range []Phase{PhaseUninitialized, PhaseBootstrapping, PhaseReady, PhaseRoleRederiving} {
		if phase.String() == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// SessionState is owned by a Coordinator. Callers only ever see copies
// returned by Coordinator.Snapshot.
type SessionState struct {
	Identity         models.Identity    `json:"identity"`
	Candidates       []models.Candidate `json:"-"`
	CandidatesLoaded bool               `json:"candidates_loaded"`
	Role             models.Role        `json:"role"`
	Phase            Phase              `json:"phase"`
	StartedAt        time.Time          `json:"started_at"`

	rederiving bool
}

func newSessionState(identity models.Identity) *SessionState {
	return &SessionState{
		Identity:  identity,
		Role:      models.RoleUnknown,
		Phase:     PhaseUninitialized,
		StartedAt: time.Now(),
	}
}

func (s *SessionState) copy() SessionState {
	out := *s
	if s.Candidates != nil {
		out.Candidates = make([]models.Candidate, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	if s.Phase == PhaseReady && s.rederiving {
		out.Phase = PhaseRoleRederiving
	}
	return out
}

// invalidateRole drops the role derived for the previous identity.
func (s *SessionState) invalidateRole(identity models.Identity) {
	s.Identity = identity
	s.Role = models.RoleUnknown
	s.rederiving = true
}

func (s *SessionState) reset() {
	s.Candidates = nil
	s.CandidatesLoaded = false
	s.Role = models.RoleUnknown
	s.Phase = PhaseUninitialized
	s.rederiving = false
	s.StartedAt = time.Now()
}

// VisibleCandidates redacts vote counts unless role is admin.
func VisibleCandidates(candidates []models.Candidate, role models.Role) []models.CandidateView {
	views := make([]models.CandidateView, 0, len(candidates))
	for _, c := range candidates {
		view := models.CandidateView{ID: c.ID, Name: c.Name, Party: c.Party}
		if role.IsAdmin() {
			votes := c.VoteCount
			view.Votes = &votes
		}
		views = append(views, view)
	}
	return views
}
