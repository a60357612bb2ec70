// Package localchain is an append-only, hash-chained ledger kept in a local
// JSON file. It enforces the same rules as the SecureVoting contract and is
// meant for development and tests.
package localchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/ledger"
	"voting-coordinator/models"
	"voting-coordinator/storage"
)

const DefaultChainName = "ledger"

const (
	txGenesis   = "genesis"
	txCandidate = "candidate"
	txVote      = "vote"
)

// Rejection reasons.
const (
	ReasonNotOwner         = "not owner"
	ReasonAlreadyVoted     = "already voted"
	ReasonInvalidCandidate = "invalid candidate"
	ReasonIdentityRequired = "identity required"
	ReasonNameRequired     = "candidate name required"
)

type transaction struct {
	Type        string          `json:"type"`
	Identity    models.Identity `json:"identity"`
	Name        string          `json:"name,omitempty"`
	Party       string          `json:"party,omitempty"`
	CandidateID uint64          `json:"candidate_id,omitempty"`
}

type Options struct {
	ChainName  string
	Owner      models.Identity
	Difficulty uint8
	// Seed candidates are registered by the owner when the chain is created.
	Seed []models.Candidate
}

type Ledger struct {
	store      *storage.JSONStore
	chainName  string
	difficulty uint8
	offline    atomic.Bool

	mu         sync.Mutex
	blocks     []*models.Block
	owner      models.Identity
	candidates []models.Candidate
	voted      map[models.Identity]bool
}

var _ ledger.Gateway = (*Ledger)(nil)

// Open loads the chain from store, or creates it with a genesis block naming
// opts.Owner when the store holds nothing yet.
func Open(store *storage.JSONStore, opts Options) (*Ledger, error) {
	if opts.ChainName == "" {
		opts.ChainName = DefaultChainName
	}

	l := &Ledger{
		store:      store,
		chainName:  opts.ChainName,
		difficulty: opts.Difficulty,
		voted:      make(map[models.Identity]bool),
	}

	blocks, err := store.LoadChain(opts.ChainName)
	if err != nil {
		return nil, err
	}

	if len(blocks) == 0 {
		if err := l.create(opts); err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := models.ValidateChain(blocks); err != nil {
		return nil, fmt.Errorf("chain %s is corrupt: %w", opts.ChainName, err)
	}
	for _, block := range blocks {
		var tx transaction
		if err := json.Unmarshal(block.Data, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode block %d: %w", block.Index, err)
		}
		if err := l.apply(tx); err != nil {
			return nil, fmt.Errorf("failed to replay block %d: %w", block.Index, err)
		}
	}
	l.blocks = blocks

	logger.Info(fmt.Sprintf("loaded ledger %s: %d blocks, %d candidates, owner %s",
		opts.ChainName, len(blocks), len(l.candidates), l.owner))
	return l, nil
}

func (l *Ledger) create(opts Options) error {
	if !opts.Owner.IsSet() {
		return errors.New("an owner is required to create a ledger")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.appendLocked(transaction{Type: txGenesis, Identity: opts.Owner}); err != nil {
		return err
	}
	for _, c := range opts.Seed {
		if err := l.appendLocked(transaction{Type: txCandidate, Identity: opts.Owner, Name: c.Name, Party: c.Party}); err != nil {
			return err
		}
	}

	logger.Info(fmt.Sprintf("created ledger %s owned by %s with %d candidates", l.chainName, l.owner, len(l.candidates)))
	return nil
}

// SetOffline makes every call fail as unavailable, for outage drills.
func (l *Ledger) SetOffline(offline bool) {
	l.offline.Store(offline)
}

func (l *Ledger) Owner() models.Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Blocks returns a copy of the chain.
func (l *Ledger) Blocks() []*models.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	blocks := make([]*models.Block, len(l.blocks))
	copy(blocks, l.blocks)
	return blocks
}

func (l *Ledger) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	if err := l.reachable(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	candidates := make([]models.Candidate, len(l.candidates))
	copy(candidates, l.candidates)
	return candidates, nil
}

func (l *Ledger) HasVoted(ctx context.Context, identity models.Identity) (bool, error) {
	if err := l.reachable(ctx); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.voted[normalize(identity)], nil
}

func (l *Ledger) IsOwner(ctx context.Context, identity models.Identity) (bool, error) {
	if err := l.reachable(ctx); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isOwnerLocked(identity), nil
}

// SubmitVote checks and records the vote under one lock, so a second vote by
// the same identity is always rejected here.
func (l *Ledger) SubmitVote(ctx context.Context, identity models.Identity, candidateID uint64) error {
	if err := l.reachable(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(transaction{Type: txVote, Identity: identity, CandidateID: candidateID})
}

func (l *Ledger) RegisterCandidate(ctx context.Context, name, party string, submitter models.Identity) error {
	if err := l.reachable(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(transaction{Type: txCandidate, Identity: submitter, Name: name, Party: party})
}

func (l *Ledger) reachable(ctx context.Context) error {
	if l.offline.Load() {
		return ledger.Unavailable(errors.New("local ledger is offline"))
	}
	if err := ctx.Err(); err != nil {
		return ledger.Unavailable(err)
	}
	return nil
}

// appendLocked validates tx against current state, mines and persists a block
// for it, then applies it.
func (l *Ledger) appendLocked(tx transaction) error {
	if err := l.check(tx); err != nil {
		return err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	block := models.NewBlock(uint64(len(l.blocks)), data, l.lastHash(), l.difficulty)
	if len(l.blocks) > 0 && block.Timestamp < l.blocks[len(l.blocks)-1].Timestamp {
		block.Timestamp = l.blocks[len(l.blocks)-1].Timestamp
		block.Mine()
	}

	if err := l.store.SaveBlock(l.chainName, block); err != nil {
		return ledger.Unavailable(fmt.Errorf("failed to persist block: %w", err))
	}

	l.blocks = append(l.blocks, block)
	return l.apply(tx)
}

func (l *Ledger) check(tx transaction) error {
	if !tx.Identity.IsSet() {
		return ledger.Rejected(ReasonIdentityRequired)
	}

	switch tx.Type {
	case txGenesis:
		if len(l.blocks) != 0 {
			return errors.New("genesis must be the first block")
		}
	case txCandidate:
		if !l.isOwnerLocked(tx.Identity) {
			return ledger.Rejected(ReasonNotOwner)
		}
		if strings.TrimSpace(tx.Name) == "" {
			return ledger.Rejected(ReasonNameRequired)
		}
	case txVote:
		if l.voted[normalize(tx.Identity)] {
			return ledger.Rejected(ReasonAlreadyVoted)
		}
		if tx.CandidateID == 0 || tx.CandidateID > uint64(len(l.candidates)) {
			return ledger.Rejected(ReasonInvalidCandidate)
		}
	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	return nil
}

func (l *Ledger) apply(tx transaction) error {
	switch tx.Type {
	case txGenesis:
		l.owner = tx.Identity
	case txCandidate:
		l.candidates = append(l.candidates, models.Candidate{
			ID:    uint64(len(l.candidates)) + 1,
			Name:  tx.Name,
			Party: tx.Party,
		})
	case txVote:
		if tx.CandidateID == 0 || tx.CandidateID > uint64(len(l.candidates)) {
			return fmt.Errorf("vote for unknown candidate %d", tx.CandidateID)
		}
		l.candidates[tx.CandidateID-1].VoteCount++
		l.voted[normalize(tx.Identity)] = true
	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	return nil
}

func (l *Ledger) isOwnerLocked(identity models.Identity) bool {
	return identity.IsSet() && normalize(identity) == normalize(l.owner)
}

// normalize maps every spelling of one account to the same key: account
// addresses to their checksummed form, anything else to lower case.
func normalize(identity models.Identity) models.Identity {
	s := strings.TrimSpace(string(identity))
	if common.IsHexAddress(s) {
		return models.Identity(common.HexToAddress(s).Hex())
	}
	return models.Identity(strings.ToLower(s))
}

func (l *Ledger) lastHash() []byte {
	if len(l.blocks) == 0 {
		return make([]byte, 32)
	}
	return l.blocks[len(l.blocks)-1].Hash
}
