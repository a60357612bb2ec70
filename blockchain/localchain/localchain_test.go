package localchain

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"voting-coordinator/ledger"
	"voting-coordinator/models"
	"voting-coordinator/storage"
)

const owner models.Identity = "0xOwner"

func openTestLedger(t *testing.T, dir string) *Ledger {
	t.Helper()
	store, err := storage.NewJSONStore(dir)
	require.NoError(t, err)
	l, err := Open(store, Options{
		Owner: owner,
		Seed: []models.Candidate{
			{Name: "Ana", Party: "Green"},
			{Name: "Bruno", Party: "Blue"},
		},
	})
	require.NoError(t, err)
	return l
}

func TestOpenSeedsCandidatesInOrder(t *testing.T) {
	require := require.New(t)
	l := openTestLedger(t, t.TempDir())

	candidates, err := l.ListCandidates(context.Background())
	require.NoError(err)
	require.Equal([]models.Candidate{
		{ID: 1, Name: "Ana", Party: "Green"},
		{ID: 2, Name: "Bruno", Party: "Blue"},
	}, candidates)
	require.Len(l.Blocks(), 3)
}

func TestOpenRequiresOwnerForNewChain(t *testing.T) {
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	_, err = Open(store, Options{})
	require.Error(t, err)
}

func TestVoteRules(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := openTestLedger(t, t.TempDir())

	voted, err := l.HasVoted(ctx, "0xA")
	require.NoError(err)
	require.False(voted)

	require.NoError(l.SubmitVote(ctx, "0xA", 2))
	voted, err = l.HasVoted(ctx, "0xA")
	require.NoError(err)
	require.True(voted)

	reason, ok := ledger.RejectionReason(l.SubmitVote(ctx, "0xA", 1))
	require.True(ok)
	require.Equal(ReasonAlreadyVoted, reason)

	reason, ok = ledger.RejectionReason(l.SubmitVote(ctx, "0xB", 9))
	require.True(ok)
	require.Equal(ReasonInvalidCandidate, reason)

	reason, ok = ledger.RejectionReason(l.SubmitVote(ctx, models.NoIdentity, 1))
	require.True(ok)
	require.Equal(ReasonIdentityRequired, reason)

	candidates, err := l.ListCandidates(ctx)
	require.NoError(err)
	require.Equal(uint64(0), candidates[0].VoteCount)
	require.Equal(uint64(1), candidates[1].VoteCount)
}

func TestConcurrentVotesByOneIdentityRecordOnce(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := openTestLedger(t, t.TempDir())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.SubmitVote(ctx, "0xA", 1)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		}
	}
	require.Equal(1, accepted)

	candidates, err := l.ListCandidates(ctx)
	require.NoError(err)
	require.Equal(uint64(1), candidates[0].VoteCount)
}

func TestRegisterCandidateIsOwnerOnly(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := openTestLedger(t, t.TempDir())

	reason, ok := ledger.RejectionReason(l.RegisterCandidate(ctx, "Carla", "Red", "0xA"))
	require.True(ok)
	require.Equal(ReasonNotOwner, reason)

	reason, ok = ledger.RejectionReason(l.RegisterCandidate(ctx, " ", "Red", owner))
	require.True(ok)
	require.Equal(ReasonNameRequired, reason)

	require.NoError(l.RegisterCandidate(ctx, "Carla", "Red", owner))

	isOwner, err := l.IsOwner(ctx, owner)
	require.NoError(err)
	require.True(isOwner)
	isOwner, err = l.IsOwner(ctx, "0xA")
	require.NoError(err)
	require.False(isOwner)
	isOwner, err = l.IsOwner(ctx, models.NoIdentity)
	require.NoError(err)
	require.False(isOwner)
}

func TestReopenReplaysChain(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	l := openTestLedger(t, dir)
	require.NoError(l.SubmitVote(ctx, "0xA", 1))
	require.NoError(l.RegisterCandidate(ctx, "Carla", "Red", owner))

	store, err := storage.NewJSONStore(dir)
	require.NoError(err)
	reopened, err := Open(store, Options{Owner: "0xSomeoneElse"})
	require.NoError(err)
	require.Equal(owner, reopened.Owner())

	candidates, err := reopened.ListCandidates(ctx)
	require.NoError(err)
	require.Len(candidates, 3)
	require.Equal(uint64(1), candidates[0].VoteCount)
	require.Equal("Carla", candidates[2].Name)

	voted, err := reopened.HasVoted(ctx, "0xA")
	require.NoError(err)
	require.True(voted)
}

func TestOfflineLedgerIsUnavailable(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t, t.TempDir())
	l.SetOffline(true)

	_, err := l.ListCandidates(ctx)
	require.ErrorIs(t, err, ledger.ErrUnavailable)
	require.ErrorIs(t, l.SubmitVote(ctx, "0xA", 1), ledger.ErrUnavailable)

	l.SetOffline(false)
	_, err = l.ListCandidates(ctx)
	require.NoError(t, err)
}

func TestIdentitySpellingsShareOneVote(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := openTestLedger(t, t.TempDir())

	const (
		lower models.Identity = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
		upper models.Identity = "0x5FBDB2315678AFECB367F032D93F642F64180AA3"
	)
	require.NoError(l.SubmitVote(ctx, lower, 1))

	voted, err := l.HasVoted(ctx, upper)
	require.NoError(err)
	require.True(voted)

	reason, ok := ledger.RejectionReason(l.SubmitVote(ctx, upper, 2))
	require.True(ok)
	require.Equal(ReasonAlreadyVoted, reason)

	require.NoError(l.SubmitVote(ctx, "0xabcdef", 1))
	reason, ok = ledger.RejectionReason(l.SubmitVote(ctx, "0xABCDEF", 2))
	require.True(ok)
	require.Equal(ReasonAlreadyVoted, reason)

	candidates, err := l.ListCandidates(ctx)
	require.NoError(err)
	require.Equal(uint64(2), candidates[0].VoteCount)
	require.Equal(uint64(0), candidates[1].VoteCount)

	isOwner, err := l.IsOwner(ctx, "0XOWNER")
	require.NoError(err)
	require.True(isOwner)
}
