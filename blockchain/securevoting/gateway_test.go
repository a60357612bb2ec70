package securevoting

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"voting-coordinator/ledger"
	"voting-coordinator/models"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	voterAddr    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

// fakeBackend answers contract calls with canned ABI encoded results.
type fakeBackend struct {
	bind.ContractBackend
	parsed abi.ABI
	voted  map[common.Address]bool
	err    error
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	require.NoError(t, err)
	return &fakeBackend{parsed: parsed, voted: map[common.Address]bool{voterAddr: true}}
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	method, err := f.parsed.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "getCandidates":
		return method.Outputs.Pack([]candidateTuple{
			{Uid: big.NewInt(1), Name: "Ana", Party: "Green", Votes: big.NewInt(4)},
			{Uid: big.NewInt(2), Name: "Bruno", Party: "Blue", Votes: big.NewInt(0)},
		})
	case "hasAlreadyVoted":
		return method.Outputs.Pack(f.voted[call.From])
	case "isOwner":
		return method.Outputs.Pack(bytes.Equal(call.From.Bytes(), ownerAddr.Bytes()))
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func newTestGateway(t *testing.T, backend *fakeBackend) *Gateway {
	gw, err := New(contractAddr, backend, nil, big.NewInt(1337))
	require.NoError(t, err)
	return gw
}

func TestListCandidatesKeepsContractOrder(t *testing.T) {
	require := require.New(t)
	gw := newTestGateway(t, newFakeBackend(t))

	candidates, err := gw.ListCandidates(context.Background())
	require.NoError(err)
	require.Equal([]models.Candidate{
		{ID: 1, Name: "Ana", Party: "Green", VoteCount: 4},
		{ID: 2, Name: "Bruno", Party: "Blue"},
	}, candidates)
}

func TestViewsAnswerForCaller(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	gw := newTestGateway(t, newFakeBackend(t))

	isOwner, err := gw.IsOwner(ctx, models.Identity(ownerAddr.Hex()))
	require.NoError(err)
	require.True(isOwner)

	isOwner, err = gw.IsOwner(ctx, models.Identity(voterAddr.Hex()))
	require.NoError(err)
	require.False(isOwner)

	voted, err := gw.HasVoted(ctx, models.Identity(voterAddr.Hex()))
	require.NoError(err)
	require.True(voted)

	voted, err = gw.HasVoted(ctx, models.Identity(ownerAddr.Hex()))
	require.NoError(err)
	require.False(voted)
}

func TestInvalidIdentityIsRejected(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend(t))

	_, err := gw.HasVoted(context.Background(), "alice")
	_, ok := ledger.RejectionReason(err)
	require.True(t, ok)
}

func TestSubmitWithoutSignerIsRejected(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend(t))

	reason, ok := ledger.RejectionReason(gw.SubmitVote(context.Background(), models.Identity(voterAddr.Hex()), 1))
	require.True(t, ok)
	require.Equal(t, "no signer configured", reason)
}

func TestClassifyRevertData(t *testing.T) {
	require := require.New(t)

	stringType, err := abi.NewType("string", "", nil)
	require.NoError(err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack("not owner")
	require.NoError(err)
	data := append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)

	backend := newFakeBackend(t)
	backend.err = &dataError{msg: "execution reverted: not owner", data: hexutil.Encode(data)}
	gw := newTestGateway(t, backend)

	_, err = gw.IsOwner(context.Background(), models.Identity(ownerAddr.Hex()))
	reason, ok := ledger.RejectionReason(err)
	require.True(ok)
	require.Equal("not owner", reason)
}

func TestClassify(t *testing.T) {
	require := require.New(t)

	reason, ok := ledger.RejectionReason(classify(errors.New("execution reverted: already voted")))
	require.True(ok)
	require.Equal("already voted", reason)

	reason, ok = ledger.RejectionReason(classify(errors.New("execution reverted")))
	require.True(ok)
	require.Equal("execution reverted", reason)

	require.ErrorIs(classify(errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")), ledger.ErrUnavailable)
	require.ErrorIs(classify(context.DeadlineExceeded), ledger.ErrUnavailable)
	require.NoError(classify(nil))
}
