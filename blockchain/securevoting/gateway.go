// Package securevoting drives a deployed SecureVoting contract through
// go-ethereum contract bindings.
package securevoting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/ledger"
	"voting-coordinator/models"
)

// Signer produces transaction options for an identity.
type Signer interface {
	Transactor(id models.Identity, chainID *big.Int) (*bind.TransactOpts, error)
}

type candidateTuple struct {
	Uid   *big.Int
	Name  string
	Party string
	Votes *big.Int
}

type Gateway struct {
	contract *bind.BoundContract
	backend  bind.ContractBackend
	signer   Signer
	chainID  *big.Int
}

var _ ledger.Gateway = (*Gateway)(nil)

func New(address common.Address, backend bind.ContractBackend, signer Signer, chainID *big.Int) (*Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	return &Gateway{
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		signer:   signer,
		chainID:  chainID,
	}, nil
}

// Dial connects to an RPC endpoint. A nil chainID is asked from the node.
func Dial(ctx context.Context, rpcURL string, address common.Address, signer Signer, chainID *big.Int) (*Gateway, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, ledger.Unavailable(fmt.Errorf("failed to dial %s: %w", rpcURL, err))
	}

	if chainID == nil {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, nil, ledger.Unavailable(fmt.Errorf("failed to query chain id: %w", err))
		}
	}

	gw, err := New(address, client, signer, chainID)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	logger.Info(fmt.Sprintf("connected to SecureVoting at %s on chain %s", address.Hex(), chainID))
	return gw, client, nil
}

func (g *Gateway) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getCandidates"); err != nil {
		return nil, classify(err)
	}
	if len(out) == 0 {
		return nil, ledger.Unavailable(errors.New("empty getCandidates result"))
	}

	tuples := *abi.ConvertType(out[0], new([]candidateTuple)).(*[]candidateTuple)
	candidates := make([]models.Candidate, 0, len(tuples))
	for _, t := range tuples {
		candidates = append(candidates, models.Candidate{
			ID:        toUint64(t.Uid),
			Name:      t.Name,
			Party:     t.Party,
			VoteCount: toUint64(t.Votes),
		})
	}
	return candidates, nil
}

func (g *Gateway) HasVoted(ctx context.Context, identity models.Identity) (bool, error) {
	return g.callBool(ctx, identity, "hasAlreadyVoted")
}

func (g *Gateway) IsOwner(ctx context.Context, identity models.Identity) (bool, error) {
	return g.callBool(ctx, identity, "isOwner")
}

func (g *Gateway) SubmitVote(ctx context.Context, identity models.Identity, candidateID uint64) error {
	voter, err := parseIdentity(identity)
	if err != nil {
		return err
	}
	return g.transact(ctx, identity, "vote", voter, new(big.Int).SetUint64(candidateID))
}

func (g *Gateway) RegisterCandidate(ctx context.Context, name, party string, submitter models.Identity) error {
	if _, err := parseIdentity(submitter); err != nil {
		return err
	}
	return g.transact(ctx, submitter, "addCandidate", name, party)
}

func (g *Gateway) callBool(ctx context.Context, identity models.Identity, method string) (bool, error) {
	from, err := parseIdentity(identity)
	if err != nil {
		return false, err
	}

	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{From: from, Context: ctx}, &out, method); err != nil {
		return false, classify(err)
	}
	if len(out) == 0 {
		return false, ledger.Unavailable(fmt.Errorf("empty %s result", method))
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (g *Gateway) transact(ctx context.Context, identity models.Identity, method string, params ...interface{}) error {
	if g.signer == nil {
		return ledger.Rejected("no signer configured")
	}
	opts, err := g.signer.Transactor(identity, g.chainID)
	if err != nil {
		return ledger.Rejected(fmt.Sprintf("cannot sign as %s: %v", identity, err))
	}
	opts.Context = ctx

	tx, err := g.contract.Transact(opts, method, params...)
	if err != nil {
		return classify(err)
	}
	logger.Verbose("sent", method, "transaction", tx.Hash().Hex(), "from", identity)

	deploy, ok := g.backend.(bind.DeployBackend)
	if !ok {
		return nil
	}
	receipt, err := bind.WaitMined(ctx, deploy, tx)
	if err != nil {
		return ledger.Unavailable(fmt.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err))
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return ledger.Rejected("transaction reverted")
	}
	return nil
}

func parseIdentity(identity models.Identity) (common.Address, error) {
	if !identity.IsSet() {
		return common.Address{}, ledger.Rejected("identity required")
	}
	if !common.IsHexAddress(string(identity)) {
		return common.Address{}, ledger.Rejected(fmt.Sprintf("invalid identity %s", identity))
	}
	return common.HexToAddress(string(identity)), nil
}

const revertPrefix = "execution reverted"

// classify maps a go-ethereum error to the ledger error taxonomy. Reverts are
// business rejections, everything else is treated as unavailability.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
			return ledger.Rejected(reason)
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, revertPrefix); idx >= 0 {
		reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len(revertPrefix):], ":"))
		if reason == "" {
			reason = revertPrefix
		}
		return ledger.Rejected(reason)
	}

	return ledger.Unavailable(err)
}

func unpackRevertData(data interface{}) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}

func toUint64(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
