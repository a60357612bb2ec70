package identity

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/models"
)

// KeystoreSource feeds a Tracker from a go-ethereum keystore directory. The
// first account of the keystore is the acting identity; an empty keystore
// leaves the identity unset.
type KeystoreSource struct {
	ks         *keystore.KeyStore
	tracker    *Tracker
	passphrase string
}

func NewKeystoreSource(ks *keystore.KeyStore, tracker *Tracker, passphrase string) *KeystoreSource {
	return &KeystoreSource{
		ks:         ks,
		tracker:    tracker,
		passphrase: passphrase,
	}
}

// OpenKeystore opens (or creates) a keystore directory with standard scrypt
// parameters.
func OpenKeystore(dir string) *keystore.KeyStore {
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
}

// Run follows wallet events until ctx is done.
func (s *KeystoreSource) Run(ctx context.Context) error {
	events := make(chan accounts.WalletEvent, 16)
	sub := s.ks.Subscribe(events)
	defer sub.Unsubscribe()

	s.Sync()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err != nil {
				return fmt.Errorf("keystore subscription failed: %w", err)
			}
			return nil
		case ev := <-events:
			logger.Verbose("keystore wallet event", ev.Kind, ev.Wallet.URL())
			s.Sync()
		}
	}
}

// Sync publishes the first keystore account as the current identity, or
// no identity if the keystore is empty.
func (s *KeystoreSource) Sync() {
	accs := s.ks.Accounts()
	if len(accs) == 0 {
		s.tracker.OnIdentityChanged(models.NoIdentity)
		return
	}

	if s.passphrase != "" {
		for _, acc := range accs {
			if err := s.ks.Unlock(acc, s.passphrase); err != nil {
				logger.Warning(fmt.Sprintf("failed to unlock account %s: %v", acc.Address.Hex(), err))
			}
		}
	}

	s.tracker.OnIdentityChanged(AddressIdentity(accs[0].Address))
}

// Transactor returns signing options for identity backed by an unlocked
// keystore account.
func (s *KeystoreSource) Transactor(id models.Identity, chainID *big.Int) (*bind.TransactOpts, error) {
	if !common.IsHexAddress(string(id)) {
		return nil, fmt.Errorf("identity %s is not an account address", id)
	}
	account := accounts.Account{Address: common.HexToAddress(string(id))}
	if !s.ks.HasAddress(account.Address) {
		return nil, fmt.Errorf("account %s is not in the keystore", id)
	}
	return bind.NewKeyStoreTransactorWithChainID(s.ks, account, chainID)
}

// AddressIdentity renders an account address in checksummed form.
func AddressIdentity(addr common.Address) models.Identity {
	return models.Identity(addr.Hex())
}
