package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/blockchain/localchain"
	"voting-coordinator/blockchain/securevoting"
	"voting-coordinator/identity"
	"voting-coordinator/ledger"
	"voting-coordinator/models"
	"voting-coordinator/service"
	"voting-coordinator/storage"
)

// session wires one coordinator to the configured ledger.
type session struct {
	tracker     *identity.Tracker
	metrics     *service.MetricsCollector
	coordinator *service.Coordinator
	close       func()
}

func openSession(ctx context.Context, cfg *Config, sink service.EventSink) (*session, error) {
	metrics := service.NewMetricsCollector()
	tracker := identity.NewTracker(models.NoIdentity)
	closeFn := func() {}
	var source *identity.KeystoreSource

	var gateway ledger.Gateway
	switch cfg.Ledger {
	case ledgerLocal:
		l, err := openLocalLedger(cfg)
		if err != nil {
			return nil, err
		}
		gateway = l
		tracker.OnIdentityChanged(models.Identity(cfg.As))

	case ledgerEth:
		passphrase, err := cfg.passphrase()
		if err != nil {
			return nil, err
		}
		source = identity.NewKeystoreSource(identity.OpenKeystore(cfg.KeystoreDir), tracker, passphrase)
		source.Sync()

		gw, client, err := securevoting.Dial(ctx, cfg.RPCURL, common.HexToAddress(cfg.Contract), source, cfg.chainID())
		if err != nil {
			return nil, err
		}
		gateway = gw
		closeFn = client.Close

	default:
		return nil, fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}

	if sink == nil {
		sink = service.NopSink
	}
	coordinator := service.NewCoordinator(ctx, service.NewMeteredGateway(gateway, metrics), tracker,
		service.FanOut(metrics, sink))

	// wallet events are followed only once the coordinator is subscribed
	if source != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := source.Run(watchCtx); err != nil {
				logger.Error(err)
			}
		}()
		clientClose := closeFn
		closeFn = func() {
			cancel()
			clientClose()
		}
	}

	return &session{
		tracker:     tracker,
		metrics:     metrics,
		coordinator: coordinator,
		close:       closeFn,
	}, nil
}

func openLocalLedger(cfg *Config) (*localchain.Ledger, error) {
	absPath, err := filepath.Abs(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	store, err := storage.NewJSONStore(absPath)
	if err != nil {
		return nil, err
	}

	seed, err := cfg.SeedCandidates()
	if err != nil {
		return nil, err
	}
	l, err := localchain.Open(store, localchain.Options{
		Owner:      models.Identity(cfg.Owner),
		Difficulty: uint8(cfg.Difficulty),
		Seed:       seed,
	})
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("opened local chain in %s owned by %s", absPath, l.Owner()))
	return l, nil
}
