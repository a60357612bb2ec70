package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/models"
)

const (
	ledgerLocal = "local"
	ledgerEth   = "eth"
)

type Config struct {
	Ledger string

	// local ledger
	StorageDir string
	Difficulty int
	Owner      string
	Seed       []string

	// SecureVoting contract
	RPCURL         string
	Contract       string
	ChainID        int64
	KeystoreDir    string
	PassphraseFile string

	Port      int
	Workers   int
	QueueSize int
	LogLevel  string
	As        string
}

func defaultConfig() *Config {
	return &Config{
		Ledger:     ledgerLocal,
		StorageDir: "data",
		Difficulty: 1,
		RPCURL:     "http://127.0.0.1:8545",
		Port:       8080,
		Workers:    2,
		QueueSize:  64,
		LogLevel:   "info",
	}
}

func (c *Config) bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Ledger, "ledger", c.Ledger, "Ledger backend: local or eth")
	flags.StringVar(&c.StorageDir, "storage", c.StorageDir, "Directory for the local chain")
	flags.IntVar(&c.Difficulty, "difficulty", c.Difficulty, "Mining difficulty of the local chain (0-255)")
	flags.StringVar(&c.Owner, "owner", c.Owner, "Owner identity of a new local chain")
	flags.StringSliceVar(&c.Seed, "seed", c.Seed, "Initial candidates of a new local chain as name:party")
	flags.StringVar(&c.RPCURL, "rpc", c.RPCURL, "JSON-RPC endpoint of the Ethereum node")
	flags.StringVar(&c.Contract, "contract", c.Contract, "Address of the SecureVoting contract")
	flags.Int64Var(&c.ChainID, "chain-id", c.ChainID, "Chain id, 0 asks the node")
	flags.StringVar(&c.KeystoreDir, "keystore", c.KeystoreDir, "Keystore directory holding the voter accounts")
	flags.StringVar(&c.PassphraseFile, "passphrase-file", c.PassphraseFile, "File with the passphrase unlocking the keystore accounts")
	flags.IntVar(&c.Port, "port", c.Port, "HTTP port")
	flags.IntVar(&c.Workers, "workers", c.Workers, "Number of workers running votes and registrations")
	flags.IntVar(&c.QueueSize, "queue-size", c.QueueSize, "Capacity of the trigger queues")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: error, warning, info, verbose or trace")
	flags.StringVar(&c.As, "as", c.As, "Identity to act as on the local ledger")
}

func (c *Config) Validate() error {
	switch c.Ledger {
	case ledgerLocal:
		if c.Difficulty < 0 || c.Difficulty > 255 {
			return errors.New("difficulty must be between 0 and 255")
		}
		if c.StorageDir == "" {
			return errors.New("storage directory is required")
		}
		if _, err := c.SeedCandidates(); err != nil {
			return err
		}
	case ledgerEth:
		if !common.IsHexAddress(c.Contract) {
			return fmt.Errorf("contract address %q is invalid", c.Contract)
		}
		if c.KeystoreDir == "" {
			return errors.New("keystore directory is required for the eth ledger")
		}
		if c.ChainID < 0 {
			return errors.New("chain id must not be negative")
		}
		if c.As != "" {
			return errors.New("--as is only supported by the local ledger, the eth identity comes from the keystore")
		}
	default:
		return fmt.Errorf("unknown ledger %q", c.Ledger)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.Workers < 1 {
		return errors.New("at least one worker is required")
	}
	if c.QueueSize < 1 {
		return errors.New("queue size must be positive")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SeedCandidates parses the name:party pairs of --seed. The party may be
// empty.
func (c *Config) SeedCandidates() ([]models.Candidate, error) {
	var candidates []models.Candidate
	for _, s := range c.Seed {
		name, party, _ := strings.Cut(s, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("seed candidate %q has no name", s)
		}
		candidates = append(candidates, models.Candidate{Name: name, Party: strings.TrimSpace(party)})
	}
	return candidates, nil
}

func (c *Config) chainID() *big.Int {
	if c.ChainID == 0 {
		return nil
	}
	return big.NewInt(c.ChainID)
}

func (c *Config) passphrase() (string, error) {
	if c.PassphraseFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PassphraseFile)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase file: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func parseLogLevel(level string) (logger.TLogLevel, error) {
	switch strings.ToLower(level) {
	case "none":
		return logger.LogLevelNone, nil
	case "error":
		return logger.LogLevelError, nil
	case "warning":
		return logger.LogLevelWarning, nil
	case "info":
		return logger.LogLevelInfo, nil
	case "verbose":
		return logger.LogLevelVerbose, nil
	case "trace":
		return logger.LogLevelTrace, nil
	default:
		return logger.LogLevelNone, fmt.Errorf("unknown log level %q", level)
	}
}
