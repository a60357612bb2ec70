package main

import (
	"context"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/models"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"unknown ledger", func(c *Config) { c.Ledger = "paper" }, false},
		{"difficulty too high", func(c *Config) { c.Difficulty = 300 }, false},
		{"bad seed", func(c *Config) { c.Seed = []string{":Green"} }, false},
		{"bad port", func(c *Config) { c.Port = 0 }, false},
		{"no workers", func(c *Config) { c.Workers = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"eth without contract", func(c *Config) { c.Ledger = ledgerEth; c.KeystoreDir = "ks" }, false},
		{"eth with as", func(c *Config) {
			c.Ledger = ledgerEth
			c.KeystoreDir = "ks"
			c.Contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
			c.As = "0xA"
		}, false},
		{"eth", func(c *Config) {
			c.Ledger = ledgerEth
			c.KeystoreDir = "ks"
			c.Contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			if tt.ok {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}

func TestSeedCandidates(t *testing.T) {
	cfg := defaultConfig()
	cfg.Seed = []string{"Ana:Green", " Bruno ", "Carla:Red:Left"}

	candidates, err := cfg.SeedCandidates()
	require.NoError(t, err)
	require.Equal(t, []models.Candidate{
		{Name: "Ana", Party: "Green"},
		{Name: "Bruno"},
		{Name: "Carla", Party: "Red:Left"},
	}, candidates)
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("Verbose")
	require.NoError(t, err)
	require.Equal(t, logger.LogLevelVerbose, level)

	_, err = parseLogLevel("")
	require.Error(t, err)
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(defaultConfig())
	cmd.SetArgs(append(args, "--no-color", "--log-level", "error"))
	return cmd.ExecuteContext(context.Background())
}

func TestLocalLedgerCommands(t *testing.T) {
	pterm.DisableOutput()
	defer pterm.EnableOutput()

	dir := t.TempDir()
	local := []string{"--storage", dir, "--difficulty", "0", "--owner", "0xOwner", "--seed", "Ana:Green", "--seed", "Bruno:Blue"}

	require.NoError(t, run(t, append([]string{"candidates"}, local...)...))
	require.NoError(t, run(t, append([]string{"vote", "2", "--as", "0xA"}, local...)...))
	require.Error(t, run(t, append([]string{"vote", "1", "--as", "0xA"}, local...)...))
	require.Error(t, run(t, append([]string{"vote", "1"}, local...)...))
	require.Error(t, run(t, append([]string{"vote", "x", "--as", "0xB"}, local...)...))

	require.Error(t, run(t, append([]string{"add-candidate", "Carla", "Red", "--as", "0xA"}, local...)...))
	require.NoError(t, run(t, append([]string{"add-candidate", "Carla", "Red", "--as", "0xOwner"}, local...)...))
	require.NoError(t, run(t, append([]string{"candidates", "--as", "0xOwner"}, local...)...))
}

func TestVersionSkipsValidation(t *testing.T) {
	pterm.DisableOutput()
	defer pterm.EnableOutput()

	cmd := newRootCmd(defaultConfig())
	cmd.SetArgs([]string{"version", "--port", "0"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
}
