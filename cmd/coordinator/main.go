package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/untillpro/goutils/logger"

	"voting-coordinator/api"
	"voting-coordinator/service"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := newRootCmd(defaultConfig()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	var noColor bool
	rootCmd := &cobra.Command{
		Use:           "coordinator",
		Short:         "Voting session coordinator for a candidate ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				pterm.DisableColor()
			}
			if err := cfg.Validate(); err != nil {
				pterm.Error.Println(err)
				return err
			}
			level, _ := parseLogLevel(cfg.LogLevel)
			logger.SetLogLevel(level)
			return nil
		},
	}
	cfg.bindFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newServeCmd(cfg),
		newCandidatesCmd(cfg),
		newVoteCmd(cfg),
		newAddCandidateCmd(cfg),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of the coordinator",
		// config is irrelevant here
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("coordinator version", version)
		},
	}
}

func newServeCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the voting session over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hub := api.NewHub(64)
			sess, err := openSession(ctx, cfg, service.FanOut(hub, &presenter{}))
			if err != nil {
				logger.Error(err)
				return err
			}
			defer sess.close()

			dispatcher := service.NewDispatcher(sess.coordinator, cfg.QueueSize, cfg.Workers)
			dispatcher.Start()
			defer dispatcher.Stop()

			if _, outcome := sess.coordinator.Bootstrap(ctx); !outcome.Succeeded() {
				logger.Warning("initial candidate load failed, retrying on first request")
			}

			server := api.NewServer(sess.coordinator, dispatcher, sess.tracker, sess.metrics, hub)
			err = server.Start(ctx, fmt.Sprintf(":%d", cfg.Port))
			sess.coordinator.Wait()
			if err != nil {
				logger.Error(err)
				return err
			}
			logger.Info("server shutdown completed")
			return nil
		},
	}
}

func newCandidatesCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "Lists the candidates, with vote counts for the ledger owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), cfg, &presenter{})
			if err != nil {
				pterm.Error.Println(err)
				return err
			}
			defer sess.close()

			if _, outcome := sess.coordinator.Bootstrap(cmd.Context()); !outcome.Succeeded() {
				return fmt.Errorf("failed to load candidates: %s", outcome.Message())
			}
			sess.coordinator.Wait()

			state := sess.coordinator.Snapshot()
			return renderCandidates(service.VisibleCandidates(state.Candidates, state.Role))
		},
	}
}

func newVoteCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <candidate-id>",
		Short: "Casts a vote as the current identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidateID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				pterm.Error.Printfln("Invalid candidate id %q", args[0])
				return fmt.Errorf("invalid candidate id %q: %w", args[0], err)
			}

			sess, err := openSession(cmd.Context(), cfg, &presenter{})
			if err != nil {
				pterm.Error.Println(err)
				return err
			}
			defer sess.close()

			if outcome := sess.coordinator.CastVote(cmd.Context(), candidateID); !outcome.Succeeded() {
				return fmt.Errorf("vote failed: %s", outcome.Kind)
			}
			return nil
		},
	}
}

func newAddCandidateCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add-candidate <name> [party]",
		Short: "Registers a candidate as the current identity",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, party := args[0], ""
			if len(args) == 2 {
				party = args[1]
			}

			sess, err := openSession(cmd.Context(), cfg, &presenter{})
			if err != nil {
				pterm.Error.Println(err)
				return err
			}
			defer sess.close()

			if outcome := sess.coordinator.RegisterCandidate(cmd.Context(), name, party); !outcome.Succeeded() {
				return fmt.Errorf("registration failed: %s", outcome.Kind)
			}
			return nil
		},
	}
}
