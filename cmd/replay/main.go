package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cartridge/replaybuffer/internal/config"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "replay",
		Short: "Cartridge RL replay buffer",
		Long: `Replay buffer service that stores transitions produced by actors and
serves uniformly sampled minibatches to the learner.

Run "replay serve" to start the service; the remaining commands talk to a
running service over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd.Flags())
			return nil
		},
	}

	root.PersistentFlags().String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("server-url", defaults.ServerURL, "Replay service base URL for client commands")
	root.PersistentFlags().Duration("request-timeout", defaults.RequestTimeout, "Timeout per client request")

	root.AddCommand(
		newServeCmd(v),
		newPushCmd(v),
		newSampleCmd(v),
		newStatsCmd(v),
		newClearCmd(v),
	)
	return root
}

// bindFlags exposes every flag to viper under its config key, so
// --http-addr resolves the same value as REPLAY_HTTP_ADDR.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		_ = v.BindPFlag(key, f)
	})
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
