package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/replaybuffer/internal/client"
	"github.com/cartridge/replaybuffer/internal/service"
)

func newClient(v *viper.Viper) (*client.Client, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.ServerURL, cfg.RequestTimeout)
}

func newPushCmd(v *viper.Viper) *cobra.Command {
	var (
		state, action, nextState, file string
		reward                         float64
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push one transition, or a JSON array of transitions with --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}

			if file != "" {
				transitions, err := readTransitions(file)
				if err != nil {
					return err
				}
				stats, err := c.PushBatch(cmd.Context(), transitions)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			}

			transition, err := buildTransition(state, action, nextState, reward)
			if err != nil {
				return err
			}
			stats, err := c.Push(cmd.Context(), transition)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "State as a JSON value")
	cmd.Flags().StringVar(&action, "action", "", "Action as a JSON value")
	cmd.Flags().StringVar(&nextState, "next-state", "", "Next state as a JSON value")
	cmd.Flags().Float64Var(&reward, "reward", 0, "Reward for the step")
	cmd.Flags().StringVar(&file, "file", "", "Path to a JSON array of transitions")
	cmd.MarkFlagsMutuallyExclusive("file", "state")

	return cmd
}

func newSampleCmd(v *viper.Viper) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample a minibatch of transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			result, err := c.Sample(cmd.Context(), batchSize)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Number of transitions to draw")
	_ = cmd.MarkFlagRequired("batch-size")

	return cmd
}

func newStatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show buffer occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newClearCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard every stored transition",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			result, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func buildTransition(state, action, nextState string, reward float64) (service.Transition, error) {
	fields := []struct {
		name, value string
	}{
		{"state", state},
		{"action", action},
		{"next-state", nextState},
	}
	for _, f := range fields {
		if f.value == "" {
			return service.Transition{}, fmt.Errorf("--%s is required", f.name)
		}
		if !json.Valid([]byte(f.value)) {
			return service.Transition{}, fmt.Errorf("--%s must be valid JSON", f.name)
		}
	}

	return service.Transition{
		State:     json.RawMessage(state),
		Action:    json.RawMessage(action),
		NextState: json.RawMessage(nextState),
		Reward:    reward,
	}, nil
}

func readTransitions(path string) ([]service.Transition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var transitions []service.Transition
	if err := json.Unmarshal(data, &transitions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(transitions) == 0 {
		return nil, errors.New("batch file contains no transitions")
	}
	return transitions, nil
}
