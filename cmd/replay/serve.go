package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/replaybuffer/internal/config"
	"github.com/cartridge/replaybuffer/internal/events"
	"github.com/cartridge/replaybuffer/internal/health"
	replayhttp "github.com/cartridge/replaybuffer/internal/http"
	"github.com/cartridge/replaybuffer/internal/service"
	"github.com/cartridge/replaybuffer/pkg/buffer"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the replay buffer service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("http-addr", defaults.HTTPAddr, "HTTP API listen address")
	cmd.Flags().String("grpc-addr", defaults.GRPCAddr, "gRPC health listen address (empty disables)")
	cmd.Flags().Int("capacity", defaults.Capacity, "Maximum number of transitions to store")
	cmd.Flags().Uint64("seed", defaults.Seed, "Sampling seed (0 for random)")
	cmd.Flags().String("nats-url", defaults.NATSURL, "NATS URL for buffer events (empty disables)")
	cmd.Flags().String("nats-subject", defaults.NATSSubject, "NATS subject prefix for buffer events")
	cmd.Flags().Duration("shutdown-timeout", defaults.ShutdownTimeout, "Graceful shutdown timeout")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger := newLogger(cfg, os.Stdout)

	var opts []buffer.Option
	if cfg.Seed != 0 {
		opts = append(opts, buffer.WithSeed(cfg.Seed))
	}
	buf, err := buffer.NewCircular[json.RawMessage, json.RawMessage](cfg.Capacity, opts...)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("Publishing buffer events to NATS")
	}

	replayService := service.NewReplayService(buf, publisher, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           replayhttp.NewServer(replayService, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 2)

	var healthServer *health.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
		}
		healthServer = health.NewServer(logger)
		go func() {
			if err := healthServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Int("capacity", cfg.Capacity).
			Msg("Replay HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if healthServer != nil {
		healthServer.MarkServing()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if healthServer != nil {
		healthServer.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logger.Info().Msg("Replay service stopped")
	return serveErr
}
