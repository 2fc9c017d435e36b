/*-------------------------------------------------------------------------
 *
 * serve.go
 *    serve command: generate operations and serve them as MCP tools
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/cli/serve.go
 *
 *-------------------------------------------------------------------------
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/internal/server"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated operations as MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport (stdio, http)")
	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "HTTP listen host")
	cmd.Flags().IntVar(&opts.port, "port", 8000, "HTTP listen port")
	addGenerationFlags(cmd.Flags(), opts)
	return cmd
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create NeuronDynamic server: %w", err)
	}

	runErr := srv.Start(ctx)
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	/* Cleanup runs on a fresh context: ctx is already cancelled on signal */
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("Error occurred during server shutdown", map[string]interface{}{"error": err.Error()})
	}

	if runErr != nil {
		return fmt.Errorf("server stopped: %w", runErr)
	}
	return nil
}
