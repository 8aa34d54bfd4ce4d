package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/mcp"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tool interface on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, _, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			logger.Info("mcp server starting", "version", mcp.Version)
			server := mcp.NewServer(mcp.NewToolHandler(s, newClock(cfg), cfg.RefillThreshold))
			if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
