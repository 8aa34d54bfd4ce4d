package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/medtrack/internal/config"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/mcp"
	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	godotenv.Load()
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "medtrack",
		Short:         "medtrack - personal medication tracker",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("MEDTRACK_CONFIG", configPath)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./medtrack.yaml)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(mcpCmd())
	cmd.AddCommand(exportCmd())
	cmd.AddCommand(importCmd())
	cmd.AddCommand(userCmd())
	return cmd
}

// loadConfig 读取配置并按配置初始化日志
func loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	mcp.Version = Version
	return cfg, nil
}
