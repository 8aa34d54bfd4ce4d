package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/medtrack/internal/backup"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all records as a JSON or YAML document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if format == "" && out != "" {
				format = formatFromPath(out)
			}
			format, err = backup.NormalizeFormat(format)
			if err != nil {
				return err
			}

			s, _, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return backup.NewService(s).WriteTo(cmd.Context(), w, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default json, or from --out extension)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all records with the contents of a backup document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if format == "" {
				format = formatFromPath(args[0])
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			s, _, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			summary, err := backup.NewService(s).ReadFrom(cmd.Context(), f, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d medications, %d schedules, %d logs, %d interactions\n",
				summary.Medications, summary.Schedules, summary.Logs, summary.Interactions)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default from file extension)")
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return backup.FormatYAML
	}
	return backup.FormatJSON
}
