package main

import (
	"errors"
	"fmt"

	"github.com/medtrack/internal/db"
	"github.com/spf13/cobra"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(userEnsureCmd())
	return cmd
}

func userEnsureCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the admin account, or reset its password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if username == "" {
				username = cfg.SuperRootUserName
			}
			if password == "" {
				password = cfg.SuperRootPassword
			}
			if username == "" || password == "" {
				return errors.New("username and password are required (flags or SUPER_ROOT_USER_NAME / SUPER_ROOT_PASSWORD)")
			}

			s, gdb, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			if gdb == nil {
				return errors.New("user accounts need a database driver; the memory store reads credentials from config")
			}

			if err := db.EnsureUser(gdb, username, password); err != nil {
				return fmt.Errorf("ensure user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s ready\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username (default from config)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password (default from config)")
	return cmd
}
