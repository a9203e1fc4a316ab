// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/credential"
)

// Default timeout for account commands.
const defaultAccountTimeout = 30 * time.Second

// NewAccountCmd creates the account subcommand tree.
func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
		Long:  `Provision, list, unlock, and delete accounts, and issue password reset tokens.`,
	}

	cmd.AddCommand(newAccountCreateCmd())
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountDeleteCmd())
	cmd.AddCommand(newAccountUnlockCmd())
	cmd.AddCommand(newAccountResetCmd())

	return cmd
}

// accountCreateConfig holds flags for the account create command.
type accountCreateConfig struct {
	password string
	role     string
	email    string
}

func newAccountCreateCmd() *cobra.Command {
	cfg := &accountCreateConfig{}

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *credential.Service) error {
				var email *string
				if cfg.email != "" {
					email = &cfg.email
				}

				profile, err := svc.CreateAccount(cmd.Context(), args[0], cfg.password,
					credential.Role(cfg.role), email, cliOrigin)
				if err != nil {
					return err
				}

				cmd.Printf("Created account %s (%s, role %s)\n", profile.Username, profile.ID, profile.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cfg.password, "password", "", "initial password (required)")
	cmd.Flags().StringVar(&cfg.role, "role", string(credential.RoleUser), "account role (admin, user, guest)")
	cmd.Flags().StringVar(&cfg.email, "email", "", "contact email (optional)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *credential.Service) error {
				profiles, err := svc.ListAccounts(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "USERNAME\tROLE\tEMAIL\tLAST LOGIN")
				for _, p := range profiles {
					email := "-"
					if p.Email != nil {
						email = *p.Email
					}
					lastLogin := "never"
					if p.LastLoginAt != nil {
						lastLogin = p.LastLoginAt.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Username, p.Role, email, lastLogin)
				}
				return w.Flush()
			})
		},
	}
}

func newAccountDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *credential.Service) error {
				if err := svc.DeleteAccount(cmd.Context(), args[0], cliOrigin); err != nil {
					return err
				}
				cmd.Printf("Deleted account %s\n", args[0])
				return nil
			})
		},
	}
}

func newAccountUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <username>",
		Short: "Clear an account's lockout and failure counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *credential.Service) error {
				if err := svc.UnlockAccount(cmd.Context(), args[0], cliOrigin); err != nil {
					return err
				}
				cmd.Printf("Unlocked account %s\n", args[0])
				return nil
			})
		},
	}
}

func newAccountResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <username-or-email>",
		Short: "Issue a single-use password reset token",
		Long: `Issue a single-use password reset token for the account. The token is
printed once and never stored; hand it to the user through a trusted
channel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *credential.Service) error {
				token, err := svc.RequestReset(cmd.Context(), args[0], cliOrigin)
				if err != nil {
					return err
				}
				if token == "" {
					// Unknown accounts get the same silence a network caller
					// would, so the CLI cannot be used as an existence oracle
					// by a shoulder-surfer either.
					cmd.Println("If the account exists, a reset token was issued")
					return nil
				}
				cmd.Printf("Reset token (single use): %s\n", token)
				return nil
			})
		},
	}
}

// withService loads configuration, builds the service runtime with a
// timeout, runs fn, and tears the runtime down.
func withService(cmd *cobra.Command, fn func(*credential.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultAccountTimeout)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	return fn(rt.service)
}
