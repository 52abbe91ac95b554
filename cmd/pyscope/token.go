package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pyscope/internal/core/app"
	"pyscope/internal/data/identity"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or revoke access tokens (sqlite identity backend)",
	}

	sqliteProvider := func(a *app.App) (*identity.SQLiteProvider, error) {
		p, ok := a.Identity.(*identity.SQLiteProvider)
		if !ok {
			return nil, fmt.Errorf("token management requires identity.backend = \"sqlite\", have %q", a.Config.Identity.Backend)
		}
		return p, nil
	}

	issue := &cobra.Command{
		Use:   "issue <owner>",
		Short: "Issue a new token for owner and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			p, err := sqliteProvider(a)
			if err != nil {
				return err
			}
			token, err := p.Issue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			p, err := sqliteProvider(a)
			if err != nil {
				return err
			}
			if err := p.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return nil
		},
	}

	cmd.AddCommand(issue, revoke)
	return cmd
}
