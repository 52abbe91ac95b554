package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pyscope/internal/core/app"
	"pyscope/internal/core/ports"
)

const tokenEnv = "PYSCOPE_TOKEN"

type filesOptions struct {
	token string
}

func (o *filesOptions) credential() (string, error) {
	token := strings.TrimSpace(o.token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(tokenEnv))
	}
	if token == "" {
		return "", fmt.Errorf("a token is required: pass --token or set %s", tokenEnv)
	}
	return token, nil
}

func newFilesCmd(root *rootOptions) *cobra.Command {
	opts := &filesOptions{}
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage stored source files",
	}
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token (default $"+tokenEnv+")")

	// withService opens the app, resolves the credential and runs fn.
	withService := func(fn func(cmd *cobra.Command, a *app.App, credential string, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			credential, err := opts.credential()
			if err != nil {
				return err
			}
			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, a, credential, args)
		}
	}

	var putName string
	put := &cobra.Command{
		Use:   "put <local-path>",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(cmd *cobra.Command, a *app.App, credential string, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			name := putName
			if name == "" {
				name = filepath.Base(args[0])
			}
			if err := a.Service.Upload(cmd.Context(), credential, name, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes)\n", name, len(data))
			return nil
		}),
	}
	put.Flags().StringVar(&putName, "name", "", "Store under this name instead of the local base name")

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(cmd *cobra.Command, a *app.App, credential string, args []string) error {
			data, err := a.Service.Content(cmd.Context(), credential, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}),
	}

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(cmd *cobra.Command, a *app.App, credential string, args []string) error {
			if err := a.Service.Remove(cmd.Context(), credential, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: withService(func(cmd *cobra.Command, a *app.App, credential string, _ []string) error {
			names, err := a.Service.Files(cmd.Context(), credential)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	}

	var out outputOptions
	analyze := &cobra.Command{
		Use:   "analyze <name>",
		Short: "Analyze a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(cmd *cobra.Command, a *app.App, credential string, args []string) error {
			queries, err := ports.ParseQueries(out.queries)
			if err != nil {
				return err
			}
			res, err := a.Service.Analyze(cmd.Context(), ports.AnalysisRequest{
				Credential: credential,
				Filename:   args[0],
				Queries:    queries,
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, queries, out.json)
		}),
	}
	out.bind(analyze)

	validate := &cobra.Command{
		Use:   "validate <name>",
		Short: "Check whether a filename is acceptable for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if !app.ValidFilename(cfg, args[0]) {
				return fmt.Errorf("%s: not a valid source filename (allowed extensions: %s)",
					args[0], strings.Join(cfg.Analysis.Extensions, ", "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(put, get, rm, ls, analyze, validate)
	return cmd
}
