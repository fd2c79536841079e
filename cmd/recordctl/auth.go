package main

import (
	"bufio"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"cfchat/backend/internal/auth"
	jwtpkg "cfchat/backend/internal/auth/jwt"
)

func newTokenCmd(a *app) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "token <operator>",
		Short: "Issue an ops token signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Ops.TokenSecret == "" {
				return errors.New("ops token secret is not configured")
			}
			for _, scope := range scopes {
				if !slices.Contains(jwtpkg.AllScopes, scope) {
					return fmt.Errorf("unknown scope %q (known: %s)", scope, strings.Join(jwtpkg.AllScopes, ", "))
				}
			}
			tokens := jwtpkg.NewManager(a.cfg.Ops.TokenSecret, a.cfg.Ops.TokenIssuer, a.cfg.Ops.TokenTTL)
			token, err := tokens.Issue(args[0], scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Granted scopes (default: all)")
	return cmd
}

func newOperatorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage ops operator credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash <name>",
		Short: "Read a password from stdin and print an operator entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" || strings.Contains(name, ":") {
				return errors.New("operator name must be non-empty and must not contain ':'")
			}
			password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && password == "" {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := auth.HashPassword(strings.TrimRight(password, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", name, hash)
			return nil
		},
	})
	return cmd
}
