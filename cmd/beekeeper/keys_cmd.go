package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdihakim148/beekeeper/cmd/internal/auth/session"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage token signing keys",
	}

	cmd.AddCommand(newKeysInitCmd())
	cmd.AddCommand(newKeysPublicCmd())

	return cmd
}

// keyPathFlag registers --key-file with the session default (env applied) as its value.
func keyPathFlag(cmd *cobra.Command, dst *string) {
	def := session.DefaultKeyPath
	if cfg, err := session.LoadConfigFromEnv(); err == nil {
		def = cfg.KeyPath
	}
	cmd.Flags().StringVar(dst, "key-file", def, "Key file path")
}

func newKeysInitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the key file if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			warn := func(msg string, args ...any) {
				fmt.Fprintln(cmd.ErrOrStderr(), append([]any{"warning:", msg}, args...)...)
			}
			ks, created, err := session.LoadOrCreateKeys(path, time.Now(), warn)
			if err != nil {
				return err
			}
			state := "exists"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (created_at %s)\n", state, path, ks.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
	keyPathFlag(cmd, &path)

	return cmd
}

func newKeysPublicCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "public",
		Short: "Print the hex Ed25519 public key used to verify v4.public and jwt-eddsa tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := session.LoadKeys(path)
			if err != nil {
				return fmt.Errorf("load key file %s: %w", path, err)
			}
			pub, err := ks.PublicKeyHex()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}
	keyPathFlag(cmd, &path)

	return cmd
}
